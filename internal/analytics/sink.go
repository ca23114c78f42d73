// Package analytics is the append-only sink for conversation turns and
// catalog query timings. Writes are fire-and-forget: a single worker
// drains a bounded queue, a full queue drops the record with a warning,
// and no failure here ever affects the reply returned to a user.
package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"foodiebot/internal/types"
)

const queueSize = 256

// TurnRecord is one logged conversation turn.
type TurnRecord struct {
	SessionID      string            `json:"session_id"`
	Turn           int               `json:"turn"`
	UserMessage    string            `json:"user_message"`
	BotReply       string            `json:"bot_reply"`
	InterestScore  int               `json:"interest_score"`
	Intents        types.IntentSlots `json:"intents"`
	RecommendedIDs []string          `json:"recommended_products"`
	ChosenID       string            `json:"chosen_product,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// QueryRecord is one logged catalog query timing.
type QueryRecord struct {
	QueryText  string  `json:"query_text"`
	Params     string  `json:"params"`
	DurationMS float64 `json:"duration_ms"`
	CreatedAt  string  `json:"created_at"`
}

type record struct {
	turn  *TurnRecord
	query *QueryRecord
}

// Sink writes analytics records to sqlite via a background worker.
type Sink struct {
	db     *sql.DB
	logger *zap.Logger

	queue chan record
	done  chan struct{}

	closeOnce sync.Once
}

// NewSink opens (or creates) the analytics database and starts the worker.
func NewSink(path string, logger *zap.Logger) (*Sink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	s := &Sink{
		db:     db,
		logger: logger.Named("analytics"),
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	go s.worker()
	return s, nil
}

func (s *Sink) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		turn INTEGER,
		user_message TEXT,
		bot_reply TEXT,
		intent_json TEXT,
		interest_score INTEGER,
		recommended_products TEXT,
		chosen_product TEXT,
		created_at TEXT
	);
	CREATE TABLE IF NOT EXISTS query_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_text TEXT,
		params TEXT,
		duration_ms REAL,
		created_at TEXT
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize analytics schema: %w", err)
	}
	return nil
}

// RecordTurn enqueues a turn record. Non-blocking: a full queue drops the
// record.
func (s *Sink) RecordTurn(rec TurnRecord) {
	rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	select {
	case s.queue <- record{turn: &rec}:
	default:
		s.logger.Warn("analytics queue full, dropping turn record",
			zap.String("session_id", rec.SessionID))
	}
}

// RecordQuery enqueues a catalog query timing. Implements
// catalog.QueryLogger.
func (s *Sink) RecordQuery(query string, params []any, duration time.Duration) {
	paramsJSON, _ := json.Marshal(params)
	rec := QueryRecord{
		QueryText:  query,
		Params:     string(paramsJSON),
		DurationMS: float64(duration.Microseconds()) / 1000.0,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	select {
	case s.queue <- record{query: &rec}:
	default:
		s.logger.Warn("analytics queue full, dropping query record")
	}
}

// Close drains the queue, stops the worker, and closes the database.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		close(s.queue)
		<-s.done
	})
	return s.db.Close()
}

func (s *Sink) worker() {
	defer close(s.done)
	for rec := range s.queue {
		switch {
		case rec.turn != nil:
			s.writeTurn(rec.turn)
		case rec.query != nil:
			s.writeQuery(rec.query)
		}
	}
}

func (s *Sink) writeTurn(rec *TurnRecord) {
	intentsJSON, _ := json.Marshal(rec.Intents)
	recommendedJSON, _ := json.Marshal(rec.RecommendedIDs)

	_, err := s.db.Exec(`
		INSERT INTO conversations (session_id, turn, user_message, bot_reply, intent_json,
			interest_score, recommended_products, chosen_product, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Turn, rec.UserMessage, rec.BotReply, string(intentsJSON),
		rec.InterestScore, string(recommendedJSON), rec.ChosenID, rec.CreatedAt,
	)
	if err != nil {
		s.logger.Warn("failed to write turn record", zap.Error(err))
	}
}

func (s *Sink) writeQuery(rec *QueryRecord) {
	_, err := s.db.Exec(`
		INSERT INTO query_log (query_text, params, duration_ms, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.QueryText, rec.Params, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		s.logger.Warn("failed to write query record", zap.Error(err))
	}
}

// RecentConversations returns the most recent turn records, newest first.
func (s *Sink) RecentConversations(ctx context.Context, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, turn, user_message, bot_reply, intent_json, interest_score,
			recommended_products, chosen_product, created_at
		FROM conversations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var intentsJSON, recommendedJSON string
		var chosen sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.Turn, &rec.UserMessage, &rec.BotReply,
			&intentsJSON, &rec.InterestScore, &recommendedJSON, &chosen, &rec.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(intentsJSON), &rec.Intents)
		_ = json.Unmarshal([]byte(recommendedJSON), &rec.RecommendedIDs)
		rec.ChosenID = chosen.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentQueries returns the most recent catalog query timings, newest
// first.
func (s *Sink) RecentQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_text, params, duration_ms, created_at
		FROM query_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch queries: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		if err := rows.Scan(&rec.QueryText, &rec.Params, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
