// Package session holds the per-session conversation state and applies the
// engagement-scoring rules. State is process-local and ephemeral: sessions
// are created on first contact, live until explicitly cleared, and are never
// persisted.
package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foodiebot/internal/perception"
	"foodiebot/internal/types"
)

// entry pairs a session context with its own lock so that concurrent
// updates to one session serialize without blocking unrelated sessions.
type entry struct {
	mu  sync.Mutex
	ctx *types.SessionContext
}

// Store is a concurrency-safe keyed store of session contexts.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *zap.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		entries: make(map[string]*entry),
		logger:  logger.Named("session"),
	}
}

// getOrCreate returns the entry for id, creating it on first contact.
func (s *Store) getOrCreate(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[id]; ok {
		return e
	}
	e = &entry{ctx: &types.SessionContext{SessionID: id}}
	s.entries[id] = e
	s.logger.Debug("session created", zap.String("session_id", id))
	return e
}

// NewSessionID mints a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// UpdateAndScore runs the lightweight keyword extractor over the message,
// applies the engagement weights, appends exactly one user turn, and merges
// the extracted slots into the session's last-known intents. The total is
// re-clamped to [0, 100] on every update. The operation is total: it never
// fails.
func (s *Store) UpdateAndScore(sessionID, message string) (delta int, total int, slots types.IntentSlots) {
	e := s.getOrCreate(sessionID)

	// Scoring always uses the local extractor so it stays cheap and
	// available even when the reply pipeline's service call fails.
	slots = perception.FallbackExtract(message)
	delta = ScoreDelta(slots)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ctx.AccumulatedScore = Clamp(e.ctx.AccumulatedScore + delta)
	e.ctx.History = append(e.ctx.History, types.Turn{
		Role:       "user",
		Text:       message,
		Slots:      slots,
		ScoreDelta: delta,
	})
	mergeIntents(&e.ctx.Intents, slots)

	return delta, e.ctx.AccumulatedScore, slots
}

// mergeIntents folds a turn's slots into the session's accumulated intents.
// Scalar slots overwrite only when the new turn sets them; dietary tags
// accumulate without duplicates; boolean flags reflect the latest turn.
func mergeIntents(dst *types.IntentSlots, src types.IntentSlots) {
	if src.Mood != "" {
		dst.Mood = src.Mood
	}
	if src.Budget != nil {
		dst.Budget = src.Budget
	}
	if src.Nutrient != "" {
		dst.Nutrient = src.Nutrient
	}
	for _, d := range src.Dietary {
		found := false
		for _, have := range dst.Dietary {
			if have == d {
				found = true
				break
			}
		}
		if !found {
			dst.Dietary = append(dst.Dietary, d)
		}
	}
	dst.Spicy = src.Spicy
	dst.Question = src.Question
	dst.Order = src.Order
	dst.Enthusiasm = src.Enthusiasm
	dst.FreeText = src.FreeText
}

// Snapshot returns a copy of the session context, or ErrNotFound for an
// unknown id. The copy's history slice is detached from the live session.
func (s *Store) Snapshot(sessionID string) (types.SessionContext, error) {
	s.mu.RLock()
	e, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return types.SessionContext{}, types.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cp := *e.ctx
	cp.History = append([]types.Turn(nil), e.ctx.History...)
	cp.Intents.Dietary = append([]string(nil), e.ctx.Intents.Dietary...)
	return cp, nil
}

// Touch ensures a session exists for id (create-on-first-contact) without
// recording a turn.
func (s *Store) Touch(sessionID string) {
	s.getOrCreate(sessionID)
}

// Clear removes a session. Clearing an unknown id is a no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Summary is a compact per-session view for the debug endpoint.
type Summary struct {
	SessionID        string            `json:"session_id"`
	Intents          types.IntentSlots `json:"intents"`
	AccumulatedScore int               `json:"accumulated_score"`
	HistoryLen       int               `json:"history_len"`
}

// Summaries returns a snapshot summary of every live session.
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, Summary{
			SessionID:        e.ctx.SessionID,
			Intents:          e.ctx.Intents,
			AccumulatedScore: e.ctx.AccumulatedScore,
			HistoryLen:       len(e.ctx.History),
		})
		e.mu.Unlock()
	}
	return out
}
