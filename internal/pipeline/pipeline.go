// Package pipeline runs one chat turn end to end: extract intent, update the
// engagement score, rank candidates, generate the reply, and log the turn.
// Stages recover independently; a turn always produces a reply.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"foodiebot/internal/analytics"
	"foodiebot/internal/session"
	"foodiebot/internal/types"
)

const (
	recommendLimit  = 6
	replyCandidates = 4
)

// IntentExtractor produces slots for a message. Total; never fails.
type IntentExtractor interface {
	Extract(ctx context.Context, message string) types.IntentSlots
}

// Ranker orders catalog candidates against preferences.
type Ranker interface {
	ByPreferences(ctx context.Context, mood string, budget *float64, dietary []string, nutrient string, limit int) ([]types.Product, error)
}

// Replier generates the user-facing reply. Total; never fails.
type Replier interface {
	GenerateReply(ctx context.Context, sctx types.SessionContext, message string, candidates []types.Product, score int) types.ReplyResult
}

// TurnLogger receives completed turns. Must not block.
type TurnLogger interface {
	RecordTurn(rec analytics.TurnRecord)
}

// ChatResult is the full outcome of one turn.
type ChatResult struct {
	SessionID     string            `json:"session_id"`
	Reply         string            `json:"reply"`
	Suggested     []string          `json:"suggested"`
	MentionSpice  bool              `json:"mention_spice"`
	Debug         string            `json:"debug"`
	InterestScore int               `json:"interest_score"`
	ScoreDelta    int               `json:"score_delta"`
	Slots         types.IntentSlots `json:"intent"`
	Recommended   []types.Product   `json:"recommended"`
}

// Pipeline wires the per-turn stages together.
type Pipeline struct {
	extractor IntentExtractor
	sessions  *session.Store
	ranker    Ranker
	replier   Replier
	turnLog   TurnLogger
	logger    *zap.Logger
}

// New creates a Pipeline. turnLog may be nil to disable analytics.
func New(extractor IntentExtractor, sessions *session.Store, ranker Ranker, replier Replier, turnLog TurnLogger, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		sessions:  sessions,
		ranker:    ranker,
		replier:   replier,
		turnLog:   turnLog,
		logger:    logger.Named("pipeline"),
	}
}

// Chat runs one turn. An empty sessionID mints a new session. Stages degrade
// rather than fail: a ranking error yields no candidates and the reply falls
// back accordingly.
func (p *Pipeline) Chat(ctx context.Context, sessionID, message string) ChatResult {
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	slots := p.extractor.Extract(ctx, message)
	delta, total, _ := p.sessions.UpdateAndScore(sessionID, message)

	sctx, err := p.sessions.Snapshot(sessionID)
	if err != nil {
		// UpdateAndScore just created the session, so this only happens if
		// someone cleared it concurrently. Proceed with an empty context.
		sctx = types.SessionContext{SessionID: sessionID}
	}

	candidates, err := p.ranker.ByPreferences(ctx, slots.Mood, slots.Budget, slots.Dietary, slots.Nutrient, recommendLimit)
	if err != nil {
		p.logger.Warn("ranking failed, replying without candidates",
			zap.String("session_id", sessionID), zap.Error(err))
		candidates = nil
	}

	replyCands := candidates
	if len(replyCands) > replyCandidates {
		replyCands = replyCands[:replyCandidates]
	}
	reply := p.replier.GenerateReply(ctx, sctx, message, replyCands, total)

	if p.turnLog != nil {
		p.turnLog.RecordTurn(analytics.TurnRecord{
			SessionID:      sessionID,
			Turn:           sctx.UserTurns(),
			UserMessage:    message,
			BotReply:       reply.Reply,
			InterestScore:  total,
			Intents:        slots,
			RecommendedIDs: productIDs(candidates),
		})
	}

	return ChatResult{
		SessionID:     sessionID,
		Reply:         reply.Reply,
		Suggested:     reply.Suggested,
		MentionSpice:  reply.MentionSpice,
		Debug:         reply.Debug,
		InterestScore: total,
		ScoreDelta:    delta,
		Slots:         slots,
		Recommended:   candidates,
	}
}

func productIDs(products []types.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ProductID)
	}
	return out
}
