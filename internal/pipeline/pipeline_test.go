package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodiebot/internal/analytics"
	"foodiebot/internal/articulation"
	"foodiebot/internal/logging"
	"foodiebot/internal/perception"
	"foodiebot/internal/session"
	"foodiebot/internal/types"
)

type fallbackExtractor struct{}

func (fallbackExtractor) Extract(ctx context.Context, message string) types.IntentSlots {
	return perception.FallbackExtract(message)
}

type stubRanker struct {
	products []types.Product
	err      error
}

func (s *stubRanker) ByPreferences(ctx context.Context, mood string, budget *float64, dietary []string, nutrient string, limit int) ([]types.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.products
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fallbackReplier struct{}

func (fallbackReplier) GenerateReply(ctx context.Context, sctx types.SessionContext, message string, candidates []types.Product, score int) types.ReplyResult {
	return articulation.FallbackReply(candidates)
}

type captureTurnLogger struct {
	records []analytics.TurnRecord
}

func (c *captureTurnLogger) RecordTurn(rec analytics.TurnRecord) {
	c.records = append(c.records, rec)
}

func friedRice() types.Product {
	return types.Product{
		ProductID: "R001", Name: "Chicken Fried Rice", Price: 8.99,
		SpiceLevel: 2, PopularityScore: 80, MoodTags: []string{"comfort"},
	}
}

func newTestPipeline(ranker Ranker, turnLog TurnLogger) *Pipeline {
	return New(fallbackExtractor{}, session.NewStore(logging.NewNop()),
		ranker, fallbackReplier{}, turnLog, logging.NewNop())
}

func TestChatFullTurn(t *testing.T) {
	log := &captureTurnLogger{}
	p := newTestPipeline(&stubRanker{products: []types.Product{friedRice()}}, log)

	res := p.Chat(context.Background(), "s1", "I want something spicy under $10")

	assert.Equal(t, "s1", res.SessionID)
	assert.Equal(t, "I found Chicken Fried Rice for $8.99. Want me to add it?", res.Reply)
	assert.Equal(t, []string{"R001"}, res.Suggested)
	assert.True(t, res.MentionSpice)
	// spicy 15 + budget 5.
	assert.Equal(t, 20, res.ScoreDelta)
	assert.Equal(t, 20, res.InterestScore)
	assert.True(t, res.Slots.Spicy)

	require.Len(t, log.records, 1)
	rec := log.records[0]
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, 1, rec.Turn)
	assert.Equal(t, []string{"R001"}, rec.RecommendedIDs)
	assert.Equal(t, 20, rec.InterestScore)
}

func TestChatMintsSessionID(t *testing.T) {
	p := newTestPipeline(&stubRanker{}, nil)

	res := p.Chat(context.Background(), "", "hello")
	assert.NotEmpty(t, res.SessionID)

	// The minted session is live: a second turn accumulates onto it.
	res2 := p.Chat(context.Background(), res.SessionID, "order the special")
	assert.Equal(t, res.SessionID, res2.SessionID)
	assert.Equal(t, 30, res2.ScoreDelta)
}

func TestChatRankerErrorDegradesToNoCandidates(t *testing.T) {
	p := newTestPipeline(&stubRanker{err: errors.New("db locked")}, nil)

	res := p.Chat(context.Background(), "s1", "comfort food")

	assert.Equal(t, "Tell me your food mood or budget!", res.Reply)
	assert.Empty(t, res.Suggested)
	assert.Empty(t, res.Recommended)
	// Scoring still ran.
	assert.Equal(t, 20, res.ScoreDelta)
}

func TestChatScoreAccumulatesAcrossTurns(t *testing.T) {
	p := newTestPipeline(&stubRanker{}, nil)

	first := p.Chat(context.Background(), "s1", "comfort food")
	assert.Equal(t, 20, first.InterestScore)

	second := p.Chat(context.Background(), "s1", "order it, I love it")
	assert.Equal(t, 38, second.ScoreDelta) // order 30 + enthusiasm 8
	assert.Equal(t, 58, second.InterestScore)
}

func TestChatTurnIndexCountsUserTurns(t *testing.T) {
	log := &captureTurnLogger{}
	p := newTestPipeline(&stubRanker{}, log)

	p.Chat(context.Background(), "s1", "one")
	p.Chat(context.Background(), "s1", "two")
	p.Chat(context.Background(), "s1", "three")

	require.Len(t, log.records, 3)
	assert.Equal(t, 1, log.records[0].Turn)
	assert.Equal(t, 2, log.records[1].Turn)
	assert.Equal(t, 3, log.records[2].Turn)
}

func TestChatCapsReplyCandidates(t *testing.T) {
	many := make([]types.Product, 6)
	for i := range many {
		many[i] = types.Product{ProductID: string(rune('A' + i)), Name: "P", Price: 1}
	}
	p := newTestPipeline(&stubRanker{products: many}, nil)

	res := p.Chat(context.Background(), "s1", "anything")

	// All ranked candidates surface in the result, but the fallback reply
	// suggests from the truncated reply set.
	assert.Len(t, res.Recommended, 6)
	assert.Equal(t, []string{"A"}, res.Suggested)
}
