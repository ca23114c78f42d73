package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"foodiebot/internal/logging"
	"foodiebot/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := NewSink(filepath.Join(t.TempDir(), "analytics.db"), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// waitForTurns polls until the worker has flushed n turn records.
func waitForTurns(t *testing.T, s *Sink, n int) []TurnRecord {
	t.Helper()
	var got []TurnRecord
	require.Eventually(t, func() bool {
		var err error
		got, err = s.RecentConversations(context.Background(), n+1)
		return err == nil && len(got) >= n
	}, 2*time.Second, 10*time.Millisecond)
	return got
}

func TestRecordTurnRoundTrip(t *testing.T) {
	s := newTestSink(t)

	budget := 12.0
	s.RecordTurn(TurnRecord{
		SessionID:      "s1",
		Turn:           1,
		UserMessage:    "spicy food under $12",
		BotReply:       "Try the ramen!",
		InterestScore:  40,
		Intents:        types.IntentSlots{Spicy: true, Budget: &budget},
		RecommendedIDs: []string{"R003", "R001"},
	})

	got := waitForTurns(t, s, 1)
	rec := got[0]
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, 1, rec.Turn)
	assert.Equal(t, "spicy food under $12", rec.UserMessage)
	assert.Equal(t, "Try the ramen!", rec.BotReply)
	assert.Equal(t, 40, rec.InterestScore)
	assert.True(t, rec.Intents.Spicy)
	require.NotNil(t, rec.Intents.Budget)
	assert.Equal(t, 12.0, *rec.Intents.Budget)
	assert.Equal(t, []string{"R003", "R001"}, rec.RecommendedIDs)
	assert.NotEmpty(t, rec.CreatedAt)
}

func TestRecordQueryRoundTrip(t *testing.T) {
	s := newTestSink(t)

	s.RecordQuery("SELECT * FROM products WHERE price <= ?", []any{10.0}, 3*time.Millisecond)

	var got []QueryRecord
	require.Eventually(t, func() bool {
		var err error
		got, err = s.RecentQueries(context.Background(), 10)
		return err == nil && len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, got[0].QueryText, "price <= ?")
	assert.Equal(t, "[10]", got[0].Params)
	assert.InDelta(t, 3.0, got[0].DurationMS, 0.01)
}

func TestRecentOrderingAndLimit(t *testing.T) {
	s := newTestSink(t)

	for i := 1; i <= 5; i++ {
		s.RecordTurn(TurnRecord{SessionID: "s1", Turn: i, UserMessage: "m"})
	}

	var got []TurnRecord
	require.Eventually(t, func() bool {
		all, err := s.RecentConversations(context.Background(), 10)
		return err == nil && len(all) == 5
	}, 2*time.Second, 10*time.Millisecond)

	got, err := s.RecentConversations(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Newest first.
	assert.Equal(t, 5, got[0].Turn)
	assert.Equal(t, 4, got[1].Turn)
	assert.Equal(t, 3, got[2].Turn)
}

func TestCloseDrainsQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.db")
	s, err := NewSink(path, logging.NewNop())
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		s.RecordTurn(TurnRecord{SessionID: "s1", Turn: i})
	}
	require.NoError(t, s.Close())

	// Everything enqueued before Close must have been written.
	reopened, err := NewSink(path, logging.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.RecentConversations(context.Background(), 20)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := NewSink(filepath.Join(t.TempDir(), "analytics.db"), logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	// Second close must not panic or deadlock.
	assert.NoError(t, s.Close())
}
