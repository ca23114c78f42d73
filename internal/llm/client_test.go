package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodiebot/internal/types"
)

func groqTestServer(t *testing.T, handler http.HandlerFunc) *GroqClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultGroqConfig("test-key")
	cfg.BaseURL = srv.URL
	return NewGroqClient(cfg)
}

func TestGroqComplete(t *testing.T) {
	c := groqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices": [{"message": {"content": "  {\"mood\": \"cozy\"}  "}}]}`))
	})

	out, err := c.Complete(context.Background(), "prompt", Options{MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, `{"mood": "cozy"}`, out)
}

func TestGroqRetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := groqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	out, err := c.Complete(context.Background(), "prompt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGroqRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	c := groqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Complete(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	// One attempt plus one retry.
	assert.Equal(t, int32(2), calls.Load())
}

func TestGroqNonRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	c := groqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Complete(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGroqEmptyChoices(t *testing.T) {
	c := groqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := c.Complete(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, types.ErrMalformedResponse)
}

func TestGroqMissingAPIKey(t *testing.T) {
	c := NewGroqClient(GroqConfig{})
	_, err := c.Complete(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
}
