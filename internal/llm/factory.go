package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"foodiebot/internal/config"
)

// NewClient builds the configured LLM client. A missing API key is not an
// error: it returns a nil client, which keeps every extraction and reply
// path on the deterministic fallback so the system stays fully functional
// offline.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Client, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("no LLM api key configured, running in offline fallback mode")
		return nil, nil
	}

	switch cfg.LLM.Provider {
	case "", "groq":
		return NewGroqClient(GroqConfig{
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLMTimeout(),
			MaxRetry: cfg.LLM.MaxRetry,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLMTimeout(),
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
