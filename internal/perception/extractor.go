// Package perception turns free-text user messages into structured intent
// slots: an LLM-backed extractor with a deterministic keyword fallback.
// Extraction never fails outward.
package perception

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"foodiebot/internal/articulation"
	"foodiebot/internal/llm"
	"foodiebot/internal/types"
)

const intentPrompt = `You are a strict JSON extractor.
Return ONLY valid JSON with keys: mood, budget, dietary, nutrient, spicy, question, order, enthusiasm, free_text

User message: "%s"
`

const intentMaxTokens = 200

// Extractor converts a raw user message into intent slots. The service-backed
// path runs first when a client is configured; any failure anywhere in that
// path (network, non-2xx, malformed JSON after repair) falls back to the
// deterministic keyword extractor. Extract never fails outward.
type Extractor struct {
	client llm.Client
	logger *zap.Logger
}

// NewExtractor creates an Extractor. client may be nil, in which case every
// call takes the deterministic path.
func NewExtractor(client llm.Client, logger *zap.Logger) *Extractor {
	return &Extractor{client: client, logger: logger.Named("perception")}
}

// rawIntent mirrors the intent JSON schema with loose field typing, since
// the service frequently returns e.g. budget as a string.
type rawIntent struct {
	Mood       string   `json:"mood"`
	Budget     any      `json:"budget"`
	Dietary    []string `json:"dietary"`
	Nutrient   string   `json:"nutrient"`
	Spicy      bool     `json:"spicy"`
	Question   bool     `json:"question"`
	Order      bool     `json:"order"`
	Enthusiasm bool     `json:"enthusiasm"`
	FreeText   string   `json:"free_text"`
}

// Extract returns the best-effort intent slots for a message.
func (e *Extractor) Extract(ctx context.Context, message string) types.IntentSlots {
	if e.client == nil {
		return FallbackExtract(message)
	}

	slots, err := e.extractViaService(ctx, message)
	if err != nil {
		e.logger.Warn("service extraction failed, using fallback", zap.Error(err))
		return FallbackExtract(message)
	}
	return slots
}

func (e *Extractor) extractViaService(ctx context.Context, message string) (types.IntentSlots, error) {
	prompt := fmt.Sprintf(intentPrompt, escapeQuotes(message))

	out, err := e.client.Complete(ctx, prompt, llm.Options{Temperature: 0, MaxTokens: intentMaxTokens})
	if err != nil {
		return types.IntentSlots{}, err
	}

	var parsed rawIntent
	if err := articulation.DecodeObject(out, &parsed); err != nil {
		return types.IntentSlots{}, fmt.Errorf("intent response: %w", err)
	}

	slots := types.IntentSlots{
		Mood:       parsed.Mood,
		Budget:     CoerceBudget(parsed.Budget),
		Dietary:    parsed.Dietary,
		Nutrient:   parsed.Nutrient,
		Spicy:      parsed.Spicy,
		Question:   parsed.Question,
		Order:      parsed.Order,
		Enthusiasm: parsed.Enthusiasm,
		FreeText:   parsed.FreeText,
	}
	if slots.FreeText == "" {
		slots.FreeText = message
	}
	return slots, nil
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
