// Package articulation generates the user-facing reply under a strict JSON
// output contract, with a deterministic fallback for every failure mode of
// the external service. GenerateReply never fails outward.
package articulation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"foodiebot/internal/llm"
	"foodiebot/internal/types"
)

const replyPrompt = `You are FoodieBot. Use ONLY the products list provided.
Never invent products or prices.
Always return ONLY valid JSON. Do not include extra text, comments, or markdown.

Inputs:
- context: %s
- user_message: "%s"
- products: %s
- interest_score: %d

Return ONLY valid JSON with keys:
- reply (string): a natural conversational response, must reference real product names
- suggested (list of product_id strings, 0-3)
- mention_spice (boolean)
- debug (string, short reason why you chose these products)
`

const (
	replyTemperature = 0.2
	maxCandidates    = 4
	maxSuggested     = 3
)

// candidateView is the redacted projection of a product sent to the
// service. Description and the remaining fields are deliberately withheld
// to keep the prompt small and to stop the service inventing details about
// fields it was never shown.
type candidateView struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	SpiceLevel      int     `json:"spice_level"`
	PopularityScore int     `json:"popularity_score"`
}

// Orchestrator builds the reply prompt, enforces the output contract on
// the response, and degrades deterministically on any failure.
type Orchestrator struct {
	client    llm.Client
	logger    *zap.Logger
	maxTokens int
}

// NewOrchestrator creates an Orchestrator. client may be nil; every reply
// then takes the fallback path.
func NewOrchestrator(client llm.Client, maxTokens int, logger *zap.Logger) *Orchestrator {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Orchestrator{client: client, maxTokens: maxTokens, logger: logger.Named("articulation")}
}

// GenerateReply produces the structured reply for a turn. candidates is
// truncated to 4; suggested ids in the result are guaranteed to come from
// that candidate set.
func (o *Orchestrator) GenerateReply(ctx context.Context, sctx types.SessionContext, message string, candidates []types.Product, score int) types.ReplyResult {
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	if o.client == nil {
		return FallbackReply(candidates)
	}

	result, err := o.generateViaService(ctx, sctx, message, candidates, score)
	if err != nil {
		o.logger.Warn("service reply failed, using fallback", zap.Error(err))
		return FallbackReply(candidates)
	}
	return result
}

func (o *Orchestrator) generateViaService(ctx context.Context, sctx types.SessionContext, message string, candidates []types.Product, score int) (types.ReplyResult, error) {
	views := make([]candidateView, 0, len(candidates))
	for _, p := range candidates {
		views = append(views, candidateView{
			ProductID:       p.ProductID,
			Name:            p.Name,
			Price:           p.Price,
			SpiceLevel:      p.SpiceLevel,
			PopularityScore: p.PopularityScore,
		})
	}

	ctxJSON, err := json.Marshal(sctx)
	if err != nil {
		return types.ReplyResult{}, fmt.Errorf("failed to serialize context: %w", err)
	}
	productsJSON, err := json.Marshal(views)
	if err != nil {
		return types.ReplyResult{}, fmt.Errorf("failed to serialize candidates: %w", err)
	}

	prompt := fmt.Sprintf(replyPrompt,
		string(ctxJSON),
		strings.ReplaceAll(message, `"`, `\"`),
		string(productsJSON),
		score,
	)

	out, err := o.client.Complete(ctx, prompt, llm.Options{
		Temperature: replyTemperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return types.ReplyResult{}, err
	}

	var parsed types.ReplyResult
	if err := DecodeObject(out, &parsed); err != nil || parsed.Reply == "" {
		// The service answered but not in contract form; the text is still
		// worth more than discarding it.
		return types.ReplyResult{
			Reply:     strings.TrimSpace(out),
			Suggested: []string{},
			Debug:     "wrapped_text",
		}, nil
	}

	parsed.Reply = strings.TrimSpace(parsed.Reply)
	parsed.Suggested = filterSuggested(parsed.Suggested, candidates)
	if parsed.Debug == "" {
		parsed.Debug = "llm"
	}
	return parsed, nil
}

// filterSuggested keeps only ids drawn from the supplied candidate set,
// capped at 3.
func filterSuggested(suggested []string, candidates []types.Product) []string {
	known := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		known[p.ProductID] = true
	}

	out := make([]string, 0, maxSuggested)
	for _, id := range suggested {
		if known[id] {
			out = append(out, id)
			if len(out) == maxSuggested {
				break
			}
		}
	}
	return out
}

// FallbackReply is the deterministic reply used whenever the service path
// is unavailable or fails. With candidates it references the first one's
// name and price and asks for confirmation; without, it prompts for
// preferences.
func FallbackReply(candidates []types.Product) types.ReplyResult {
	if len(candidates) == 0 {
		return types.ReplyResult{
			Reply:     "Tell me your food mood or budget!",
			Suggested: []string{},
			Debug:     "fallback_none",
		}
	}

	best := candidates[0]
	return types.ReplyResult{
		Reply:        fmt.Sprintf("I found %s for $%.2f. Want me to add it?", best.Name, best.Price),
		Suggested:    []string{best.ProductID},
		MentionSpice: best.SpiceLevel > 0,
		Debug:        "fallback",
	}
}
