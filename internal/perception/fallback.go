package perception

import (
	"regexp"
	"strconv"
	"strings"

	"foodiebot/internal/types"
)

// Deterministic keyword extraction. This is the path the engagement scorer
// always uses (cheap, available offline) and the fallback for the
// service-backed extractor. Rules are evaluated in a fixed order; mood in
// particular is resolved against an ordered priority list so that a message
// containing several mood words always yields the same single mood.

var (
	budgetUnderRe = regexp.MustCompile(`under\s*\$?\s*(\d+(?:\.\d+)?)`)
	budgetBareRe  = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)`)
	numericRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

var spicyKeywords = []string{"spicy", "hot", "chili", "jalape"}

var orderKeywords = []string{"order", "add to cart", "i'll take", "i will take", "buy"}

var enthusiasmKeywords = []string{"love", "perfect", "amazing", "delicious"}

// FallbackExtract derives intent slots from a message using keyword rules
// only. It never fails; an empty slot set is a valid result.
func FallbackExtract(message string) types.IntentSlots {
	txt := strings.ToLower(message)
	slots := types.IntentSlots{FreeText: message}

	if b, ok := extractBudget(txt); ok {
		slots.Budget = &b
	}

	for _, d := range types.DietaryTags {
		if strings.Contains(txt, d) {
			slots.Dietary = append(slots.Dietary, d)
		}
	}

	slots.Spicy = containsAny(txt, spicyKeywords)
	slots.Order = containsAny(txt, orderKeywords)
	slots.Enthusiasm = containsAny(txt, enthusiasmKeywords)
	slots.Question = strings.Contains(txt, "?")

	// First match in priority order wins; only one mood per message.
	// Nutrient has no keyword rule; it is only ever set by the service path.
	for _, mood := range types.Moods {
		if strings.Contains(txt, mood) {
			slots.Mood = mood
			break
		}
	}

	return slots
}

// extractBudget parses "under $12" style phrases first, then a bare "$12".
func extractBudget(txt string) (float64, bool) {
	if m := budgetUnderRe.FindStringSubmatch(txt); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	if m := budgetBareRe.FindStringSubmatch(txt); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// CoerceBudget converts a loosely typed budget value from LLM output into
// a float. Accepts a bare number or a string containing one; anything else
// degrades to "no budget constraint" rather than failing extraction.
func CoerceBudget(v any) *float64 {
	switch b := v.(type) {
	case nil:
		return nil
	case float64:
		return &b
	case int:
		f := float64(b)
		return &f
	case string:
		if m := numericRe.FindStringSubmatch(b); m != nil {
			if f, err := strconv.ParseFloat(m[1], 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func containsAny(txt string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(txt, k) {
			return true
		}
	}
	return false
}
