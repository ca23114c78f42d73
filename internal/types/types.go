// Package types contains the core domain types shared across FoodieBot
// components: products, intent slots, session context, and reply results.
// These are pure data types with no knowledge of storage or transport.
package types

import (
	"errors"
	"time"
)

// Common errors for the core pipeline and its collaborators.
var (
	// ErrServiceUnavailable indicates the external LLM service cannot be
	// reached: missing configuration, network failure, or timeout.
	ErrServiceUnavailable = errors.New("llm service unavailable")

	// ErrMalformedResponse indicates the LLM returned text that is not
	// valid JSON, or JSON missing required keys, even after repair.
	ErrMalformedResponse = errors.New("malformed llm response")

	// ErrInvalidInput indicates a field value that cannot be parsed
	// (e.g. a budget string with no numeric content).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an unknown session or product id.
	ErrNotFound = errors.New("not found")
)

// Moods is the fixed mood vocabulary in priority order. Fallback extraction
// scans this list front to back and keeps the first match only, so ordering
// is a correctness requirement, not a style choice.
var Moods = []string{
	"adventurous", "comfort", "healthy", "indulgent",
	"quick", "refreshing", "cozy", "party",
}

// DietaryTags is the fixed dietary-restriction vocabulary.
var DietaryTags = []string{
	"vegan", "vegetarian", "gluten_free", "dairy_free", "nut_free",
}

// Nutrient preference values.
const (
	NutrientProtein    = "protein"
	NutrientLowCarb    = "low_carb"
	NutrientLowCalorie = "low_calorie"
)

// IntentSlots is the structured intent extracted from a single user message.
// Mood is single-valued (one topic per turn); dietary and budget are
// multi/optional because a message can carry several constraints at once.
type IntentSlots struct {
	Mood       string   `json:"mood,omitempty"`
	Budget     *float64 `json:"budget,omitempty"`
	Dietary    []string `json:"dietary,omitempty"`
	Nutrient   string   `json:"nutrient,omitempty"`
	Spicy      bool     `json:"spicy,omitempty"`
	Question   bool     `json:"question,omitempty"`
	Order      bool     `json:"order,omitempty"`
	Enthusiasm bool     `json:"enthusiasm,omitempty"`
	FreeText   string   `json:"free_text,omitempty"`
}

// Empty reports whether no signal at all was extracted (FreeText aside).
func (s IntentSlots) Empty() bool {
	return s.Mood == "" && s.Budget == nil && len(s.Dietary) == 0 &&
		s.Nutrient == "" && !s.Spicy && !s.Question && !s.Order && !s.Enthusiasm
}

// Turn is one entry in a session transcript. Immutable once appended.
type Turn struct {
	Role       string      `json:"role"` // "user" or "bot"
	Text       string      `json:"text"`
	Slots      IntentSlots `json:"slots"`
	ScoreDelta int         `json:"score_delta"`
}

// SessionContext holds the mutable per-session conversation state.
// It is process-local and never persisted. History is the append-only
// transcript; insertion order is the conversation order.
//
// Intents is the last-known merged slot set across turns. The score-update
// path merges each turn's extracted slots into it so downstream consumers
// (analytics, recommend-from-context) always see the latest preferences.
type SessionContext struct {
	SessionID        string      `json:"session_id"`
	History          []Turn      `json:"history"`
	Intents          IntentSlots `json:"intents"`
	AccumulatedScore int         `json:"accumulated_score"`
}

// UserTurns counts the user-originated entries in the transcript.
// This is the turn index reported to analytics.
func (c *SessionContext) UserTurns() int {
	n := 0
	for _, t := range c.History {
		if t.Role == "user" {
			n++
		}
	}
	return n
}

// Product is a catalog record. Owned by the catalog store; the core never
// mutates products. Tag fields are transported as serialized JSON arrays
// and deserialized before use.
type Product struct {
	ProductID       string    `json:"product_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category,omitempty"`
	Description     string    `json:"description,omitempty"`
	Ingredients     []string  `json:"ingredients,omitempty"`
	Price           float64   `json:"price"`
	Calories        int       `json:"calories,omitempty"`
	PrepTime        string    `json:"prep_time,omitempty"`
	DietaryTags     []string  `json:"dietary_tags,omitempty"`
	MoodTags        []string  `json:"mood_tags,omitempty"`
	Allergens       []string  `json:"allergens,omitempty"`
	PopularityScore int       `json:"popularity_score"`
	ChefSpecial     bool      `json:"chef_special,omitempty"`
	LimitedTime     bool      `json:"limited_time,omitempty"`
	SpiceLevel      int       `json:"spice_level,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// HasMoodTag reports exact membership of mood in the product's mood tags.
// Exact membership, not substring containment: a requested tag that happens
// to be a substring of an unrelated longer tag must not match.
func (p Product) HasMoodTag(mood string) bool {
	for _, t := range p.MoodTags {
		if t == mood {
			return true
		}
	}
	return false
}

// DietaryOverlap counts how many of the requested dietary tags the product
// carries, using exact membership.
func (p Product) DietaryOverlap(requested []string) int {
	if len(requested) == 0 || len(p.DietaryTags) == 0 {
		return 0
	}
	have := make(map[string]bool, len(p.DietaryTags))
	for _, t := range p.DietaryTags {
		have[t] = true
	}
	n := 0
	for _, d := range requested {
		if have[d] {
			n++
		}
	}
	return n
}

// ReplyResult is the structured output of reply generation.
// Suggested holds 0-3 product ids drawn only from the supplied candidates.
type ReplyResult struct {
	Reply        string   `json:"reply"`
	Suggested    []string `json:"suggested"`
	MentionSpice bool     `json:"mention_spice"`
	Debug        string   `json:"debug"`
}
