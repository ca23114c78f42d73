package session

import "foodiebot/internal/types"

// Engagement weights. Each signal present in a turn's slots contributes its
// weight to the turn's score delta; the dietary weight applies once per tag.
const (
	weightMood        = 20
	weightDietaryTag  = 10
	weightBudget      = 5
	weightQuestion    = 10
	weightEnthusiasm  = 8
	weightOrder       = 30
	weightSpicy       = 15
)

// scoreFloor and scoreCeil bound the accumulated engagement score.
const (
	scoreFloor = 0
	scoreCeil  = 100
)

// ScoreDelta sums the engagement weights over the signals present in slots.
func ScoreDelta(slots types.IntentSlots) int {
	delta := 0
	if slots.Mood != "" {
		delta += weightMood
	}
	delta += weightDietaryTag * len(slots.Dietary)
	if slots.Budget != nil {
		delta += weightBudget
	}
	if slots.Question {
		delta += weightQuestion
	}
	if slots.Enthusiasm {
		delta += weightEnthusiasm
	}
	if slots.Order {
		delta += weightOrder
	}
	if slots.Spicy {
		delta += weightSpicy
	}
	return delta
}

// Clamp bounds an accumulated score to [0, 100]. Always applied after each
// delta so the invariant holds regardless of delta sign or magnitude.
func Clamp(score int) int {
	if score < scoreFloor {
		return scoreFloor
	}
	if score > scoreCeil {
		return scoreCeil
	}
	return score
}
