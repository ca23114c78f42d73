// Package recommend ranks catalog products against extracted preferences.
// Ranking is a hand-tuned heuristic, pure over its candidate set: identical
// inputs always produce identical ordered output.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"foodiebot/internal/catalog"
	"foodiebot/internal/types"
)

// Catalog is the slice of the catalog store the ranker consumes.
type Catalog interface {
	Query(ctx context.Context, pred catalog.Predicate, limit int) ([]types.Product, error)
	LookupByID(ctx context.Context, productID string) (types.Product, error)
	SameCategory(ctx context.Context, category, excludeID string, limit int) ([]types.Product, error)
}

// candidateCap bounds the rows fetched for ranking, independent of catalog
// size.
const candidateCap = 200

// Scoring weights.
const (
	moodMatchBonus    = 25.0
	dietaryMatchBonus = 12.0
	proteinBonus      = 10.0
	pricePenalty      = 0.2
	proteinCalories   = 300
)

// Recommender queries the catalog and orders candidates by heuristic score.
type Recommender struct {
	catalog Catalog
	logger  *zap.Logger
}

// New creates a Recommender.
func New(cat Catalog, logger *zap.Logger) *Recommender {
	return &Recommender{catalog: cat, logger: logger.Named("recommend")}
}

// ByPreferences returns up to limit products matching the preference
// predicate, ordered by descending heuristic score. The catalog's LIKE
// prefilter can substring-match unrelated tags, so requested mood and
// dietary constraints are re-checked here with exact membership on the
// deserialized tag sets.
func (r *Recommender) ByPreferences(ctx context.Context, mood string, budget *float64, dietary []string, nutrient string, limit int) ([]types.Product, error) {
	pred := catalog.Predicate{Mood: mood, Budget: budget, Dietary: dietary, Nutrient: nutrient}

	candidates, err := r.catalog.Query(ctx, pred, candidateCap)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	filtered := candidates[:0:0]
	for _, p := range candidates {
		if mood != "" && !p.HasMoodTag(mood) {
			continue
		}
		if len(dietary) > 0 && p.DietaryOverlap(dietary) < len(dietary) {
			continue
		}
		filtered = append(filtered, p)
	}

	// Stable sort keeps catalog order for ties.
	sort.SliceStable(filtered, func(i, j int) bool {
		return r.score(filtered[i], mood, dietary, nutrient) > r.score(filtered[j], mood, dietary, nutrient)
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// score implements the ranking heuristic: popularity, plus bonuses for
// mood match, dietary overlap, and protein preference, minus a price
// penalty. Higher is better.
func (r *Recommender) score(p types.Product, mood string, dietary []string, nutrient string) float64 {
	s := float64(p.PopularityScore)
	if mood != "" && p.HasMoodTag(mood) {
		s += moodMatchBonus
	}
	s += dietaryMatchBonus * float64(p.DietaryOverlap(dietary))
	if nutrient == types.NutrientProtein && p.Calories >= proteinCalories {
		s += proteinBonus
	}
	s -= pricePenalty * p.Price
	return s
}

// Collaborative returns up to limit products sharing the seed product's
// category, excluding the seed, ordered by popularity. An unknown seed id
// yields an empty result, not an error.
func (r *Recommender) Collaborative(ctx context.Context, productID string, limit int) ([]types.Product, error) {
	seed, err := r.catalog.LookupByID(ctx, productID)
	if errors.Is(err, types.ErrNotFound) {
		r.logger.Debug("collaborative seed not found", zap.String("product_id", productID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.catalog.SameCategory(ctx, seed.Category, productID, limit)
}
