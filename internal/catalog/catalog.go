// Package catalog is the sqlite-backed product catalog. The core pipeline
// consumes it read-only; the admin API owns creation and mutation.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"foodiebot/internal/types"
)

// Predicate is the AND-combination of filter clauses derived from intent
// slots. Zero values mean "no constraint".
type Predicate struct {
	Mood     string
	Budget   *float64
	Dietary  []string
	Nutrient string
}

// Clauses renders the predicate as SQL WHERE clauses with parameters.
//
// Tag clauses use LIKE as a coarse prefilter only: the serialized tag
// columns can substring-match an unrelated longer tag, so the ranker
// re-checks exact membership on the deserialized tag sets after the rows
// are fetched.
func (p Predicate) Clauses() (where string, params []any) {
	var clauses []string

	if p.Mood != "" {
		clauses = append(clauses, "mood_tags LIKE ?")
		params = append(params, "%"+p.Mood+"%")
	}
	if p.Budget != nil {
		clauses = append(clauses, "price <= ?")
		params = append(params, *p.Budget)
	}
	for _, d := range p.Dietary {
		// AND across multiple diets: a product must satisfy every one.
		clauses = append(clauses, "dietary_tags LIKE ?")
		params = append(params, "%"+d+"%")
	}
	switch p.Nutrient {
	case types.NutrientProtein:
		clauses = append(clauses, "calories >= ?")
		params = append(params, 300)
	case types.NutrientLowCarb:
		clauses = append(clauses, "calories <= ?")
		params = append(params, 400)
	case types.NutrientLowCalorie:
		clauses = append(clauses, "calories <= ?")
		params = append(params, 250)
	}

	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), params
}

func (p Predicate) String() string {
	where, params := p.Clauses()
	return fmt.Sprintf("%s %v", where, params)
}

// QueryLogger receives catalog query timings. Implemented by the analytics
// sink; a nil logger disables timing capture.
type QueryLogger interface {
	RecordQuery(query string, params []any, duration time.Duration)
}
