package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodiebot/internal/logging"
	"foodiebot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "catalog.db"), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTestProducts(t *testing.T, s *Store) {
	t.Helper()
	products := []types.Product{
		{
			ProductID: "R001", Name: "Chicken Fried Rice", Category: "mains",
			Price: 8.99, Calories: 520, SpiceLevel: 2, PopularityScore: 80,
			MoodTags: []string{"comfort", "quick"},
		},
		{
			ProductID: "R002", Name: "Veggie Buddha Bowl", Category: "mains",
			Price: 11.50, Calories: 380, PopularityScore: 65,
			MoodTags:    []string{"healthy", "refreshing"},
			DietaryTags: []string{"vegan", "gluten_free"},
		},
		{
			ProductID: "R003", Name: "Spicy Ramen", Category: "mains",
			Price: 12.99, Calories: 610, SpiceLevel: 4, PopularityScore: 90,
			MoodTags: []string{"adventurous", "comfort"},
		},
		{
			ProductID: "D001", Name: "Chocolate Lava Cake", Category: "desserts",
			Price: 6.50, Calories: 450, PopularityScore: 75,
			MoodTags: []string{"indulgent", "party"},
		},
	}
	for _, p := range products {
		_, err := s.Create(context.Background(), p)
		require.NoError(t, err)
	}
}

func TestPredicateClauses(t *testing.T) {
	budget := 10.0

	tests := []struct {
		name       string
		pred       Predicate
		wantWhere  string
		wantParams []any
	}{
		{"empty", Predicate{}, "1=1", nil},
		{"mood", Predicate{Mood: "comfort"}, "mood_tags LIKE ?", []any{"%comfort%"}},
		{"budget", Predicate{Budget: &budget}, "price <= ?", []any{10.0}},
		{
			"combined",
			Predicate{Mood: "comfort", Budget: &budget, Dietary: []string{"vegan", "nut_free"}},
			"mood_tags LIKE ? AND price <= ? AND dietary_tags LIKE ? AND dietary_tags LIKE ?",
			[]any{"%comfort%", 10.0, "%vegan%", "%nut_free%"},
		},
		{"protein", Predicate{Nutrient: types.NutrientProtein}, "calories >= ?", []any{300}},
		{"low calorie", Predicate{Nutrient: types.NutrientLowCalorie}, "calories <= ?", []any{250}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, params := tt.pred.Clauses()
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestQueryByPredicate(t *testing.T) {
	s := newTestStore(t)
	seedTestProducts(t, s)
	ctx := context.Background()

	budget := 10.0
	got, err := s.Query(ctx, Predicate{Mood: "comfort", Budget: &budget}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R001", got[0].ProductID)

	got, err = s.Query(ctx, Predicate{Dietary: []string{"vegan", "gluten_free"}}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R002", got[0].ProductID)

	got, err = s.Query(ctx, Predicate{}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestLookupByID(t *testing.T) {
	s := newTestStore(t)
	seedTestProducts(t, s)
	ctx := context.Background()

	p, err := s.LookupByID(ctx, "R003")
	require.NoError(t, err)
	assert.Equal(t, "Spicy Ramen", p.Name)
	assert.Equal(t, []string{"adventurous", "comfort"}, p.MoodTags)
	assert.Equal(t, 4, p.SpiceLevel)

	_, err = s.LookupByID(ctx, "R999")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSameCategory(t *testing.T) {
	s := newTestStore(t)
	seedTestProducts(t, s)

	got, err := s.SameCategory(context.Background(), "mains", "R001", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Popularity descending, seed excluded.
	assert.Equal(t, "R003", got[0].ProductID)
	assert.Equal(t, "R002", got[1].ProductID)
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	seedTestProducts(t, s)

	got, err := s.Search(context.Background(), "ramen", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R003", got[0].ProductID)

	got, err = s.Search(context.Background(), "no such dish", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, types.Product{Name: "Test Dish", Price: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	p, err := s.LookupByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 50, p.PopularityScore) // default

	p.Price = 6.25
	p.MoodTags = []string{"quick"}
	require.NoError(t, s.Update(ctx, p))

	p, err = s.LookupByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6.25, p.Price)
	assert.Equal(t, []string{"quick"}, p.MoodTags)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.LookupByID(ctx, id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, s.Update(ctx, types.Product{ProductID: "missing", Name: "x"}), types.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "missing"), types.ErrNotFound)
}

func TestSeedFromFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []types.Product{
		{ProductID: "R001", Name: "Chicken Fried Rice", Price: 8.99},
		{ProductID: "R002", Name: "Veggie Bowl", Price: 7.50, PopularityScore: 70},
	}
	data, err := json.Marshal(seed)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	n, err := s.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err := s.LookupByID(ctx, "R001")
	require.NoError(t, err)
	assert.Equal(t, 50, p.PopularityScore) // defaulted

	// Re-seeding replaces rows rather than duplicating.
	seed[0].Price = 9.99
	data, _ = json.Marshal(seed)
	require.NoError(t, os.WriteFile(path, data, 0644))
	n, err = s.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	p, err = s.LookupByID(ctx, "R001")
	require.NoError(t, err)
	assert.Equal(t, 9.99, p.Price)
}

func TestSeedFromFileRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name": "No ID"}]`), 0644))

	_, err := s.SeedFromFile(context.Background(), path)
	assert.Error(t, err)
}

type captureQueryLogger struct {
	queries []string
}

func (c *captureQueryLogger) RecordQuery(query string, params []any, duration time.Duration) {
	c.queries = append(c.queries, query)
}

func TestQueryLoggerReceivesTimings(t *testing.T) {
	s := newTestStore(t)
	seedTestProducts(t, s)

	ql := &captureQueryLogger{}
	s.SetQueryLogger(ql)

	_, err := s.Query(context.Background(), Predicate{Mood: "comfort"}, 10)
	require.NoError(t, err)
	require.Len(t, ql.queries, 1)
	assert.Contains(t, ql.queries[0], "mood_tags LIKE ?")
}
