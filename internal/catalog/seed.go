package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"foodiebot/internal/types"
)

// SeedFromFile loads a JSON array of products into the catalog, replacing
// existing rows with the same product id. Returns the number of products
// loaded.
func (s *Store) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var products []types.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	for i, p := range products {
		if p.ProductID == "" {
			return 0, fmt.Errorf("seed entry %d has no product_id", i)
		}
		if p.PopularityScore == 0 {
			p.PopularityScore = 50
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO products (
				product_id, name, category, description, ingredients, price, calories, prep_time,
				dietary_tags, mood_tags, allergens, popularity_score, chef_special, limited_time,
				spice_level, image_url, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ProductID, p.Name, p.Category, p.Description, marshalTags(p.Ingredients),
			p.Price, p.Calories, p.PrepTime, marshalTags(p.DietaryTags), marshalTags(p.MoodTags),
			marshalTags(p.Allergens), p.PopularityScore, boolToInt(p.ChefSpecial),
			boolToInt(p.LimitedTime), p.SpiceLevel, p.ImageURL, time.Now().UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to seed product %s: %w", p.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	return len(products), nil
}
