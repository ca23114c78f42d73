package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"foodiebot/internal/types"
)

// queryCap bounds the number of candidate rows any single catalog query can
// return, keeping ranking cost independent of catalog size.
const queryCap = 200

// Store is the sqlite-backed catalog.
type Store struct {
	db       *sql.DB
	logger   *zap.Logger
	queryLog QueryLogger
}

// NewStore opens (or creates) the catalog database at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	s := &Store{db: db, logger: logger.Named("catalog")}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetQueryLogger wires query timing capture. Safe to leave unset.
func (s *Store) SetQueryLogger(ql QueryLogger) {
	s.queryLog = ql
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		product_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		description TEXT,
		ingredients TEXT,
		price REAL DEFAULT 0,
		calories INTEGER DEFAULT 0,
		prep_time TEXT,
		dietary_tags TEXT,
		mood_tags TEXT,
		allergens TEXT,
		popularity_score INTEGER DEFAULT 50,
		chef_special INTEGER DEFAULT 0,
		limited_time INTEGER DEFAULT 0,
		spice_level INTEGER DEFAULT 0,
		image_url TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_products_price ON products(price);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

const productColumns = `product_id, name, category, description, ingredients, price, calories,
	prep_time, dietary_tags, mood_tags, allergens, popularity_score, chef_special,
	limited_time, spice_level, image_url, created_at`

// Query returns products matching the predicate, capped at min(limit, 200).
func (s *Store) Query(ctx context.Context, pred Predicate, limit int) ([]types.Product, error) {
	if limit <= 0 || limit > queryCap {
		limit = queryCap
	}
	where, params := pred.Clauses()
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s LIMIT ?", productColumns, where)
	params = append(params, limit)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, params...)
	if s.queryLog != nil {
		s.queryLog.RecordQuery(query, params, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// LookupByID returns a single product, or types.ErrNotFound.
func (s *Store) LookupByID(ctx context.Context, productID string) (types.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE product_id = ?", productColumns)
	row := s.db.QueryRowContext(ctx, query, productID)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return types.Product{}, fmt.Errorf("product %s: %w", productID, types.ErrNotFound)
	}
	if err != nil {
		return types.Product{}, fmt.Errorf("product lookup failed: %w", err)
	}
	return p, nil
}

// SameCategory returns up to limit products in category, excluding
// excludeID, ordered by popularity descending.
func (s *Store) SameCategory(ctx context.Context, category, excludeID string, limit int) ([]types.Product, error) {
	if limit <= 0 || limit > queryCap {
		limit = queryCap
	}
	query := fmt.Sprintf(
		"SELECT %s FROM products WHERE category = ? AND product_id <> ? ORDER BY popularity_score DESC LIMIT ?",
		productColumns)

	rows, err := s.db.QueryContext(ctx, query, category, excludeID, limit)
	if err != nil {
		return nil, fmt.Errorf("category query failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Search matches q against product names and descriptions.
func (s *Store) Search(ctx context.Context, q string, limit int) ([]types.Product, error) {
	if limit <= 0 || limit > queryCap {
		limit = queryCap
	}
	query := fmt.Sprintf(
		"SELECT %s FROM products WHERE name LIKE ? OR description LIKE ? LIMIT ?", productColumns)
	pattern := "%" + q + "%"

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, pattern, pattern, limit)
	if s.queryLog != nil {
		s.queryLog.RecordQuery(query, []any{pattern}, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Create inserts a product. A missing id is minted from the current time.
func (s *Store) Create(ctx context.Context, p types.Product) (string, error) {
	if p.ProductID == "" {
		p.ProductID = fmt.Sprintf("P%06d", time.Now().UnixMilli()%1000000)
	}
	if p.PopularityScore == 0 {
		p.PopularityScore = 50
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
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
		return "", fmt.Errorf("failed to create product: %w", err)
	}
	return p.ProductID, nil
}

// Update replaces a product's fields. Returns types.ErrNotFound for an
// unknown id.
func (s *Store) Update(ctx context.Context, p types.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET
			name=?, category=?, description=?, ingredients=?, price=?, calories=?, prep_time=?,
			dietary_tags=?, mood_tags=?, allergens=?, popularity_score=?, chef_special=?,
			limited_time=?, spice_level=?, image_url=?
		WHERE product_id=?`,
		p.Name, p.Category, p.Description, marshalTags(p.Ingredients), p.Price, p.Calories,
		p.PrepTime, marshalTags(p.DietaryTags), marshalTags(p.MoodTags), marshalTags(p.Allergens),
		p.PopularityScore, boolToInt(p.ChefSpecial), boolToInt(p.LimitedTime), p.SpiceLevel,
		p.ImageURL, p.ProductID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s: %w", p.ProductID, types.ErrNotFound)
	}
	return nil
}

// Delete removes a product. Returns types.ErrNotFound for an unknown id.
func (s *Store) Delete(ctx context.Context, productID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE product_id = ?", productID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s: %w", productID, types.ErrNotFound)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (types.Product, error) {
	var p types.Product
	var ingredients, dietary, mood, allergens sql.NullString
	var category, description, prepTime, imageURL sql.NullString
	var createdAt sql.NullTime
	var chefSpecial, limitedTime int

	err := sc.Scan(
		&p.ProductID, &p.Name, &category, &description, &ingredients, &p.Price, &p.Calories,
		&prepTime, &dietary, &mood, &allergens, &p.PopularityScore, &chefSpecial,
		&limitedTime, &p.SpiceLevel, &imageURL, &createdAt,
	)
	if err != nil {
		return types.Product{}, err
	}

	p.Category = category.String
	p.Description = description.String
	p.PrepTime = prepTime.String
	p.ImageURL = imageURL.String
	p.ChefSpecial = chefSpecial != 0
	p.LimitedTime = limitedTime != 0
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	p.Ingredients = unmarshalTags(ingredients.String)
	p.DietaryTags = unmarshalTags(dietary.String)
	p.MoodTags = unmarshalTags(mood.String)
	p.Allergens = unmarshalTags(allergens.String)
	return p, nil
}

func scanProducts(rows *sql.Rows) ([]types.Product, error) {
	var out []types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// marshalTags serializes a tag set for storage as a JSON array column.
func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	data, _ := json.Marshal(tags)
	return string(data)
}

// unmarshalTags deserializes a stored tag column; malformed or empty
// columns yield an empty set.
func unmarshalTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
