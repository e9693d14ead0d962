package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mkessler/catalog-crawler/internal/models"
)

var ErrListingNotFound = errors.New("listing not found")

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	price       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	error       TEXT NOT NULL DEFAULT '',
	added_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY REFERENCES listings(id),
	url         TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	brand       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	price       TEXT NOT NULL DEFAULT '',
	images      TEXT[] NOT NULL DEFAULT '{}',
	proxy_used  TEXT NOT NULL DEFAULT '',
	scraped_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
`

// ProductStore is the pgx-backed implementation of the crawler's Store.
type ProductStore struct {
	db *DB
}

func NewProductStore(ctx context.Context, db *DB) (*ProductStore, error) {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &ProductStore{db: db}, nil
}

// SaveListing inserts or, on re-crawl, resets an existing listing to the
// incoming state so it goes through enrichment again. Only added_at
// survives the conflict.
func (s *ProductStore) SaveListing(ctx context.Context, listing *models.Listing) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO listings (id, url, title, price, status, error, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET url = EXCLUDED.url, title = EXCLUDED.title, price = EXCLUDED.price,
		    status = EXCLUDED.status, error = EXCLUDED.error,
		    updated_at = now()`,
		listing.ID, listing.URL, listing.Title, listing.Price, listing.Status, listing.Error)
	if err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	return nil
}

func (s *ProductStore) UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus, errMsg string) error {
	tag, err := s.db.pool.Exec(ctx, `
		UPDATE listings SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`,
		id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update listing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrListingNotFound, id)
	}
	return nil
}

func (s *ProductStore) SaveProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.pool.Exec(ctx, `
		INSERT INTO products (id, url, title, brand, description, price, images, proxy_used, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET url = EXCLUDED.url, title = EXCLUDED.title, brand = EXCLUDED.brand,
		    description = EXCLUDED.description, price = EXCLUDED.price,
		    images = EXCLUDED.images, proxy_used = EXCLUDED.proxy_used,
		    scraped_at = EXCLUDED.scraped_at`,
		product.ID, product.URL, product.Title, product.Brand, product.Description,
		product.Price, product.Images, product.ProxyUsed, product.ScrapedAt)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *ProductStore) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	listing := &models.Listing{}
	err := s.db.pool.QueryRow(ctx, `
		SELECT id, url, title, price, status, error, added_at, updated_at
		FROM listings WHERE id = $1`, id).
		Scan(&listing.ID, &listing.URL, &listing.Title, &listing.Price,
			&listing.Status, &listing.Error, &listing.AddedAt, &listing.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrListingNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// GetPending returns up to limit listings that still await enrichment,
// oldest first.
func (s *ProductStore) GetPending(ctx context.Context, limit int) ([]*models.Listing, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, url, title, price, status, error, added_at, updated_at
		FROM listings WHERE status = $1
		ORDER BY added_at
		LIMIT $2`, models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending listings: %w", err)
	}
	defer rows.Close()

	var pending []*models.Listing
	for rows.Next() {
		listing := &models.Listing{}
		if err := rows.Scan(&listing.ID, &listing.URL, &listing.Title, &listing.Price,
			&listing.Status, &listing.Error, &listing.AddedAt, &listing.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		pending = append(pending, listing)
	}
	return pending, rows.Err()
}

func (s *ProductStore) GetStats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.pool.Query(ctx, `SELECT status, count(*) FROM listings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats[status] = count
		total += count
	}
	stats["total"] = total
	return stats, rows.Err()
}
