package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mkessler/catalog-crawler/internal/models"
)

// FileStore is a JSON-file-backed store for listings and enriched
// products. It is the default persistence for CLI runs; the pgx-backed
// store takes over when a database is configured.
type FileStore struct {
	mu       sync.RWMutex
	filename string
	data     *fileData
}

type fileData struct {
	Listings map[string]*models.Listing `json:"listings"`
	Products map[string]*models.Product `json:"products"`
}

func NewFileStore(filename string) (*FileStore, error) {
	fs := &FileStore{
		filename: filename,
		data: &fileData{
			Listings: make(map[string]*models.Listing),
			Products: make(map[string]*models.Product),
		},
	}
	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) SaveListing(_ context.Context, listing *models.Listing) error {
	if listing.ID == "" {
		return fmt.Errorf("listing id is required")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if existing, ok := fs.data.Listings[listing.ID]; ok {
		// Keep the original AddedAt across re-crawls.
		listing.AddedAt = existing.AddedAt
	}
	listing.UpdatedAt = time.Now()
	fs.data.Listings[listing.ID] = listing
	return fs.save()
}

func (fs *FileStore) UpdateListingStatus(_ context.Context, id string, status models.ListingStatus, errMsg string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	listing, ok := fs.data.Listings[id]
	if !ok {
		return fmt.Errorf("listing not found: %s", id)
	}
	listing.Status = status
	listing.Error = errMsg
	listing.UpdatedAt = time.Now()
	return fs.save()
}

func (fs *FileStore) SaveProduct(_ context.Context, product *models.Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.data.Products[product.ID] = product
	return fs.save()
}

func (fs *FileStore) GetListing(id string) (*models.Listing, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	listing, ok := fs.data.Listings[id]
	return listing, ok
}

func (fs *FileStore) GetProduct(id string) (*models.Product, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	product, ok := fs.data.Products[id]
	return product, ok
}

// GetPending returns listings that still await enrichment.
func (fs *FileStore) GetPending() []*models.Listing {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var pending []*models.Listing
	for _, listing := range fs.data.Listings {
		if listing.Status == models.StatusPending {
			pending = append(pending, listing)
		}
	}
	return pending
}

// GetStats counts listings per status plus a "total" entry.
func (fs *FileStore) GetStats() map[string]int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	stats := make(map[string]int)
	for _, listing := range fs.data.Listings {
		stats[string(listing.Status)]++
	}
	stats["total"] = len(fs.data.Listings)
	return stats
}

// save writes to a temp file and renames it into place so a crash mid-write
// never corrupts the store. Callers must hold the write lock.
func (fs *FileStore) save() error {
	data, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := fs.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpFile, fs.filename)
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, fs.data)
}
