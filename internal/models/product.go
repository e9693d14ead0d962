package models

import (
	"time"
)

type ListingStatus string

const (
	StatusPending    ListingStatus = "pending"
	StatusProcessing ListingStatus = "processing"
	StatusCompleted  ListingStatus = "completed"
	StatusFailed     ListingStatus = "failed"
	StatusBlocked    ListingStatus = "blocked"
)

// Listing is a product reference collected from a catalog page, waiting for
// detail-page enrichment.
type Listing struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Title     string        `json:"title,omitempty"`
	Price     string        `json:"price,omitempty"`
	Status    ListingStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	AddedAt   time.Time     `json:"added_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewListing(id, url string) *Listing {
	now := time.Now()
	return &Listing{
		ID:        id,
		URL:       url,
		Status:    StatusPending,
		AddedAt:   now,
		UpdatedAt: now,
	}
}

// Product is the enriched record produced from a detail page.
type Product struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Brand       string    `json:"brand,omitempty"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price,omitempty"`
	Images      []string  `json:"images,omitempty"`
	ProxyUsed   string    `json:"proxy_used,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

func NewProduct(id, url string) *Product {
	return &Product{
		ID:        id,
		URL:       url,
		Images:    make([]string, 0),
		ScrapedAt: time.Now(),
	}
}

func (p *Product) Validate() []string {
	var problems []string
	if p.ID == "" {
		problems = append(problems, "id is required")
	}
	if p.URL == "" {
		problems = append(problems, "url is required")
	}
	if p.Title == "" {
		problems = append(problems, "title is required")
	}
	return problems
}
