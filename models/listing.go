// Package models defines the canonical records produced by the aggregator.
package models

import "time"

// Listing is one store's offer for a product at a point in time.
type Listing struct {
	Name          string  `json:"name"`
	Price         int     `json:"price"`
	OriginalPrice *int    `json:"originalPrice,omitempty"`
	URL           string  `json:"url"`
	ImageURL      string  `json:"imageUrl"`
	Rating        float64 `json:"rating"`
	ReviewsCount  int     `json:"reviewsCount"`
	Source        string  `json:"store"`
	InStock       bool    `json:"inStock"`
	Category      string  `json:"category,omitempty"`
}

// SetOriginalPrice records original only when it is strictly above the current price.
func (l *Listing) SetOriginalPrice(original int) {
	if original > l.Price {
		l.OriginalPrice = &original
		return
	}
	l.OriginalPrice = nil
}

// ProductGroup is a cluster of listings believed to reference the same product.
type ProductGroup struct {
	Name       string    `json:"name"`
	BestPrice  int       `json:"best_price"`
	BestSource string    `json:"best_store"`
	ImageURL   string    `json:"image_url"`
	Category   string    `json:"category"`
	Listings   []Listing `json:"listings"`
}

// ProductPage is the result of scraping a single product URL.
type ProductPage struct {
	Price   int  `json:"price"`
	InStock bool `json:"inStock"`
}

// SourceFailure reports a source that could not be queried.
type SourceFailure struct {
	Source string `json:"store"`
	Error  string `json:"error"`
}

// SearchResult holds the outcome of one aggregation pass.
type SearchResult struct {
	ID        string          `json:"id"`
	Keyword   string          `json:"keyword"`
	Origin    string          `json:"source"`
	Listings  []Listing       `json:"results"`
	Groups    []ProductGroup  `json:"groups"`
	Failures  []SourceFailure `json:"failures,omitempty"`
	Succeeded int             `json:"stores_succeeded"`
	StartTime time.Time       `json:"started_at"`
	EndTime   time.Time       `json:"finished_at"`
}

// Count returns the number of listings in the result.
func (r *SearchResult) Count() int {
	if r == nil {
		return 0
	}
	return len(r.Listings)
}
