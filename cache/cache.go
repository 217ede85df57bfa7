// Package cache stores aggregated search results keyed by normalized keyword.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aluiziolira/go-scrape-prices/models"
)

// Cache is a best-effort result store. Backend failures behave as misses.
type Cache interface {
	Get(ctx context.Context, key string) (*models.SearchResult, bool)
	Set(ctx context.Context, key string, result *models.SearchResult)
}

// Key returns the cache key for a search keyword.
func Key(keyword string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(keyword))
}

// Memory is an in-process LRU with per-entry expiry.
type Memory struct {
	lru *expirable.LRU[string, *models.SearchResult]
}

// NewMemory holds up to size results for ttl each. A zero ttl never expires.
func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, *models.SearchResult](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) (*models.SearchResult, bool) {
	return m.lru.Get(key)
}

func (m *Memory) Set(_ context.Context, key string, result *models.SearchResult) {
	if result == nil {
		return
	}
	m.lru.Add(key, result)
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}
