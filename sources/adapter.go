// Package sources implements one adapter per store behind a common contract.
// Variants register themselves by id and are built through New.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-prices/config"
	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/ratelimit"
	"github.com/aluiziolira/go-scrape-prices/scraper"
)

// ErrUnknownSource is returned by New for ids with no registered constructor.
var ErrUnknownSource = errors.New("unknown source")

var (
	errMissingName  = errors.New("missing name")
	errMissingPrice = errors.New("missing price")
)

// Adapter queries a single store.
type Adapter interface {
	// Name is the store label written into every listing.
	Name() string
	// Search returns the store's listings for keyword. An empty slice with a
	// nil error means the store had no matches.
	Search(ctx context.Context, keyword string) ([]models.Listing, error)
	// FetchProductPage reads the current price and stock state of one product.
	FetchProductPage(ctx context.Context, url string) (models.ProductPage, error)
}

// Deps are the collaborators handed to every constructor.
type Deps struct {
	Config    *config.Config
	Metrics   *scraper.Metrics
	Transport http.RoundTripper
	// BaseURL replaces the store's base URL, mostly for tests.
	BaseURL string
	// Limiter replaces the per-store limiter built from the store's delay.
	Limiter *ratelimit.Limiter
	Rand    scraper.Rand
	Sleep   func(context.Context, time.Duration) error
}

// Constructor builds an adapter from its dependencies.
type Constructor func(Deps) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a constructor available under id. It panics on duplicates.
func Register(id string, c Constructor) {
	id = normalizeID(id)
	if id == "" || c == nil {
		panic("sources: Register requires an id and a constructor")
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[id]; dup {
		panic("sources: Register called twice for " + id)
	}
	registry[id] = c
}

// New builds the adapter registered under id.
func New(id string, d Deps) (Adapter, error) {
	registryMu.RLock()
	c, ok := registry[normalizeID(id)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, id)
	}
	if d.Config == nil {
		d.Config = config.DefaultConfig()
	}
	return c(d)
}

// NewAll builds adapters for ids in order, stopping at the first error.
func NewAll(ids []string, d Deps) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		a, err := New(id, d)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// Available lists registered ids in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func newFetcher(store string, delay time.Duration, d Deps) (*scraper.Fetcher, error) {
	cfg := d.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.New(delay)
	}
	return scraper.NewFetcher(store, limiter, cfg, d.Metrics,
		scraper.WithTransport(d.Transport),
		scraper.WithRand(d.Rand),
		scraper.WithSleep(d.Sleep),
	)
}
