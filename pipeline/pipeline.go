// Package pipeline aggregates listings from every configured store into one
// ranked, grouped result and writes results to disk.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-scrape-prices/cache"
	"github.com/aluiziolira/go-scrape-prices/config"
	"github.com/aluiziolira/go-scrape-prices/matcher"
	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/parser"
	"github.com/aluiziolira/go-scrape-prices/ranking"
	"github.com/aluiziolira/go-scrape-prices/scraper"
	"github.com/aluiziolira/go-scrape-prices/sources"
)

// Result origins.
const (
	OriginLive  = "live"
	OriginCache = "cache"
)

var (
	// ErrEmptyKeyword is returned by Search for blank keywords.
	ErrEmptyKeyword = errors.New("keyword is empty")
	// ErrAllSourcesFailed is returned when no store could be queried. The
	// individual store errors are joined into the returned error.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithCache enables result caching.
func WithCache(c cache.Cache) Option {
	return func(a *Aggregator) {
		a.cache = c
	}
}

// WithRanking replaces the default ranking options.
func WithRanking(opts ranking.Options) Option {
	return func(a *Aggregator) {
		a.rankOpts = opts
	}
}

// Aggregator fans a search out to every store, then merges, groups and ranks
// the listings. Store queries run in parallel; merging and grouping do not.
type Aggregator struct {
	adapters []sources.Adapter
	byName   map[string]sources.Adapter

	cache         cache.Cache
	rankOpts      ranking.Options
	threshold     float64
	parallelism   int
	sourceTimeout time.Duration
	dedupeSize    int

	metrics *scraper.Metrics
	stats   stats
}

// NewAggregator builds an aggregator over adapters, queried in the given order.
func NewAggregator(adapters []sources.Adapter, cfg *config.Config, metrics *scraper.Metrics, opts ...Option) (*Aggregator, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("aggregator needs at least one source")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &Aggregator{
		adapters:      adapters,
		byName:        make(map[string]sources.Adapter, len(adapters)),
		rankOpts:      ranking.DefaultOptions(),
		threshold:     cfg.MatchThreshold,
		parallelism:   cfg.Parallelism,
		sourceTimeout: cfg.SourceTimeout,
		dedupeSize:    cfg.DedupeMaxSize,
		metrics:       metrics,
		stats:         newStats(),
	}
	for _, adapter := range adapters {
		a.byName[strings.ToLower(adapter.Name())] = adapter
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Sources returns the store names in query order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.adapters))
	for i, adapter := range a.adapters {
		names[i] = adapter.Name()
	}
	return names
}

type outcome struct {
	listings []models.Listing
	err      error
}

// Search queries every store for keyword. Stores that fail are reported in
// the result's Failures; an error is returned only when keyword is blank or
// no store succeeded.
func (a *Aggregator) Search(ctx context.Context, keyword string) (*models.SearchResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, ErrEmptyKeyword
	}
	a.stats.incrementSearches()

	key := cache.Key(keyword)
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, key); ok {
			a.metrics.IncCache("hit")
			a.stats.incrementCacheHits()
			hit := *cached
			hit.Origin = OriginCache
			return &hit, nil
		}
		a.metrics.IncCache("miss")
	}

	result := &models.SearchResult{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Origin:    OriginLive,
		StartTime: time.Now(),
	}

	outcomes := a.collect(ctx, keyword)

	var merged []models.Listing
	var errs []error
	for i, out := range outcomes {
		name := a.adapters[i].Name()
		if out.err != nil {
			a.metrics.IncSourceFailure(name)
			slog.Warn("source failed",
				slog.String("store", name),
				slog.String("keyword", keyword),
				slog.Any("error", out.err),
			)
			result.Failures = append(result.Failures, models.SourceFailure{Source: name, Error: out.err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", name, out.err))
			continue
		}
		result.Succeeded++
		merged = append(merged, out.listings...)
	}
	if result.Succeeded == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}

	listings := a.prepare(merged)
	result.Groups = matcher.Group(listings, a.threshold)
	result.Listings = ranking.Rank(listings, a.rankOpts)
	result.EndTime = time.Now()

	slog.Info("search complete",
		slog.String("keyword", keyword),
		slog.Int("listings", len(result.Listings)),
		slog.Int("groups", len(result.Groups)),
		slog.Int("failed_stores", len(result.Failures)),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)

	if a.cache != nil {
		a.cache.Set(ctx, key, result)
	}
	return result, nil
}

// collect runs every adapter under its own deadline. Results are stored by
// adapter index so merge order does not depend on completion order.
func (a *Aggregator) collect(ctx context.Context, keyword string) []outcome {
	outcomes := make([]outcome, len(a.adapters))

	var g errgroup.Group
	g.SetLimit(a.parallelism)
	for i, adapter := range a.adapters {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
			defer cancel()

			start := time.Now()
			listings, err := adapter.Search(sctx, keyword)
			outcomes[i] = outcome{listings: listings, err: err}

			slog.Debug("source finished",
				slog.String("store", adapter.Name()),
				slog.Int("listings", len(listings)),
				slog.Duration("duration", time.Since(start)),
				slog.Bool("ok", err == nil),
			)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// prepare validates, normalizes and de-duplicates listings by URL, keeping
// the first occurrence.
func (a *Aggregator) prepare(listings []models.Listing) []models.Listing {
	seen, err := lru.New[string, struct{}](a.dedupeSize)
	if err != nil {
		slog.Error("dedupe cache init failed", slog.Any("error", err))
		seen = nil
	}

	out := make([]models.Listing, 0, len(listings))
	for i := range listings {
		listing := listings[i]
		if err := parser.ValidateListing(&listing); err != nil {
			a.stats.addValidation("invalid_record")
			continue
		}
		parser.NormalizeListing(&listing)

		if seen != nil && listing.URL != "" {
			if seen.Contains(listing.URL) {
				a.stats.addValidation("duplicate_url")
				continue
			}
			seen.Add(listing.URL, struct{}{})
		}

		a.stats.incrementProcessed()
		out = append(out, listing)
	}
	return out
}

// ProductPage fetches one product page from the named store.
func (a *Aggregator) ProductPage(ctx context.Context, store, url string) (models.ProductPage, error) {
	adapter, ok := a.byName[strings.ToLower(strings.TrimSpace(store))]
	if !ok {
		return models.ProductPage{}, fmt.Errorf("%w: %q", sources.ErrUnknownSource, store)
	}

	sctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	page, err := adapter.FetchProductPage(sctx, url)
	if err != nil {
		a.metrics.IncSourceFailure(adapter.Name())
		return models.ProductPage{}, err
	}
	return page, nil
}

// GetMetrics returns a snapshot of the internal counters.
func (a *Aggregator) GetMetrics() map[string]interface{} {
	return a.stats.snapshot()
}

type stats struct {
	mu         sync.Mutex
	searches   int64
	cacheHits  int64
	processed  int64
	validation map[string]int
}

func newStats() stats {
	return stats{
		validation: make(map[string]int),
	}
}

func (s *stats) incrementSearches() {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()
}

func (s *stats) incrementCacheHits() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

func (s *stats) incrementProcessed() {
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
}

func (s *stats) addValidation(kind string) {
	s.mu.Lock()
	s.validation[kind]++
	s.mu.Unlock()
}

func (s *stats) snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyValidation := make(map[string]int, len(s.validation))
	for k, v := range s.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"searches":           s.searches,
		"cache_hits":         s.cacheHits,
		"processed_listings": s.processed,
		"validation_errors":  copyValidation,
	}
}
