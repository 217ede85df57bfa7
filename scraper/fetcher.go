package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-prices/config"
	"github.com/aluiziolira/go-scrape-prices/ratelimit"
	"github.com/gocolly/colly/v2"
)

const (
	bodyKey   = "body"
	statusKey = "status"

	// AcceptHTML is the default Accept header for page fetches.
	AcceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	// AcceptJSON is used for structured API routes.
	AcceptJSON = "application/json"
)

// Rand is the randomness consumed by identity rotation and backoff jitter.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRand injects the random source.
func WithRand(r Rand) Option {
	return func(f *Fetcher) {
		if r != nil {
			f.rand = r
		}
	}
}

// WithTransport replaces the HTTP transport of the underlying collector.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		if rt != nil {
			f.collector.WithTransport(rt)
		}
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// RequestOption customizes a single Fetch call.
type RequestOption func(*request)

type request struct {
	maxRetries int
	accept     string
}

// WithMaxRetries overrides the configured retry count for one call.
func WithMaxRetries(n int) RequestOption {
	return func(r *request) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithAccept sets the Accept header for one call.
func WithAccept(accept string) RequestOption {
	return func(r *request) {
		if accept != "" {
			r.accept = accept
		}
	}
}

// Fetcher issues rate-limited GET requests for one source, retrying transient
// failures with jittered backoff and a fresh identity on every attempt.
type Fetcher struct {
	source     string
	limiter    *ratelimit.Limiter
	collector  *colly.Collector
	userAgents []string
	maxRetries int
	backoff    time.Duration
	jitter     time.Duration
	metrics    *Metrics
	sleep      func(context.Context, time.Duration) error

	randMu sync.Mutex
	rand   Rand
}

// NewFetcher builds a fetcher bound to limiter.
func NewFetcher(source string, limiter *ratelimit.Limiter, cfg *config.Config, metrics *Metrics, opts ...Option) (*Fetcher, error) {
	if limiter == nil {
		return nil, fmt.Errorf("fetcher %s: limiter is required", source)
	}
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("fetcher %s: user agent pool is empty", source)
	}

	collector := colly.NewCollector(colly.AllowURLRevisit())
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(cfg.RequestTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(bodyKey, r.Body)
		r.Ctx.Put(statusKey, r.StatusCode)
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(statusKey, r.StatusCode)
		}
	})

	userAgents := make([]string, len(cfg.UserAgents))
	copy(userAgents, cfg.UserAgents)

	f := &Fetcher{
		source:     source,
		limiter:    limiter,
		collector:  collector,
		userAgents: userAgents,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		jitter:     cfg.RetryJitter,
		metrics:    metrics,
		sleep:      sleepContext,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Source returns the store this fetcher is bound to.
func (f *Fetcher) Source() string {
	return f.source
}

// Fetch returns the body at rawURL. The limiter is consulted once per call;
// up to maxRetries+1 attempts are made. The caller's ctx bounds the whole
// sequence, including backoff sleeps.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts ...RequestOption) ([]byte, error) {
	req := request{maxRetries: f.maxRetries, accept: AcceptHTML}
	for _, opt := range opts {
		opt(&req)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Source: f.source, URL: rawURL, Err: err}
	}

	attempts := req.maxRetries + 1
	made := 0
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		body, err := f.attempt(ctx, rawURL, req.accept)
		if err == nil {
			return body, nil
		}
		lastErr = err
		kind := ErrorKind(err)
		f.metrics.IncError(f.source, kind.String())

		if attempt == attempts || ctx.Err() != nil {
			break
		}

		delay := f.backoffDelay()
		f.metrics.IncRetries(f.source)
		slog.Debug("retrying fetch",
			slog.String("store", f.source),
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.String("category", kind.String()),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, &FetchError{
				Source:   f.source,
				URL:      rawURL,
				Attempts: attempt,
				Err:      fmt.Errorf("%w (last attempt: %w)", err, lastErr),
			}
		}
	}

	return nil, &FetchError{Source: f.source, URL: rawURL, Attempts: made, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyError(err, 0)
	}

	hdr := f.identity(accept)
	cctx := colly.NewContext()
	done := make(chan error, 1)
	start := time.Now()
	f.metrics.IncRequest(f.source, "started")

	go func() {
		done <- f.collector.Request(http.MethodGet, rawURL, nil, cctx, hdr)
	}()

	select {
	case <-ctx.Done():
		f.metrics.IncRequest(f.source, "abandoned")
		return nil, classifyError(ctx.Err(), 0)
	case err := <-done:
		f.metrics.ObserveDuration(f.source, time.Since(start))
		status, _ := cctx.GetAny(statusKey).(int)
		if err != nil {
			return nil, classifyError(err, status)
		}
		body, _ := cctx.GetAny(bodyKey).([]byte)
		f.metrics.IncRequest(f.source, "completed")
		return body, nil
	}
}

func (f *Fetcher) identity(accept string) http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", f.userAgents[f.intn(len(f.userAgents))])
	hdr.Set("Accept", accept)
	hdr.Set("Accept-Language", "en-US,en;q=0.9")
	return hdr
}

func (f *Fetcher) backoffDelay() time.Duration {
	delay := f.backoff
	if f.jitter > 0 {
		delay += time.Duration(f.float64() * float64(f.jitter))
	}
	return delay
}

func (f *Fetcher) intn(n int) int {
	f.randMu.Lock()
	defer f.randMu.Unlock()
	return f.rand.Intn(n)
}

func (f *Fetcher) float64() float64 {
	f.randMu.Lock()
	defer f.randMu.Unlock()
	return f.rand.Float64()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
