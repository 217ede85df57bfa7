package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds aggregator configuration.
type Config struct {
	Sources        []string
	UserAgents     []string
	Parallelism    int
	RequestTimeout time.Duration
	SourceTimeout  time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RetryJitter    time.Duration
	MatchThreshold float64
	CacheTTL       time.Duration
	CacheSize      int
	DedupeMaxSize  int
	RedisAddr      string
	HTTPAddr       string
	MetricsAddr    string
	OutputFile     string
	OutputFormat   string // json, csv, or dual
	Verbose        bool
}

// DefaultConfig returns the defaults used against the live stores.
func DefaultConfig() *Config {
	return &Config{
		Sources:        []string{"daraz", "telemart", "shophive", "mega", "priceoye"},
		UserAgents:     DefaultUserAgents(),
		Parallelism:    5,
		RequestTimeout: 15 * time.Second,
		SourceTimeout:  30 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   time.Second,
		RetryJitter:    time.Second,
		MatchThreshold: 0.75,
		CacheTTL:       time.Hour,
		CacheSize:      512,
		DedupeMaxSize:  10000,
		RedisAddr:      "",
		HTTPAddr:       ":8080",
		MetricsAddr:    "",
		OutputFile:     "output/results.json",
		OutputFormat:   "json",
		Verbose:        false,
	}
}

// DefaultUserAgents is the identity pool rotated by the fetcher.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
}

// Load returns DefaultConfig overlaid with values from .env and PRICES_* variables.
func Load() (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v, ok := EnvList("PRICES_SOURCES"); ok {
		cfg.Sources = v
	}
	if v, ok := EnvList("PRICES_USER_AGENTS"); ok {
		cfg.UserAgents = v
	}
	if v, ok := EnvString("PRICES_REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := EnvString("PRICES_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := EnvString("PRICES_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := EnvString("PRICES_OUTPUT"); ok {
		cfg.OutputFile = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PRICES_PARALLEL", &cfg.Parallelism},
		{"PRICES_MAX_RETRIES", &cfg.MaxRetries},
		{"PRICES_CACHE_SIZE", &cfg.CacheSize},
	}
	for _, item := range ints {
		v, ok, err := EnvInt(item.key)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", item.key, err)
		}
		if ok {
			*item.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PRICES_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"PRICES_SOURCE_TIMEOUT", &cfg.SourceTimeout},
		{"PRICES_RETRY_BACKOFF", &cfg.RetryBackoff},
		{"PRICES_RETRY_JITTER", &cfg.RetryJitter},
		{"PRICES_CACHE_TTL", &cfg.CacheTTL},
	}
	for _, item := range durations {
		v, ok, err := EnvDuration(item.key)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", item.key, err)
		}
		if ok {
			*item.dst = v
		}
	}

	threshold, ok, err := EnvFloat("PRICES_MATCH_THRESHOLD")
	if err != nil {
		return nil, fmt.Errorf("invalid PRICES_MATCH_THRESHOLD: %w", err)
	}
	if ok {
		cfg.MatchThreshold = threshold
	}

	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("sources cannot be empty")
	}
	for _, s := range c.Sources {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("sources cannot contain empty names")
		}
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryJitter < 0 {
		return fmt.Errorf("retry jitter cannot be negative")
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be in (0, 1], got %v", c.MatchThreshold)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	return nil
}
