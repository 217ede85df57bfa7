package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-prices/config"
	"github.com/aluiziolira/go-scrape-prices/models"
	"github.com/aluiziolira/go-scrape-prices/parser"
	"github.com/aluiziolira/go-scrape-prices/pipeline"
	"github.com/aluiziolira/go-scrape-prices/scraper"
	"github.com/aluiziolira/go-scrape-prices/sources"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.run(ctx, os.Args[1:]))
}

// app carries the process streams and the source dependencies so the CLI can
// be driven from tests.
type app struct {
	stdout io.Writer
	stderr io.Writer
	deps   sources.Deps
}

type options struct {
	store       string
	keyword     string
	url         string
	mode        string
	sources     string
	threshold   float64
	maxRetries  int
	parallelism int
	output      string
	format      string
	metricsAddr string
	verbose     bool
}

func (a *app) run(ctx context.Context, args []string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(a.stderr, "invalid configuration: %v\n", err)
		return exitUsage
	}

	opts, err := a.parseFlags(cfg, args)
	if err != nil {
		return exitUsage
	}

	logger, level := newLogger(a.stderr, opts.verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	applyOptions(cfg, opts)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "invalid configuration: %v\n", err)
		return exitUsage
	}

	metrics := scraper.NewMetrics()
	deps := a.deps
	deps.Config = cfg
	deps.Metrics = metrics

	switch opts.mode {
	case "search":
		return a.search(ctx, cfg, deps, opts)
	case "product":
		return a.product(ctx, cfg, deps, opts)
	case "compare":
		return a.compare(ctx, cfg, deps, opts)
	default:
		fmt.Fprintf(a.stderr, "unknown mode %q (want search, product or compare)\n", opts.mode)
		return exitUsage
	}
}

func (a *app) parseFlags(cfg *config.Config, args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	fs.StringVar(&opts.store, "store", "", "Store id: "+strings.Join(sources.Available(), ", "))
	fs.StringVar(&opts.keyword, "keyword", "", "Search keyword")
	fs.StringVar(&opts.url, "url", "", "Product URL (product mode)")
	fs.StringVar(&opts.mode, "mode", "search", "Mode: search, product, or compare")
	fs.StringVar(&opts.sources, "sources", strings.Join(cfg.Sources, ","), "Comma-separated store ids (compare mode)")
	fs.Float64Var(&opts.threshold, "threshold", cfg.MatchThreshold, "Name similarity needed to group listings")
	fs.IntVar(&opts.maxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per request")
	fs.IntVar(&opts.parallelism, "parallel", cfg.Parallelism, "Stores queried concurrently (compare mode)")
	fs.StringVar(&opts.output, "output", cfg.OutputFile, "Output file path (compare mode)")
	fs.StringVar(&opts.format, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&opts.verbose, "v", cfg.Verbose, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.mode = strings.ToLower(strings.TrimSpace(opts.mode))
	return opts, nil
}

func applyOptions(cfg *config.Config, opts options) {
	cfg.MatchThreshold = opts.threshold
	cfg.MaxRetries = opts.maxRetries
	cfg.Parallelism = opts.parallelism
	cfg.OutputFile = opts.output
	cfg.OutputFormat = strings.ToLower(opts.format)
	cfg.MetricsAddr = opts.metricsAddr
	cfg.Verbose = opts.verbose
	var ids []string
	for _, id := range strings.Split(opts.sources, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	cfg.Sources = ids
}

func (a *app) search(ctx context.Context, cfg *config.Config, deps sources.Deps, opts options) int {
	if opts.store == "" || strings.TrimSpace(opts.keyword) == "" {
		fmt.Fprintln(a.stderr, "search mode needs -store and -keyword")
		return exitUsage
	}
	adapter, err := sources.New(opts.store, deps)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitUsage
	}

	sctx, cancel := context.WithTimeout(ctx, cfg.SourceTimeout)
	defer cancel()

	listings, err := adapter.Search(sctx, opts.keyword)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitFailure
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return a.printJSON(listings)
}

func (a *app) product(ctx context.Context, cfg *config.Config, deps sources.Deps, opts options) int {
	if opts.store == "" || strings.TrimSpace(opts.url) == "" {
		fmt.Fprintln(a.stderr, "product mode needs -store and -url")
		return exitUsage
	}
	adapter, err := sources.New(opts.store, deps)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitUsage
	}

	sctx, cancel := context.WithTimeout(ctx, cfg.SourceTimeout)
	defer cancel()

	page, err := adapter.FetchProductPage(sctx, opts.url)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitFailure
	}
	return a.printJSON(page)
}

func (a *app) compare(ctx context.Context, cfg *config.Config, deps sources.Deps, opts options) int {
	if strings.TrimSpace(opts.keyword) == "" {
		fmt.Fprintln(a.stderr, "compare mode needs -keyword")
		return exitUsage
	}

	adapters, err := sources.NewAll(cfg.Sources, deps)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitUsage
	}
	agg, err := pipeline.NewAggregator(adapters, cfg, deps.Metrics)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitUsage
	}

	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return exitFailure
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting comparison",
		slog.String("keyword", opts.keyword),
		slog.Any("stores", agg.Sources()),
		slog.Int("workers", cfg.Parallelism),
	)

	startTime := time.Now()
	result, err := agg.Search(ctx, opts.keyword)
	if err != nil {
		fmt.Fprintf(a.stderr, "scraper error: %v\n", err)
		return exitFailure
	}

	if err := writer.Write(result); err != nil {
		slog.Error("writing results", slog.Any("error", err))
		return exitFailure
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		return exitFailure
	}

	printSummary(a.stdout, result, time.Since(startTime), writer.Paths(), agg.GetMetrics())
	return exitOK
}

func (a *app) printJSON(v interface{}) int {
	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(a.stderr, "encode output: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func printSummary(w io.Writer, result *models.SearchResult, duration time.Duration, outputFiles []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Comparison for %q\n", result.Keyword)

	processed := int64(0)
	if v, ok := metrics["processed_listings"].(int64); ok {
		processed = v
	}
	fmt.Fprintf(w, "  Listings:      %d (%d processed)\n", result.Count(), processed)
	fmt.Fprintf(w, "  Products:      %d\n", len(result.Groups))
	fmt.Fprintf(w, "  Stores ok:     %d\n", result.Succeeded)
	for _, failure := range result.Failures {
		fmt.Fprintf(w, "  Failed store:  %s (%s)\n", failure.Source, failure.Error)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", valErrors)
	}
	for i, group := range result.Groups {
		if i == 5 {
			fmt.Fprintf(w, "  ... and %d more\n", len(result.Groups)-i)
			break
		}
		fmt.Fprintf(w, "  %-40.40s %14s  %s (%d offers)\n", group.Name, parser.FormatPrice(group.BestPrice), group.BestSource, len(group.Listings))
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Output files:  %s\n", strings.Join(outputFiles, ", "))
	fmt.Fprintln(w, separator)
}

func newLogger(out io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
