package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mkessler/catalog-crawler/internal/browser"
	"github.com/mkessler/catalog-crawler/internal/config"
	"github.com/mkessler/catalog-crawler/internal/crawler"
	"github.com/mkessler/catalog-crawler/internal/database"
	"github.com/mkessler/catalog-crawler/internal/fetcher"
	"github.com/mkessler/catalog-crawler/internal/logging"
	"github.com/mkessler/catalog-crawler/internal/proxy"
	"github.com/mkessler/catalog-crawler/internal/queue"
	"github.com/mkessler/catalog-crawler/internal/storage"
)

// stringSlice collects repeated flag values.
type stringSlice []string

func (s *stringSlice) String() string { return strings.Join(*s, ",") }

func (s *stringSlice) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var inlineProxies stringSlice
	var (
		startURL       = flag.String("url", "", "Catalog URL to start crawling from (required)")
		maxProducts    = flag.Int("max-products", 0, "Maximum products to collect (0 = unlimited)")
		maxPages       = flag.Int("max-pages", 0, "Maximum catalog pages to walk (0 = unlimited)")
		maxAttempts    = flag.Int("max-attempts", 0, "Proxy attempts per page (0 = use config)")
		timeout        = flag.Duration("timeout", 0, "Per-attempt page load timeout (0 = use config)")
		delayMin       = flag.Duration("delay-min", -1, "Minimum jittered delay before each request")
		delayMax       = flag.Duration("delay-max", -1, "Maximum jittered delay before each request")
		proxyFile      = flag.String("proxy-file", "", "Path to a newline-delimited proxy list")
		noProxy        = flag.Bool("no-proxy", false, "Connect directly, ignore any proxy configuration")
		fallbackDirect = flag.Bool("fallback-direct", false, "Retry once without a proxy when the pool is exhausted")
		storageFile    = flag.String("storage", "crawl.json", "JSON storage file (ignored when DB_HOST is set)")
		headless       = flag.Bool("headless", true, "Run the browser headless")
		verbose        = flag.Bool("verbose", false, "Log one line per fetch attempt")
	)
	flag.Var(&inlineProxies, "proxy", "Proxy entry (repeatable); same formats as the proxy file")
	flag.Parse()

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, *maxProducts, *maxPages, *maxAttempts, *timeout, *delayMin, *delayMax, *proxyFile, inlineProxies, *fallbackDirect, *headless, setFlags["headless"])
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, *verbose)

	if *startURL == "" {
		fmt.Fprintln(os.Stderr, "Please provide a catalog URL with -url")
		flag.Usage()
		os.Exit(2)
	}

	pool, err := buildPool(cfg, *noProxy)
	if err != nil {
		logger.Error("failed to build proxy pool", "error", err)
		os.Exit(1)
	}
	logger.Info("proxy pool ready", "size", pool.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	// A downstream consumer closing its end of the pipe must not kill the
	// process; with SIGPIPE handled, the summary write fails with EPIPE
	// instead, which writeSummary treats as normal completion.
	signal.Notify(make(chan os.Signal, 1), syscall.SIGPIPE)

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		UserAgent:      userAgent(cfg),
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	store, cleanup, err := buildStore(ctx, cfg, *storageFile)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	q, err := buildQueue(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize queue", "error", err)
		os.Exit(1)
	}

	c := crawler.New(
		fetcher.New(b),
		crawler.NewCatalogExtractor(nil),
		store,
		q,
		pool,
		crawler.Options{
			MaxProducts: cfg.Crawler.MaxProducts,
			MaxPages:    cfg.Crawler.MaxPages,
			Fetch: fetcher.Options{
				MaxAttempts: cfg.Crawler.MaxAttempts,
				Timeout:     cfg.Crawler.Timeout,
				DelayMin:    cfg.Crawler.DelayMin,
				DelayMax:    cfg.Crawler.DelayMax,
			},
			FallbackDirect: cfg.Crawler.FallbackDirect,
		},
	)

	summary, err := c.Crawl(ctx, *startURL)
	if werr := writeSummary(os.Stdout, summary); werr != nil {
		fmt.Fprintf(os.Stderr, "failed to write summary: %v\n", werr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, maxProducts, maxPages, maxAttempts int, timeout, delayMin, delayMax time.Duration, proxyFile string, inline []string, fallbackDirect, headless, headlessSet bool) {
	if maxProducts > 0 {
		cfg.Crawler.MaxProducts = maxProducts
	}
	if maxPages > 0 {
		cfg.Crawler.MaxPages = maxPages
	}
	if maxAttempts > 0 {
		cfg.Crawler.MaxAttempts = maxAttempts
	}
	if timeout > 0 {
		cfg.Crawler.Timeout = timeout
	}
	if delayMin >= 0 {
		cfg.Crawler.DelayMin = delayMin
	}
	if delayMax >= 0 {
		cfg.Crawler.DelayMax = delayMax
	}
	if proxyFile != "" {
		cfg.Crawler.ProxyFile = proxyFile
	}
	if len(inline) > 0 {
		cfg.Crawler.Proxies = append(cfg.Crawler.Proxies, inline...)
	}
	if fallbackDirect {
		cfg.Crawler.FallbackDirect = true
	}
	// The flag defaults to true, so it only overrides the environment when
	// actually passed on the command line.
	if headlessSet {
		cfg.Browser.Headless = headless
	}
}

// buildPool assembles the proxy pool from the file and inline entries. An
// empty pool degrades to direct connection: proxy lists are
// operator-supplied configuration, never compiled in.
func buildPool(cfg *config.Config, noProxy bool) (*proxy.Pool, error) {
	if noProxy {
		return proxy.DirectPool(), nil
	}

	var entries []string
	if cfg.Crawler.ProxyFile != "" {
		fileEntries, err := proxy.LoadEntriesFromFile(cfg.Crawler.ProxyFile)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}
	entries = append(entries, cfg.Crawler.Proxies...)

	pool := proxy.NewPool(entries)
	if pool.Len() == 0 {
		return proxy.DirectPool(), nil
	}
	return pool, nil
}

func buildStore(ctx context.Context, cfg *config.Config, storageFile string) (crawler.Store, func(), error) {
	if cfg.UseDatabase() {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		store, err := database.NewProductStore(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	}

	store, err := storage.NewFileStore(storageFile)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func buildQueue(ctx context.Context, cfg *config.Config) (queue.Queue, error) {
	if cfg.UseRedisQueue() {
		return queue.NewRedisQueue(ctx, cfg.Queue.RedisAddr, cfg.Queue.RedisKey)
	}
	return queue.NewInMemoryQueue(), nil
}

func userAgent(cfg *config.Config) string {
	if cfg.Browser.UserAgent != "" {
		return cfg.Browser.UserAgent
	}
	return browser.DefaultOptions().UserAgent
}

// writeSummary writes the run summary. A downstream consumer closing the
// pipe early is normal completion, not an error.
func writeSummary(w io.Writer, summary *crawler.Summary) error {
	if summary == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(summary)
	if errors.Is(err, syscall.EPIPE) {
		return nil
	}
	return err
}
