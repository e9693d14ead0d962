package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkessler/catalog-crawler/internal/api"
	"github.com/mkessler/catalog-crawler/internal/browser"
	"github.com/mkessler/catalog-crawler/internal/config"
	"github.com/mkessler/catalog-crawler/internal/crawler"
	"github.com/mkessler/catalog-crawler/internal/database"
	"github.com/mkessler/catalog-crawler/internal/fetcher"
	"github.com/mkessler/catalog-crawler/internal/jobs"
	"github.com/mkessler/catalog-crawler/internal/logging"
	"github.com/mkessler/catalog-crawler/internal/proxy"
	"github.com/mkessler/catalog-crawler/internal/queue"
	"github.com/mkessler/catalog-crawler/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := buildPool(cfg)
	if err != nil {
		logger.Error("failed to build proxy pool", "error", err)
		os.Exit(1)
	}
	logger.Info("proxy pool ready", "size", pool.Len())

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		UserAgent:      cfg.Browser.UserAgent,
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

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	f := fetcher.New(b)
	fetchOpts := fetcher.Options{
		MaxAttempts: cfg.Crawler.MaxAttempts,
		Timeout:     cfg.Crawler.Timeout,
		DelayMin:    cfg.Crawler.DelayMin,
		DelayMax:    cfg.Crawler.DelayMax,
	}

	// Each crawl job gets its own queue: the crawler closes it once the
	// catalog walk finishes.
	manager := jobs.NewManager(func(ctx context.Context, startURL string) (*crawler.Summary, error) {
		q, err := buildQueue(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c := crawler.New(f, crawler.NewCatalogExtractor(nil), store, q, pool, crawler.Options{
			MaxProducts:    cfg.Crawler.MaxProducts,
			MaxPages:       cfg.Crawler.MaxPages,
			Fetch:          fetchOpts,
			FallbackDirect: cfg.Crawler.FallbackDirect,
		})
		return c.Crawl(ctx, startURL)
	})

	handlers := api.NewHandlers(f, pool, fetchOpts, manager, logger)
	server := api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func buildPool(cfg *config.Config) (*proxy.Pool, error) {
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

func buildStore(ctx context.Context, cfg *config.Config) (crawler.Store, func(), error) {
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

	store, err := storage.NewFileStore(getStorageFile())
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

func getStorageFile() string {
	if v := os.Getenv("STORAGE_FILE"); v != "" {
		return v
	}
	return "crawl.json"
}
