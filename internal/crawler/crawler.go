package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkessler/catalog-crawler/internal/fetcher"
	"github.com/mkessler/catalog-crawler/internal/models"
	"github.com/mkessler/catalog-crawler/internal/parser"
	"github.com/mkessler/catalog-crawler/internal/proxy"
	"github.com/mkessler/catalog-crawler/internal/queue"
)

// PageFetcher is the proxy-rotating fetch primitive the crawl loops consume.
// Implemented by fetcher.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, pool *proxy.Pool, opts fetcher.Options) (*fetcher.Result, error)
}

// Store persists listings and enriched products.
type Store interface {
	SaveListing(ctx context.Context, listing *models.Listing) error
	UpdateListingStatus(ctx context.Context, id string, status models.ListingStatus, errMsg string) error
	SaveProduct(ctx context.Context, product *models.Product) error
}

type Options struct {
	// MaxProducts caps how many listings are collected; 0 means unlimited.
	MaxProducts int
	// MaxPages caps the listing pagination; 0 means unlimited.
	MaxPages int
	// Fetch configures every proxy-rotating fetch the crawl performs.
	Fetch fetcher.Options
	// FallbackDirect retries a fully exhausted page once more through a
	// direct connection. This escalation is deliberately here, in the
	// caller, and not hidden inside the fetcher.
	FallbackDirect bool
	// DirectAttempts is the reduced budget for the direct fallback.
	DirectAttempts int
}

// Summary reports what a crawl accomplished.
type Summary struct {
	PagesFetched    int
	ListingsFound   int
	ProductsScraped int
	Failed          int
	Blocked         int
}

// Crawler drives the two sequential phases: the listing pagination loop and
// the detail-page enrichment loop. It carries no retry logic of its own;
// retrying lives in the fetcher and escalation in fetchPage.
type Crawler struct {
	fetcher   PageFetcher
	extractor Extractor
	parser    parser.Parser
	store     Store
	queue     queue.Queue
	pool      *proxy.Pool
	opts      Options
	logger    *slog.Logger
}

func New(f PageFetcher, ex Extractor, store Store, q queue.Queue, pool *proxy.Pool, opts Options) *Crawler {
	if opts.DirectAttempts < 1 {
		opts.DirectAttempts = 2
	}
	return &Crawler{
		fetcher:   f,
		extractor: ex,
		parser:    parser.NewProductParser(),
		store:     store,
		queue:     q,
		pool:      pool,
		opts:      opts,
		logger:    slog.Default().With("component", "crawler"),
	}
}

// Crawl walks the catalog starting at startURL, collects product listings
// page by page, then enriches each listing from its detail page. Returns a
// summary alongside any terminal error; a partial summary is still
// meaningful when the crawl aborts midway.
func (c *Crawler) Crawl(ctx context.Context, startURL string) (*Summary, error) {
	summary := &Summary{}

	if err := c.collectListings(ctx, startURL, summary); err != nil {
		c.queue.Close()
		return summary, err
	}
	c.queue.Close()

	if err := c.enrichListings(ctx, summary); err != nil {
		return summary, err
	}

	c.logger.Info("crawl completed",
		"pages", summary.PagesFetched,
		"listings", summary.ListingsFound,
		"products", summary.ProductsScraped,
		"failed", summary.Failed,
		"blocked", summary.Blocked)
	return summary, nil
}

func (c *Crawler) collectListings(ctx context.Context, startURL string, summary *Summary) error {
	pageURL := startURL
	pageNum := 0

	for pageURL != "" {
		if c.opts.MaxPages > 0 && pageNum >= c.opts.MaxPages {
			c.logger.Info("page cap reached", "pages", pageNum)
			break
		}
		if c.capReached(summary) {
			break
		}
		pageNum++

		c.logger.Info("fetching catalog page", "page", pageNum, "url", pageURL)
		res, err := c.fetchPage(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("catalog page %d: %w", pageNum, err)
		}
		summary.PagesFetched++

		if LooksBlocked(res.Content) {
			summary.Blocked++
			c.logger.Warn("catalog page looks like a block page, stopping pagination",
				"page", pageNum, "proxy", res.Endpoint.Label())
			break
		}

		links := c.extractor.ProductLinks(res.Content, pageURL)
		c.logger.Info("extracted product links", "page", pageNum, "count", len(links))

		for _, link := range links {
			if c.capReached(summary) {
				break
			}
			listing := models.NewListing(link.ID, link.URL)
			listing.Title = link.Title
			if err := c.store.SaveListing(ctx, listing); err != nil {
				c.logger.Error("failed to save listing", "id", link.ID, "error", err)
				continue
			}
			if err := c.queue.Push(ctx, &queue.Task{
				ID:        link.ID,
				URL:       link.URL,
				Title:     link.Title,
				CreatedAt: time.Now(),
			}); err != nil {
				return fmt.Errorf("queue push: %w", err)
			}
			summary.ListingsFound++
		}

		pageURL = c.extractor.NextPageURL(res.Content, pageURL)
		if pageURL == "" {
			c.logger.Info("no next page found", "pages", pageNum)
		}
	}
	return nil
}

func (c *Crawler) enrichListings(ctx context.Context, summary *Summary) error {
	for {
		task, err := c.queue.Pop(ctx)
		if errors.Is(err, queue.ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("queue pop: %w", err)
		}

		if err := c.enrichOne(ctx, task, summary); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One failed product must not abort the whole crawl.
			summary.Failed++
			c.logger.Error("failed to enrich listing", "id", task.ID, "error", err)
			if err := c.store.UpdateListingStatus(ctx, task.ID, models.StatusFailed, err.Error()); err != nil {
				c.logger.Error("failed to update listing status", "id", task.ID, "error", err)
			}
		}
	}
}

func (c *Crawler) enrichOne(ctx context.Context, task *queue.Task, summary *Summary) error {
	c.logger.Debug("enriching listing", "id", task.ID, "url", task.URL)

	if err := c.store.UpdateListingStatus(ctx, task.ID, models.StatusProcessing, ""); err != nil {
		c.logger.Warn("failed to mark listing processing", "id", task.ID, "error", err)
	}

	res, err := c.fetchPage(ctx, task.URL)
	if err != nil {
		return err
	}

	if LooksBlocked(res.Content) {
		summary.Blocked++
		return c.store.UpdateListingStatus(ctx, task.ID, models.StatusBlocked, "block page detected")
	}

	product, err := c.parser.ParseProductPage(res.Content, task.URL)
	if err != nil {
		return err
	}
	product.ID = task.ID
	if product.Title == "" {
		product.Title = task.Title
	}
	product.ProxyUsed = res.Endpoint.Label()

	if problems := product.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid product: %s", strings.Join(problems, "; "))
	}

	if err := c.store.SaveProduct(ctx, product); err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	if err := c.store.UpdateListingStatus(ctx, task.ID, models.StatusCompleted, ""); err != nil {
		return err
	}
	summary.ProductsScraped++
	return nil
}

// fetchPage runs one proxy-rotating fetch and, when configured, escalates
// a fully exhausted pool to a single direct-connection retry with a
// reduced attempt budget.
func (c *Crawler) fetchPage(ctx context.Context, url string) (*fetcher.Result, error) {
	res, err := c.fetcher.Fetch(ctx, url, c.pool, c.opts.Fetch)
	if err == nil {
		return res, nil
	}

	var exhausted *fetcher.ExhaustionError
	if !errors.As(err, &exhausted) || !c.opts.FallbackDirect {
		return nil, err
	}

	c.logger.Warn("all proxies exhausted, falling back to direct connection",
		"url", url, "attempts", len(exhausted.Attempts))

	directOpts := c.opts.Fetch
	directOpts.MaxAttempts = c.opts.DirectAttempts
	return c.fetcher.Fetch(ctx, url, proxy.DirectPool(), directOpts)
}

func (c *Crawler) capReached(summary *Summary) bool {
	return c.opts.MaxProducts > 0 && summary.ListingsFound >= c.opts.MaxProducts
}
