package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkessler/catalog-crawler/internal/proxy"
	"github.com/mkessler/catalog-crawler/internal/ratelimit"
)

var (
	ErrEmptyPool      = errors.New("proxy pool is empty")
	ErrInvalidOptions = errors.New("invalid fetch options")
)

// PageLoader performs a single page load through one endpoint. A nil or
// direct endpoint means "connect without a proxy". Implementations must
// isolate state between calls: cookies and cache from a failed attempt may
// not leak into the next one.
type PageLoader interface {
	Load(ctx context.Context, url string, endpoint *proxy.Endpoint, timeout time.Duration) (string, error)
}

// LoaderFunc adapts a plain function to the PageLoader interface.
type LoaderFunc func(ctx context.Context, url string, endpoint *proxy.Endpoint, timeout time.Duration) (string, error)

func (f LoaderFunc) Load(ctx context.Context, url string, endpoint *proxy.Endpoint, timeout time.Duration) (string, error) {
	return f(ctx, url, endpoint, timeout)
}

type Options struct {
	// MaxAttempts is the hard ceiling on transport attempts per Fetch call.
	MaxAttempts int
	// Timeout bounds each individual page load.
	Timeout time.Duration
	// DelayMin and DelayMax bound the jittered sleep before every attempt.
	DelayMin time.Duration
	DelayMax time.Duration
}

func (o Options) validate() error {
	if o.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidOptions, o.MaxAttempts)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0, got %v", ErrInvalidOptions, o.Timeout)
	}
	if o.DelayMin < 0 || o.DelayMax < o.DelayMin {
		return fmt.Errorf("%w: delay range [%v, %v]", ErrInvalidOptions, o.DelayMin, o.DelayMax)
	}
	return nil
}

// Attempt records one trial of fetching through one endpoint. Attempts are
// produced and consumed within a single Fetch call; they are never
// persisted by the fetcher.
type Attempt struct {
	Endpoint   *proxy.Endpoint
	Start      time.Time
	Latency    time.Duration
	ContentLen int
	Err        error
}

// Result is the successful outcome of a Fetch call: the content, the
// endpoint that delivered it, and the full attempt log leading up to it.
type Result struct {
	Content  string
	Endpoint *proxy.Endpoint
	Attempts []Attempt
}

// ExhaustionError is returned when every permitted attempt has failed.
type ExhaustionError struct {
	URL      string
	Attempts []Attempt
	LastErr  error
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("fetch %s: exhausted after %d attempts: %v", e.URL, len(e.Attempts), e.LastErr)
}

func (e *ExhaustionError) Unwrap() error { return e.LastErr }

// Fetcher fetches a URL by trying one proxy endpoint at a time from a pool
// until success or the attempt budget runs out. It is stateless across
// calls; the only configuration it carries is the loader it delegates page
// loads to.
type Fetcher struct {
	loader PageLoader
	logger *slog.Logger
}

func New(loader PageLoader) *Fetcher {
	return &Fetcher{
		loader: loader,
		logger: slog.Default().With("component", "fetcher"),
	}
}

// Fetch loads url through the pool, one endpoint at a time.
//
// The traversal order is shuffled once per call so repeated calls do not
// always hit the same proxy first. Endpoints are then taken modulo the pool
// length. When the pool has more than one distinct endpoint, a slot that
// would repeat the immediately preceding attempt's endpoint is skipped;
// skipped slots do not consume the attempt budget. Before every transport
// attempt the fetcher sleeps a jittered delay from [DelayMin, DelayMax].
//
// The first successful load wins: no cross-validation, no content checks.
// Whether the content is a block page is the caller's concern. After
// MaxAttempts transport failures an *ExhaustionError is returned carrying
// the attempt log and the last underlying error.
func (f *Fetcher) Fetch(ctx context.Context, url string, pool *proxy.Pool, opts Options) (*Result, error) {
	if pool.Len() == 0 {
		return nil, ErrEmptyPool
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	order := pool.Shuffled()
	distinct := countDistinct(order)
	limiter := ratelimit.NewJitter(opts.DelayMin, opts.DelayMax)

	attempts := make([]Attempt, 0, opts.MaxAttempts)
	var lastErr error
	var prev *proxy.Endpoint
	havePrev := false

	slot := 0
	for len(attempts) < opts.MaxAttempts {
		ep := order[slot%len(order)]
		slot++

		// Never hammer the same endpoint twice in a row when there is a
		// real alternative. With one distinct endpoint repetition is
		// unavoidable and the rule is a no-op.
		if distinct > 1 && havePrev && ep.Server() == prev.Server() {
			continue
		}
		prev, havePrev = ep, true

		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		f.logger.Debug("attempting fetch",
			"url", url,
			"attempt", len(attempts)+1,
			"max_attempts", opts.MaxAttempts,
			"proxy", ep.Label())

		start := time.Now()
		content, err := f.loader.Load(ctx, url, ep, opts.Timeout)
		latency := time.Since(start)

		if err != nil {
			lastErr = err
			attempts = append(attempts, Attempt{
				Endpoint: ep,
				Start:    start,
				Latency:  latency,
				Err:      err,
			})
			f.logger.Debug("attempt failed",
				"proxy", ep.Label(),
				"latency", latency,
				"error", truncate(err.Error(), 120))

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		attempts = append(attempts, Attempt{
			Endpoint:   ep,
			Start:      start,
			Latency:    latency,
			ContentLen: len(content),
		})
		f.logger.Info("fetch succeeded",
			"url", url,
			"proxy", ep.Label(),
			"attempts", len(attempts),
			"latency", latency,
			"content_len", len(content))

		return &Result{Content: content, Endpoint: ep, Attempts: attempts}, nil
	}

	return nil, &ExhaustionError{URL: url, Attempts: attempts, LastErr: lastErr}
}

func countDistinct(endpoints []*proxy.Endpoint) int {
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		seen[ep.Server()] = true
	}
	return len(seen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
