package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/catalog-crawler/internal/crawler"
	"github.com/mkessler/catalog-crawler/internal/fetcher"
	"github.com/mkessler/catalog-crawler/internal/jobs"
	"github.com/mkessler/catalog-crawler/internal/proxy"
)

type stubFetcher struct {
	content string
	fail    bool
	gotOpts fetcher.Options
}

func (s *stubFetcher) Fetch(_ context.Context, url string, pool *proxy.Pool, opts fetcher.Options) (*fetcher.Result, error) {
	s.gotOpts = opts
	ep := pool.Endpoints()[0]
	if s.fail {
		return nil, &fetcher.ExhaustionError{
			URL:      url,
			Attempts: []fetcher.Attempt{{Endpoint: ep, Err: errors.New("connection refused")}},
			LastErr:  errors.New("connection refused"),
		}
	}
	return &fetcher.Result{
		Content:  s.content,
		Endpoint: ep,
		Attempts: []fetcher.Attempt{{Endpoint: ep, ContentLen: len(s.content)}},
	}, nil
}

func newTestServer(t *testing.T, f crawler.PageFetcher) *httptest.Server {
	t.Helper()
	pool := proxy.NewPool([]string{"http://a:1", "http://b:2"})
	manager := jobs.NewManager(func(_ context.Context, _ string) (*crawler.Summary, error) {
		return &crawler.Summary{}, nil
	})
	handlers := NewHandlers(f, pool, fetcher.Options{MaxAttempts: 3, Timeout: time.Second}, manager, slog.Default())

	srv := NewServer(ServerConfig{Host: "127.0.0.1", Port: "0"}, handlers, slog.Default())
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestFetchEndpoint_Success(t *testing.T) {
	f := &stubFetcher{content: "<html>ok</html>"}
	ts := newTestServer(t, f)

	resp, err := http.Post(ts.URL+"/api/fetch", "application/json",
		strings.NewReader(`{"url":"https://shop.example.com/c/bags","max_attempts":5}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body FetchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "<html>ok</html>", body.Content)
	assert.NotEmpty(t, body.Proxy)
	require.Len(t, body.Attempts, 1)
	assert.True(t, body.Attempts[0].OK)

	// Request-level max_attempts overrides the configured default.
	assert.Equal(t, 5, f.gotOpts.MaxAttempts)
}

func TestFetchEndpoint_Exhaustion(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{fail: true})

	resp, err := http.Post(ts.URL+"/api/fetch", "application/json",
		strings.NewReader(`{"url":"https://shop.example.com"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body FetchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Content)
	assert.NotEmpty(t, body.Error)
	require.Len(t, body.Attempts, 1)
	assert.False(t, body.Attempts[0].OK)
	assert.Equal(t, "connection refused", body.Attempts[0].Error)
}

func TestFetchEndpoint_BadRequests(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	for _, payload := range []string{`not json`, `{}`, `{"url":"relative/path"}`} {
		resp, err := http.Post(ts.URL+"/api/fetch", "application/json", strings.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "payload %q", payload)
	}
}

func TestCrawlAndJobEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Post(ts.URL+"/api/crawl", "application/json",
		strings.NewReader(`{"start_url":"https://shop.example.com/c/bags"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var crawlResp CrawlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&crawlResp))
	require.NotEmpty(t, crawlResp.JobID)

	jobResp, err := http.Get(ts.URL + "/api/jobs/" + crawlResp.JobID)
	require.NoError(t, err)
	defer jobResp.Body.Close()
	assert.Equal(t, http.StatusOK, jobResp.StatusCode)

	missing, err := http.Get(ts.URL + "/api/jobs/not-a-job")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestPoolAndHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubFetcher{})

	resp, err := http.Get(ts.URL + "/api/pool")
	require.NoError(t, err)
	defer resp.Body.Close()

	var pool PoolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pool))
	assert.Equal(t, 2, pool.Size)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, pool.Servers)

	health, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
