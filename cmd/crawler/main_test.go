package main

import (
	"bytes"
	"encoding/json"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/catalog-crawler/internal/config"
	"github.com/mkessler/catalog-crawler/internal/crawler"
)

func TestApplyFlags_Overrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Crawler.MaxAttempts = 6

	applyFlags(cfg, 5, 2, 0, 10*time.Second, -1, -1, "proxies.txt",
		[]string{"http://p:1"}, true, true, false)

	assert.Equal(t, 5, cfg.Crawler.MaxProducts)
	assert.Equal(t, 2, cfg.Crawler.MaxPages)
	assert.Equal(t, 6, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Crawler.Timeout)
	assert.Equal(t, "proxies.txt", cfg.Crawler.ProxyFile)
	assert.Equal(t, []string{"http://p:1"}, cfg.Crawler.Proxies)
	assert.True(t, cfg.Crawler.FallbackDirect)
}

func TestApplyFlags_HeadlessOnlyWhenSet(t *testing.T) {
	cfg := &config.Config{}
	cfg.Browser.Headless = false // BROWSER_HEADLESS=false

	// Flag default must not override the environment.
	applyFlags(cfg, 0, 0, 0, 0, -1, -1, "", nil, false, true, false)
	assert.False(t, cfg.Browser.Headless)

	// An explicitly passed flag does.
	applyFlags(cfg, 0, 0, 0, 0, -1, -1, "", nil, false, true, true)
	assert.True(t, cfg.Browser.Headless)
}

type pipeClosedWriter struct{}

func (pipeClosedWriter) Write([]byte) (int, error) { return 0, syscall.EPIPE }

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, &crawler.Summary{ProductsScraped: 2}))

	var got crawler.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.ProductsScraped)

	// A closed downstream pipe is normal completion.
	assert.NoError(t, writeSummary(pipeClosedWriter{}, &crawler.Summary{}))
	assert.NoError(t, writeSummary(&buf, nil))
}
