package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Crawler.Timeout)
	assert.Equal(t, time.Second, cfg.Crawler.DelayMin)
	assert.False(t, cfg.Crawler.FallbackDirect)
	assert.False(t, cfg.UseDatabase())
	assert.False(t, cfg.UseRedisQueue())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_MAX_ATTEMPTS", "3")
	t.Setenv("CRAWLER_DELAY_MIN", "500ms")
	t.Setenv("CRAWLER_PROXIES", "http://a:1,http://b:2")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.DelayMin)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, cfg.Crawler.Proxies)
	assert.True(t, cfg.UseDatabase())
	assert.True(t, cfg.UseRedisQueue())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero attempts", func(c *Config) { c.Crawler.MaxAttempts = 0 }},
		{"zero timeout", func(c *Config) { c.Crawler.Timeout = 0 }},
		{"negative delay", func(c *Config) { c.Crawler.DelayMin = -time.Second }},
		{"inverted delay range", func(c *Config) {
			c.Crawler.DelayMin = 5 * time.Second
			c.Crawler.DelayMax = time.Second
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
