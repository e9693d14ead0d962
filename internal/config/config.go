package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Crawler  CrawlerConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type CrawlerConfig struct {
	MaxProducts    int
	MaxPages       int
	MaxAttempts    int
	Timeout        time.Duration
	DelayMin       time.Duration
	DelayMax       time.Duration
	ProxyFile      string
	Proxies        []string
	FallbackDirect bool
}

type BrowserConfig struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QueueConfig struct {
	RedisAddr string
	RedisKey  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. Proxy pools are always
// supplied externally (file path or env list), never compiled in.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Crawler: CrawlerConfig{
			MaxProducts:    getIntOrDefault("CRAWLER_MAX_PRODUCTS", 0),
			MaxPages:       getIntOrDefault("CRAWLER_MAX_PAGES", 0),
			MaxAttempts:    getIntOrDefault("CRAWLER_MAX_ATTEMPTS", 6),
			Timeout:        getDurationOrDefault("CRAWLER_TIMEOUT", 30*time.Second),
			DelayMin:       getDurationOrDefault("CRAWLER_DELAY_MIN", 1*time.Second),
			DelayMax:       getDurationOrDefault("CRAWLER_DELAY_MAX", 3500*time.Millisecond),
			ProxyFile:      getEnvOrDefault("CRAWLER_PROXY_FILE", ""),
			Proxies:        getStringSliceOrDefault("CRAWLER_PROXIES", []string{}),
			FallbackDirect: getBoolOrDefault("CRAWLER_FALLBACK_DIRECT", false),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/New_York"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", ""),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog_crawler"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Queue: QueueConfig{
			RedisAddr: getEnvOrDefault("REDIS_ADDR", ""),
			RedisKey:  getEnvOrDefault("REDIS_QUEUE_KEY", "crawler:tasks"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawler.MaxAttempts < 1 {
		return fmt.Errorf("CRAWLER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("CRAWLER_TIMEOUT must be positive")
	}
	if c.Crawler.DelayMin < 0 {
		return fmt.Errorf("CRAWLER_DELAY_MIN cannot be negative")
	}
	if c.Crawler.DelayMin > c.Crawler.DelayMax {
		return fmt.Errorf("CRAWLER_DELAY_MIN cannot be greater than CRAWLER_DELAY_MAX")
	}
	return nil
}

// UseDatabase reports whether a postgres store is configured.
func (c *Config) UseDatabase() bool {
	return c.Database.Host != ""
}

// UseRedisQueue reports whether the redis task queue is configured.
func (c *Config) UseRedisQueue() bool {
	return c.Queue.RedisAddr != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
