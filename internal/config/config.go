package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	DBPath  string
	APIKey  string
	BaseURL string

	GeoIPPath      string
	SafetyFeedURL  string
	PhishingAPIURL string

	// AllowAnonymous lets unauthenticated callers create links, under the
	// stricter anonymous rate limit.
	AllowAnonymous bool

	CacheSize      int
	ConfigCacheTTL time.Duration

	ClickBufferSize int
	FlushInterval   time.Duration

	WebhookQueueSize int
	WebhookTimeout   time.Duration
}

func Load() (*Config, error) {
	// Optional .env for local development; real deployments set the
	// environment directly.
	godotenv.Load()

	apiKey := os.Getenv("ZHORT_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ZHORT_API_KEY is required")
	}

	cfg := &Config{
		Port:    envOrDefault("ZHORT_PORT", "8080"),
		DBPath:  envOrDefault("ZHORT_DB_PATH", "./zhort.db"),
		APIKey:  apiKey,
		BaseURL: envOrDefault("ZHORT_BASE_URL", "http://localhost:8080"),

		GeoIPPath:      os.Getenv("ZHORT_GEOIP_PATH"),
		SafetyFeedURL:  os.Getenv("ZHORT_SAFETY_FEED_URL"),
		PhishingAPIURL: os.Getenv("ZHORT_PHISHING_API_URL"),

		AllowAnonymous: parseBool("ZHORT_ALLOW_ANONYMOUS", false),

		CacheSize:      parseInt("ZHORT_CACHE_SIZE", 10000),
		ConfigCacheTTL: parseDuration("ZHORT_CONFIG_CACHE_TTL", time.Minute),

		ClickBufferSize: parseInt("ZHORT_CLICK_BUFFER_SIZE", 50000),
		FlushInterval:   parseDuration("ZHORT_FLUSH_INTERVAL", 30*time.Second),

		WebhookQueueSize: parseInt("ZHORT_WEBHOOK_QUEUE_SIZE", 1000),
		WebhookTimeout:   parseDuration("ZHORT_WEBHOOK_TIMEOUT", 5*time.Second),
	}

	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("ZHORT_CACHE_SIZE must be positive")
	}
	if cfg.ConfigCacheTTL <= 0 {
		return nil, fmt.Errorf("ZHORT_CONFIG_CACHE_TTL must be positive")
	}
	if cfg.ClickBufferSize <= 0 {
		return nil, fmt.Errorf("ZHORT_CLICK_BUFFER_SIZE must be positive")
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("ZHORT_FLUSH_INTERVAL must be positive")
	}
	if cfg.WebhookQueueSize <= 0 {
		return nil, fmt.Errorf("ZHORT_WEBHOOK_QUEUE_SIZE must be positive")
	}
	if cfg.WebhookTimeout <= 0 {
		return nil, fmt.Errorf("ZHORT_WEBHOOK_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
