// Package config loads the catalog ETL configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. Built-in defaults
//  2. An optional YAML file
//  3. Environment variables named by the `env` struct tag
//
// Before the environment is read, .env files are loaded: ENV_FILE if set,
// otherwise .env.local and then .env. Variables already present in the
// process environment are never overwritten by a file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/nft-catalog-etl/pkg/cache"
	"github.com/Sternrassler/nft-catalog-etl/pkg/client"
	"github.com/Sternrassler/nft-catalog-etl/pkg/logging"
	"github.com/Sternrassler/nft-catalog-etl/pkg/pagination"
	"github.com/Sternrassler/nft-catalog-etl/pkg/ratelimit"
	"github.com/Sternrassler/nft-catalog-etl/pkg/store"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Database  DatabaseConfig  `yaml:"database"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Schedule is a cron spec for the schedule command.
	Schedule string `yaml:"schedule" env:"SCHEDULE"`
}

// APIConfig configures the catalog API client and the page fan-out.
type APIConfig struct {
	APIKey      string        `yaml:"api_key" env:"OPENSEA_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"CATALOG_BASE_URL"`
	Chain       string        `yaml:"chain" env:"CATALOG_CHAIN"`
	PageSize    int           `yaml:"page_size" env:"CATALOG_PAGE_SIZE"`
	Workers     int           `yaml:"workers" env:"CATALOG_WORKERS"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT"`
	MaxAttempts int           `yaml:"max_attempts" env:"FETCH_MAX_ATTEMPTS"`
}

// RateLimitConfig is the API call quota.
type RateLimitConfig struct {
	MaxCalls    int           `yaml:"max_calls" env:"RATE_LIMIT_MAX_CALLS"`
	Window      time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	MinInterval time.Duration `yaml:"min_interval" env:"RATE_LIMIT_MIN_INTERVAL"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"DB_DSN"`
}

// ArtifactsConfig locates the audit dumps.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" env:"RAW_DATA_PATH"`
}

// CacheConfig enables the Redis page cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl" env:"CACHE_TTL"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rl := ratelimit.DefaultConfig()
	return &Config{
		API: APIConfig{
			BaseURL:     client.DefaultBaseURL,
			Chain:       "ethereum",
			PageSize:    50,
			Workers:     5,
			Timeout:     30 * time.Second,
			MaxAttempts: 1,
		},
		RateLimit: RateLimitConfig{
			MaxCalls:    rl.MaxCalls,
			Window:      rl.Window,
			MinInterval: rl.MinInterval,
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    "opensea.db",
		},
		Artifacts: ArtifactsConfig{Dir: "raw_data"},
		Cache:     CacheConfig{TTL: cache.DefaultTTL},
		Logging:   LoggingConfig{Level: string(logging.LevelInfo)},
		Schedule:  "@hourly",
	}
}

// Load builds the configuration. path names an optional YAML file; an
// empty path skips it. Malformed environment values are reported as errors.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads ENV_FILE, or .env.local then .env. Missing files are
// ignored.
func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// ClientConfig returns the API client settings.
func (c *Config) ClientConfig() client.Config {
	retry := client.DefaultRetryConfig()
	retry.MaxAttempts = c.API.MaxAttempts
	return client.Config{
		BaseURL: c.API.BaseURL,
		APIKey:  c.API.APIKey,
		Timeout: c.API.Timeout,
		Retry:   retry,
	}
}

// FetchConfig returns the page fetcher settings.
func (c *Config) FetchConfig() pagination.FetchConfig {
	return pagination.FetchConfig{Chain: c.API.Chain, PageSize: c.API.PageSize}
}

// LimiterConfig returns the rate limiter quota.
func (c *Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		MaxCalls:    c.RateLimit.MaxCalls,
		Window:      c.RateLimit.Window,
		MinInterval: c.RateLimit.MinInterval,
	}
}

// StoreConfig returns the database settings.
func (c *Config) StoreConfig() store.Config {
	return store.Config{Driver: c.Database.Driver, DSN: c.Database.DSN}
}

// LoggerConfig returns the logger settings. Validate reports bad levels;
// here an unknown level falls back to info.
func (c *Config) LoggerConfig() logging.Config {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Logging.Pretty
	return cfg
}

// CacheEnabled reports whether the Redis page cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Cache.RedisURL != ""
}
