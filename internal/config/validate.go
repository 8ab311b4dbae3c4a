package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/nft-catalog-etl/pkg/logging"
	"github.com/Sternrassler/nft-catalog-etl/pkg/store"
	"github.com/robfig/cron/v3"
)

var errNoConfig = errors.New("nil config")

// ValidationError reports one invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the settings needed for a pipeline run. All problems are
// reported together.
func (c *Config) Validate() error {
	if c == nil {
		return errNoConfig
	}

	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &ValidationError{Field: field, Message: msg})
	}

	if c.API.APIKey == "" {
		add("OPENSEA_API_KEY", "is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("CATALOG_BASE_URL", "must be an absolute URL")
	}
	if c.API.Chain == "" {
		add("CATALOG_CHAIN", "is required")
	}
	if c.API.PageSize <= 0 {
		add("CATALOG_PAGE_SIZE", "must be positive")
	}
	if c.API.Workers <= 0 {
		add("CATALOG_WORKERS", "must be positive")
	}
	if c.API.Timeout <= 0 {
		add("HTTP_TIMEOUT", "must be positive")
	}
	if c.API.MaxAttempts <= 0 {
		add("FETCH_MAX_ATTEMPTS", "must be positive")
	}
	if c.RateLimit.MaxCalls <= 0 {
		add("RATE_LIMIT_MAX_CALLS", "must be positive")
	}
	if c.RateLimit.Window <= 0 {
		add("RATE_LIMIT_WINDOW", "must be positive")
	}
	if c.RateLimit.MinInterval < 0 {
		add("RATE_LIMIT_MIN_INTERVAL", "must not be negative")
	}
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		add("DB_DRIVER", fmt.Sprintf("must be %s or %s", store.DriverSQLite, store.DriverPostgres))
	}
	if c.Database.DSN == "" {
		add("DB_DSN", "is required")
	}
	if c.Artifacts.Dir == "" {
		add("RAW_DATA_PATH", "is required")
	}
	if c.CacheEnabled() && c.Cache.TTL <= 0 {
		add("CACHE_TTL", "must be positive when the cache is enabled")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("LOG_LEVEL", err.Error())
	}

	return errors.Join(errs...)
}

// ValidateSchedule checks the cron spec used by the schedule command.
func (c *Config) ValidateSchedule() error {
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return &ValidationError{Field: "SCHEDULE", Message: err.Error()}
	}
	return nil
}
