package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/robfig/cron"

	"costmanager/internal/log"
	"costmanager/internal/storage"
)

type Config struct {
	// HTTP Server
	Port           string        `env:"PORT" envDefault:"8081"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// Write requests allowed per client IP in each window
	WriteRateLimit  int           `env:"WRITE_RATE_LIMIT" envDefault:"60"`
	WriteRateWindow time.Duration `env:"WRITE_RATE_WINDOW" envDefault:"1m"`

	// Database
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/costs.db"`
	DBVersion    uint   `env:"DB_VERSION" envDefault:"0"`

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"costmanager"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"cost_events"`

	// Rates document. RatesURL is used until a URL is saved at runtime;
	// an empty schedule disables scheduled refresh.
	RatesURL             string        `env:"RATES_URL"`
	RatesRefreshSchedule string        `env:"RATES_REFRESH_SCHEDULE" envDefault:"0 0 * * * *"`
	RatesCacheTTL        time.Duration `env:"RATES_CACHE_TTL" envDefault:"5m"`
	RatesFetchTimeout    time.Duration `env:"RATES_FETCH_TIMEOUT" envDefault:"10s"`

	// Report cache
	ReportCacheSize int           `env:"REPORT_CACHE_SIZE" envDefault:"64"`
	ReportCacheTTL  time.Duration `env:"REPORT_CACHE_TTL" envDefault:"1m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the configuration from the environment. It does not validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// AMQPEnabled reports whether cost events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RequestTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 1 second", c.RequestTimeout))
	}

	if c.WriteRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid write rate limit %d: must be at least 1", c.WriteRateLimit))
	}
	if c.WriteRateWindow < time.Second {
		errors = append(errors, fmt.Sprintf("invalid write rate window %v: must be at least 1 second", c.WriteRateWindow))
	}

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.DBVersion > storage.LatestVersion {
		errors = append(errors, fmt.Sprintf("invalid database version %d: latest is %d", c.DBVersion, storage.LatestVersion))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate rates source if provided
	if c.RatesURL != "" {
		if parsedURL, err := url.Parse(c.RatesURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid rates URL '%s': %v", c.RatesURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid rates URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}

	}

	// A URL saved at runtime may drive the schedule even without RatesURL
	if c.RatesRefreshSchedule != "" {
		if _, err := cron.Parse(c.RatesRefreshSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid rates refresh schedule '%s': %v", c.RatesRefreshSchedule, err))
		}
	}

	if c.RatesFetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rates fetch timeout %v: must be at least 1 second", c.RatesFetchTimeout))
	}
	if c.RatesCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid rates cache TTL %v: must not be negative", c.RatesCacheTTL))
	}

	// Validate report cache
	if c.ReportCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must not be negative", c.ReportCacheSize))
	} else if c.ReportCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at most 10000", c.ReportCacheSize))
	}
	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}

	// Validate logging
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, log.Levels()))
	}
	validFormats := []string{"text", "json"}
	if !oneOf(strings.ToLower(c.LogFormat), validFormats) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
