// Package cli provides the initialization shared by cmd/costmanager and cmd/costctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"costmanager/internal/amqp"
	"costmanager/internal/cache"
	"costmanager/internal/config"
	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/ports"
	"costmanager/internal/rates"
	"costmanager/internal/services"
	"costmanager/internal/storage"
)

// CacheCleanupInterval is how often expired cache entries are dropped.
const CacheCleanupInterval = time.Minute

// SetupLogger builds the application logger from cfg, writing to out, and
// makes it the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.DefaultConfig().Level
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the wired ledger: the cost service plus the resources behind it.
type App struct {
	Service *services.CostService
	Store   *storage.SQLiteRepository
	Caches  *cache.Manager
}

// Build opens the store, connects the optional publisher and assembles the
// cost service. AMQP connection failures are logged and publishing is
// disabled; the store failing to open is fatal.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	storeLogger := logger.WithComponent(log.ComponentStorage)
	store, err := storage.Open(cfg.SQLiteDBPath, cfg.DBVersion, storage.WithLogger(storeLogger.Slog()))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	storeLogger.InfoContext(ctx, "Cost store opened", "path", cfg.SQLiteDBPath)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())

	opts := []services.Option{
		services.WithLogger(logger.WithComponent(log.ComponentCost).Slog()),
	}

	if cfg.ReportCacheSize > 0 && cfg.ReportCacheTTL > 0 {
		reports := cache.NewLRUCache[string, core.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		caches.Register(reports)
		opts = append(opts, services.WithReportCache(reports))
	}

	fetcherOpts := []rates.FetcherOption{
		rates.WithLogger(logger.WithComponent(log.ComponentRates).Slog()),
	}
	if cfg.RatesFetchTimeout > 0 {
		fetcherOpts = append(fetcherOpts, rates.WithTimeout(cfg.RatesFetchTimeout))
	}
	if cfg.RatesCacheTTL > 0 {
		docs := cache.NewLRUCache[string, map[core.Currency]float64](8, cfg.RatesCacheTTL)
		caches.Register(docs)
		fetcherOpts = append(fetcherOpts, rates.WithCache(docs))
	}
	ratesURL := savedRatesURL(ctx, store, cfg.RatesURL, logger.WithComponent(log.ComponentRates))
	opts = append(opts,
		services.WithRatesSource(rates.NewFetcher(fetcherOpts...), ratesURL),
		services.WithSettings(store),
	)

	if cfg.AMQPEnabled() {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			amqpLogger.WarnContext(ctx, "AMQP unavailable, cost events disabled", log.FieldError, err)
		} else {
			amqpLogger.InfoContext(ctx, "AMQP publisher connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			opts = append(opts, services.WithPublisher(client))
		}
	}

	svc := services.NewCostService(store, rates.NewTable(nil), opts...)

	return &App{Service: svc, Store: store, Caches: caches}, nil
}

// savedRatesURL returns the rates URL saved by an earlier refresh, falling
// back to fallback when none was saved or the settings cannot be read.
func savedRatesURL(ctx context.Context, st ports.SettingsStore, fallback string, logger *log.Logger) string {
	url, ok, err := st.GetSetting(ctx, ports.SettingRatesURL)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "Cannot read saved rates URL, using configured one", log.FieldError, err)
		return fallback
	case !ok || url == "":
		return fallback
	}
	if fallback != "" && url != fallback {
		logger.InfoContext(ctx, "Using saved rates URL instead of RATES_URL", "url", url, "configured", fallback)
	}
	return url
}

// Close releases the service and everything behind it.
func (a *App) Close() error {
	return a.Service.Close()
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before the returned channel closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	}()

	return ctx, done
}
