package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron"

	"costmanager/internal/cli"
	apphttp "costmanager/internal/http"
	"costmanager/internal/log"
	"costmanager/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(cfg, os.Stdout)
	logger.Info("Starting costmanager", log.FieldOperation, log.OpStartup)

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize cost ledger", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	if url := app.Service.RatesURL(); url != "" {
		fetchCtx, cancel := context.WithTimeout(context.Background(), cfg.RatesFetchTimeout)
		if err := app.Service.RefreshRates(fetchCtx); err != nil {
			logger.Warn("Initial rates fetch failed, using default rates", log.FieldError, err, "url", url)
		}
		cancel()
	}

	// Scheduled refresh runs whenever a schedule is set; the rates URL may
	// only be supplied later through POST /rates/refresh.
	scheduler := cron.New()
	if cfg.RatesRefreshSchedule != "" {
		cronLogger := logger.WithComponent(log.ComponentCron)
		err := scheduler.AddFunc(cfg.RatesRefreshSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.RatesFetchTimeout)
			defer cancel()
			err := app.Service.RefreshRates(ctx)
			switch {
			case errors.Is(err, services.ErrRatesSourceNotConfigured):
				cronLogger.DebugContext(ctx, "No rates URL, skipping scheduled refresh")
			case err != nil:
				cronLogger.WarnContext(ctx, "Scheduled rates refresh failed", log.FieldError, err)
			}
		})
		if err != nil {
			logger.Error("Invalid rates refresh schedule", log.FieldError, err, "schedule", cfg.RatesRefreshSchedule)
			os.Exit(1)
		}
		scheduler.Start()
		cronLogger.Info("Rates refresh scheduled", "schedule", cfg.RatesRefreshSchedule, "url", app.Service.RatesURL())
	}

	srv := apphttp.NewServer(":"+cfg.Port, app.Service,
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
		apphttp.WithRequestTimeout(cfg.RequestTimeout),
		apphttp.WithReadiness(app.Store.Ping),
		apphttp.WithWriteLimit(cfg.WriteRateLimit, cfg.WriteRateWindow),
	)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		scheduler.Stop()
		if err := app.Close(); err != nil {
			logger.Error("Failed to close cost ledger", log.FieldError, err)
		}
	})

	app.Caches.Start(ctx, cli.CacheCleanupInterval)

	logger.Info("Starting HTTP server", "port", cfg.Port, "amqp_enabled", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	app.Caches.Wait()
	logger.Info("Server stopped gracefully")
}
