package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/Zalgo-Dev/WeaRisk/internal/adapter/http"
	"github.com/Zalgo-Dev/WeaRisk/internal/adapter/openmeteo"
	"github.com/Zalgo-Dev/WeaRisk/internal/catalog"
	"github.com/Zalgo-Dev/WeaRisk/internal/collector"
	"github.com/Zalgo-Dev/WeaRisk/internal/config"
	"github.com/Zalgo-Dev/WeaRisk/internal/observability"
	"github.com/Zalgo-Dev/WeaRisk/internal/ratelimit"
	"github.com/Zalgo-Dev/WeaRisk/internal/scheduler"
	"github.com/Zalgo-Dev/WeaRisk/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open risk store", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(clock,
		ratelimit.Window{Limit: cfg.MaxCallsPerMinute, Period: time.Minute},
		ratelimit.Window{Limit: cfg.MaxCallsPerHour, Period: time.Hour},
	)
	client := openmeteo.NewClient(cfg.ForecastBaseURL, cfg.ForecastTimeout, limiter, logger, metrics)

	coll := collector.New(client, st, logger, metrics, clock, collector.Options{
		BatchSize:  cfg.BatchSize,
		Workers:    cfg.Workers,
		BatchPause: cfg.BatchPause,
	})
	sched := scheduler.New(st, coll, catalog.Regions(), cfg.DBPath, clock, logger, metrics, scheduler.Options{
		Realtime:           cfg.Realtime,
		CheckInterval:      cfg.UpdateCheckInterval,
		StalenessThreshold: cfg.StalenessThreshold,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. A listener failure takes the process down.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start the refresh scheduler: one unconditional staleness check at
	// startup, then the periodic loop when realtime mode is on.
	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("risk store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
