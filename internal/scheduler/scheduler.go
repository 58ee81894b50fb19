// Package scheduler decides when the persisted risk data is stale and
// triggers a full recollection. Staleness is judged from the database file's
// mtime and contents: an absent file, one older than the configured
// threshold, or an empty risks table forces a refresh. A refresh discards all
// prior data before collecting.
package scheduler

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Zalgo-Dev/WeaRisk/internal/collector"
	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
	"github.com/Zalgo-Dev/WeaRisk/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CollectionRunner runs one full collection pass over the given regions.
type CollectionRunner interface {
	CollectAll(ctx context.Context, regions []domain.Region) (collector.Summary, error)
}

// RiskStore is the subset of the store the scheduler drives.
type RiskStore interface {
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Options control the staleness rule and the periodic loop.
type Options struct {
	Realtime           bool          // keep checking after the startup pass
	CheckInterval      time.Duration // sleep between staleness checks
	StalenessThreshold time.Duration // maximum age before a refresh is forced
}

// Scheduler owns the background refresh loop.
type Scheduler struct {
	store   RiskStore
	runner  CollectionRunner
	regions []domain.Region
	dbPath  string
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
}

// New creates a Scheduler. The db path is only ever stat-ed here; all data
// access goes through the store.
func New(store RiskStore, runner CollectionRunner, regions []domain.Region, dbPath string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Scheduler {
	return &Scheduler{
		store:   store,
		runner:  runner,
		regions: regions,
		dbPath:  dbPath,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// Run performs the startup staleness check unconditionally, so the store is
// populated before the service takes traffic, then loops on the check
// interval when realtime mode is on. Returns when the context is cancelled
// (or immediately after the startup check when realtime is off).
func (s *Scheduler) Run(ctx context.Context) error {
	s.checkAndRefresh(ctx)

	if !s.opts.Realtime {
		s.logger.Info("realtime mode off, refresh loop not started")
		return nil
	}

	s.logger.Info("refresh loop started", "check_interval", s.opts.CheckInterval)
	for {
		if !collector.SleepWithContext(ctx, s.clock, s.opts.CheckInterval) {
			s.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		}
		s.checkAndRefresh(ctx)
	}
}

// checkAndRefresh refreshes when the store is stale. Refresh errors are
// logged, never propagated: the next check gets another chance.
func (s *Scheduler) checkAndRefresh(ctx context.Context) {
	if !s.stale(ctx) {
		s.logger.Debug("risk data fresh, no refresh needed")
		return
	}

	s.logger.Info("risk data stale, refreshing", "db_path", s.dbPath)
	if err := s.store.Reset(ctx); err != nil {
		s.logger.Error("store reset failed", "error", err)
		return
	}

	summary, err := s.runner.CollectAll(ctx, s.regions)
	if err != nil {
		s.logger.Error("collection pass abandoned", "error", err)
		return
	}

	s.metrics.RefreshesTotal.Inc()
	s.metrics.LastRefreshTime.Set(float64(s.clock.Now().Unix()))
	s.logger.Info("refresh complete",
		"records_persisted", summary.RecordsPersisted,
		"regions_failed", summary.RegionsFailed)
}

// stale reports whether the database file is missing, older than the
// threshold, or empty. The emptiness check matters at first startup: opening
// the store creates the file ahead of this check, so a fresh mtime alone
// cannot prove the data has ever been collected.
func (s *Scheduler) stale(ctx context.Context) bool {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return true
	}
	if s.clock.Now().Sub(info.ModTime()) > s.opts.StalenessThreshold {
		return true
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn("staleness count failed, forcing refresh", "error", err)
		return true
	}
	return n == 0
}
