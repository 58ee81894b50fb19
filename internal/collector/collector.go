// Package collector orchestrates a full collection pass: regions are split
// into fixed-size batches, each batch fans out over a bounded worker pool to
// fetch and score forecasts, and every batch's records are persisted in one
// transaction. Success for a pass means "ran to completion", not "every
// region succeeded".
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Zalgo-Dev/WeaRisk/internal/domain"
	"github.com/Zalgo-Dev/WeaRisk/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ForecastFetcher fetches one region's hourly forecast series.
type ForecastFetcher interface {
	Fetch(ctx context.Context, region domain.Region) (domain.ForecastSeries, error)
}

// BatchWriter persists one batch of records transactionally.
type BatchWriter interface {
	InsertBatch(ctx context.Context, records []domain.RiskRecord) error
}

// Options are the pacing knobs of a collection pass.
type Options struct {
	BatchSize  int           // regions per batch
	Workers    int           // concurrent fetch+compute tasks per batch
	BatchPause time.Duration // courtesy pause between batches
}

// Summary reports the outcome of one collection pass.
type Summary struct {
	RegionsAttempted int
	RegionsFailed    int
	BatchesPersisted int
	BatchesDropped   int
	RecordsPersisted int
	RecordsLost      int
}

// Collector runs collection passes against a fetcher and a writer.
type Collector struct {
	fetcher ForecastFetcher
	writer  BatchWriter
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	opts    Options
}

// New creates a Collector with the given stages and pacing.
func New(fetcher ForecastFetcher, writer BatchWriter, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock, opts Options) *Collector {
	return &Collector{
		fetcher: fetcher,
		writer:  writer,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
		opts:    opts,
	}
}

// CollectAll processes every region batch by batch. Per-region failures are
// logged and skipped; a failed batch transaction drops that batch and the
// pass continues. The only error returned is the context's, when the pass is
// abandoned mid-run.
func (c *Collector) CollectAll(ctx context.Context, regions []domain.Region) (Summary, error) {
	c.logger.Info("collection pass started",
		"regions", len(regions), "batch_size", c.opts.BatchSize, "workers", c.opts.Workers)
	c.metrics.CollectionRunning.Set(1)
	defer c.metrics.CollectionRunning.Set(0)

	var summary Summary
	for start := 0; start < len(regions); start += c.opts.BatchSize {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		end := min(start+c.opts.BatchSize, len(regions))
		c.collectBatch(ctx, regions[start:end], &summary)

		// Courtesy pause before the next batch, independent of the rate
		// limiter. Not applied after the last batch.
		if end < len(regions) {
			if !SleepWithContext(ctx, c.clock, c.opts.BatchPause) {
				return summary, ctx.Err()
			}
		}
	}

	c.logger.Info("collection pass finished",
		"regions_attempted", summary.RegionsAttempted,
		"regions_failed", summary.RegionsFailed,
		"records_persisted", summary.RecordsPersisted,
		"records_lost", summary.RecordsLost)
	return summary, nil
}

// collectBatch fans the batch out over the worker pool, gathers the records
// of every region that succeeded, and persists them in one transaction.
func (c *Collector) collectBatch(ctx context.Context, batch []domain.Region, summary *Summary) {
	var (
		mu      sync.Mutex
		records []domain.RiskRecord
		failed  int
	)

	sem := make(chan struct{}, c.opts.Workers)
	var wg sync.WaitGroup
	for _, region := range batch {
		region := region
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			regionRecords, err := c.collectRegion(ctx, region)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			records = append(records, regionRecords...)
		}()
	}
	wg.Wait()

	summary.RegionsAttempted += len(batch)
	summary.RegionsFailed += failed

	if len(records) == 0 {
		return
	}

	c.metrics.BatchSize.Observe(float64(len(records)))
	start := time.Now()
	if err := c.writer.InsertBatch(ctx, records); err != nil {
		// Documented data-loss path: a batch whose transaction fails is
		// dropped for this pass, surfaced here, and never retried.
		c.logger.Error("batch persist failed, dropping batch",
			"error", err, "records_lost", len(records))
		c.metrics.BatchesDropped.Inc()
		c.metrics.RecordsLost.Add(float64(len(records)))
		summary.BatchesDropped++
		summary.RecordsLost += len(records)
		return
	}

	c.metrics.BatchPersistDuration.Observe(time.Since(start).Seconds())
	c.metrics.BatchesPersisted.Inc()
	c.metrics.RecordsPersisted.Add(float64(len(records)))
	summary.BatchesPersisted++
	summary.RecordsPersisted += len(records)
	c.logger.Info("batch persisted", "records", len(records), "regions_failed", failed)
}

// collectRegion fetches and scores one region. Failures are contained here:
// the region is excluded from the batch and the rest of the pass is
// unaffected.
func (c *Collector) collectRegion(ctx context.Context, region domain.Region) ([]domain.RiskRecord, error) {
	series, err := c.fetcher.Fetch(ctx, region)
	if err != nil {
		c.logger.Warn("forecast fetch failed, skipping department",
			"department", region.Code, "error", err)
		return nil, err
	}

	records, err := domain.ComputeRisks(series, region)
	if err != nil {
		c.logger.Warn("risk computation failed, skipping department",
			"department", region.Code, "error", err)
		return nil, err
	}
	return records, nil
}

// SleepWithContext blocks for d on the given clock, returning false when the
// context is cancelled first. A non-positive duration only checks the context.
// The scheduler shares this for its check-interval sleeps.
func SleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
