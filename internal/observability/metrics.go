package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// collection pipeline.
type Metrics struct {
	ForecastFetches   *prometheus.CounterVec // labels: outcome={success,error,malformed}
	RateLimitWait     prometheus.Histogram
	CollectionRunning prometheus.Gauge

	// Persistence metrics.
	BatchSize            prometheus.Histogram
	BatchPersistDuration prometheus.Histogram
	RecordsPersisted     prometheus.Counter
	BatchesPersisted     prometheus.Counter

	// Data-loss accounting: a batch whose transaction fails is dropped for
	// that pass, by contract. These counters make the loss visible.
	BatchesDropped prometheus.Counter
	RecordsLost    prometheus.Counter

	// Refresh scheduling metrics.
	RefreshesTotal  prometheus.Counter
	LastRefreshTime prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ForecastFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wearisk",
			Name:      "forecast_fetches_total",
			Help:      "Forecast API calls by outcome.",
		}, []string{"outcome"}),
		RateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wearisk",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent suspended in the rate limiter per call.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		CollectionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wearisk",
			Name:      "collection_running",
			Help:      "1 while a collection pass is active, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wearisk",
			Name:      "batch_records",
			Help:      "Risk records produced per batch.",
			Buckets:   []float64{24, 48, 96, 192, 288, 384, 480},
		}),
		BatchPersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wearisk",
			Name:      "batch_persist_duration_seconds",
			Help:      "Duration of one batch insert transaction.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wearisk",
			Name:      "records_persisted_total",
			Help:      "Total risk records durably written.",
		}),
		BatchesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wearisk",
			Name:      "batches_persisted_total",
			Help:      "Total batch transactions committed.",
		}),
		BatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wearisk",
			Name:      "batches_dropped_total",
			Help:      "Batches lost because their insert transaction failed.",
		}),
		RecordsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wearisk",
			Name:      "records_lost_total",
			Help:      "Risk records lost with dropped batches.",
		}),
		RefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wearisk",
			Name:      "refreshes_total",
			Help:      "Full store refreshes triggered by the scheduler.",
		}),
		LastRefreshTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wearisk",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last completed refresh.",
		}),
	}

	prometheus.MustRegister(
		m.ForecastFetches,
		m.RateLimitWait,
		m.CollectionRunning,
		m.BatchSize,
		m.BatchPersistDuration,
		m.RecordsPersisted,
		m.BatchesPersisted,
		m.BatchesDropped,
		m.RecordsLost,
		m.RefreshesTotal,
		m.LastRefreshTime,
	)

	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry
// to avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ForecastFetches:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "wearisk", Name: "forecast_fetches_total"}, []string{"outcome"}),
		RateLimitWait:        prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "wearisk", Name: "rate_limit_wait_seconds"}),
		CollectionRunning:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "wearisk", Name: "collection_running"}),
		BatchSize:            prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "wearisk", Name: "batch_records"}),
		BatchPersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "wearisk", Name: "batch_persist_duration_seconds"}),
		RecordsPersisted:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wearisk", Name: "records_persisted_total"}),
		BatchesPersisted:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wearisk", Name: "batches_persisted_total"}),
		BatchesDropped:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wearisk", Name: "batches_dropped_total"}),
		RecordsLost:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wearisk", Name: "records_lost_total"}),
		RefreshesTotal:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "wearisk", Name: "refreshes_total"}),
		LastRefreshTime:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "wearisk", Name: "last_refresh_timestamp_seconds"}),
	}
}
