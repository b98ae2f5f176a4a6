package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the support/resistance engine.
type Metrics struct {
	// Ingest
	BarsTotal       *prometheus.CounterVec // labels: series
	BatchesTotal    *prometheus.CounterVec // labels: series
	SeriesBars      *prometheus.GaugeVec   // labels: series
	IngestErrors    *prometheus.CounterVec // labels: reason
	FeedReconnects  prometheus.Counter
	FeedConnected   prometheus.Gauge
	BarLag          prometheus.Gauge
	SQLiteCommitDur prometheus.Histogram

	// Analysis
	Pivots     *prometheus.GaugeVec // labels: series, role
	ProcessDur prometheus.Histogram

	// Paper trading
	OrdersTotal *prometheus.CounterVec // labels: series
	FillsTotal  *prometheus.CounterVec // labels: series
	RunningPnL  *prometheus.GaugeVec   // labels: series

	// Backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics on reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		BarsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_bars_total",
			Help: "Bars accepted into the bar store",
		}, []string{"series"}),
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_batches_total",
			Help: "Historical batch-complete sentinels processed",
		}, []string{"series"}),
		SeriesBars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "srtrader_series_bars",
			Help: "Bars held in memory per series",
		}, []string{"series"}),
		IngestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_ingest_errors_total",
			Help: "Feed messages or bars rejected (malformed, out_of_order, unknown_series)",
		}, []string{"reason"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srtrader_feed_reconnects_total",
			Help: "Total feed WebSocket reconnection attempts",
		}),
		FeedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_feed_connected",
			Help: "Feed connection state (0=down, 1=up)",
		}),
		BarLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_bar_lag_seconds",
			Help: "Lag between the last live bar timestamp and its processing",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "srtrader_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		Pivots: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "srtrader_pivots",
			Help: "Levels kept after clustering in the last snapshot",
		}, []string{"series", "role"}),
		ProcessDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "srtrader_process_duration_seconds",
			Help:    "Per-event processing latency (store, detect, cluster, select, paper)",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_orders_total",
			Help: "Paper orders placed or moved",
		}, []string{"series"}),
		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_fills_total",
			Help: "Paper orders filled",
		}, []string{"series"}),
		RunningPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "srtrader_running_pnl",
			Help: "Mark-to-market P&L of the open paper position",
		}, []string{"series"}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_fanout_drops_total",
			Help: "Snapshots dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "srtrader_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srtrader_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.BarsTotal,
		m.BatchesTotal,
		m.SeriesBars,
		m.IngestErrors,
		m.FeedReconnects,
		m.FeedConnected,
		m.BarLag,
		m.SQLiteCommitDur,
		m.Pivots,
		m.ProcessDur,
		m.OrdersTotal,
		m.FillsTotal,
		m.RunningPnL,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// SetFeedConnected mirrors the feed connection state.
func (m *Metrics) SetFeedConnected(v bool) {
	if v {
		m.FeedConnected.Set(1)
	} else {
		m.FeedConnected.Set(0)
	}
}

// SetChannelSaturation records len/cap of a named channel.
func (m *Metrics) SetChannelSaturation(name string, length, capacity int) {
	if capacity == 0 {
		return
	}
	m.ChannelSaturationPct.WithLabelValues(name).Set(float64(length) / float64(capacity) * 100)
}
