package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pool service.
type Metrics struct {
	// --- Core processing ---
	CoreOpsApplied  *prometheus.CounterVec
	CoreOpsRejected *prometheus.CounterVec
	CoreOpDuration  *prometheus.HistogramVec
	CoreSequence    prometheus.Gauge

	// --- Cycle lifecycle ---
	CycleIndex        prometheus.Gauge
	CycleState        prometheus.Gauge
	CyclesCompleted   prometheus.Counter
	CyclesHalted      prometheus.Counter
	LPsSettled        prometheus.Counter
	InterestAccrued   prometheus.Counter
	SplitsResolved    prometheus.Counter

	// --- Pool ---
	TotalDeposits     prometheus.Gauge
	QueuedDeposits    prometheus.Gauge
	QueuedRedemptions prometheus.Gauge
	SyntheticSupply   prometheus.Gauge

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Ingestion ---
	IngestMessages   *prometheus.CounterVec
	IngestParseFails *prometheus.CounterVec

	// --- Persistence ---
	PersistOpsWritten    prometheus.Counter
	PersistCyclesWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- HTTP API ---
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreOpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_core_ops_applied_total",
			Help: "Operations successfully applied by core",
		}, []string{"kind"}),

		CoreOpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_core_ops_rejected_total",
			Help: "Operations rejected by gate or validation checks",
		}, []string{"kind"}),

		CoreOpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synth_core_op_apply_duration_seconds",
			Help:    "Time to apply a single operation in core",
			Buckets: latencyBuckets,
		}, []string{"kind"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_core_sequence",
			Help: "Current global sequence number",
		}),

		CycleIndex: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_cycle_index",
			Help: "Current cycle index",
		}),

		CycleState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_cycle_state",
			Help: "Current cycle state (0=active 1=offchain 2=onchain 3=halted)",
		}),

		CyclesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_cycles_completed_total",
			Help: "Cycles completed",
		}),

		CyclesHalted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_cycles_halted_total",
			Help: "Cycles completed into the halted state",
		}),

		LPsSettled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_lps_settled_total",
			Help: "Per-provider settlements executed",
		}),

		InterestAccrued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_interest_accrued_total",
			Help: "Interest accrued (reserve units)",
		}),

		SplitsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_splits_resolved_total",
			Help: "Price-discontinuity splits resolved",
		}),

		TotalDeposits: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_pool_total_deposits",
			Help: "Reserve backing claimed positions",
		}),

		QueuedDeposits: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_pool_queued_deposits",
			Help: "Reserve in pending deposit requests",
		}),

		QueuedRedemptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_pool_queued_redemptions",
			Help: "Synthetic units escrowed for redemption",
		}),

		SyntheticSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_supply",
			Help: "Outstanding synthetic supply",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synth_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synth_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "synth_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_publish_drops_total",
			Help: "Notifications dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		IngestMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_ingest_messages_total",
			Help: "NATS messages received",
		}, []string{"subject"}),

		IngestParseFails: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_ingest_parse_failures_total",
			Help: "NATS messages that failed to parse",
		}, []string{"subject"}),

		PersistOpsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_ops_written_total",
			Help: "Operations written to Postgres",
		}),

		PersistCyclesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "synth_persist_cycles_written_total",
			Help: "Cycle records written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_persist_batch_size",
			Help:    "Operations per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "synth_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "synth_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		APIRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "synth_api_requests_total",
			Help: "HTTP API requests",
		}, []string{"endpoint", "status"}),

		APIDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synth_api_duration_seconds",
			Help:    "HTTP API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
