package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the placement engine and
// timer wheel
type Metrics struct {
	// Placement metrics
	LocateTotal     prometheus.CounterVec
	LocateDuration  prometheus.Histogram
	NodesTotal      prometheus.Gauge
	NodesHealthy    prometheus.Gauge
	RingVersion     prometheus.Gauge
	QuorumFailures  prometheus.Counter
	RebalanceMoves  prometheus.Counter
	RebalanceBytes  prometheus.Counter

	// Timer wheel metrics
	TimerRegistrations prometheus.Counter
	TimerCancellations prometheus.Counter
	TimerExpirations   prometheus.Counter
	TimerCascades      prometheus.Counter
	TimersActive       prometheus.Gauge
	TimersOverflow     prometheus.Gauge
	ProcessDuration    prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(ringName string) *Metrics {
	labels := prometheus.Labels{"ring": ringName}

	return &Metrics{
		// Placement metrics
		LocateTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "locate_total",
			Help:        "Total number of locate operations by strategy",
			ConstLabels: labels,
		}, []string{"strategy"}),
		LocateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "locate_duration_seconds",
			Help:        "Histogram of locate operation durations",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-7, 4, 10), // 100ns to ~26ms
		}),
		NodesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "nodes_total",
			Help:        "Total number of ring members",
			ConstLabels: labels,
		}),
		NodesHealthy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "nodes_healthy",
			Help:        "Number of ring members in the up state",
			ConstLabels: labels,
		}),
		RingVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "ring_version",
			Help:        "Current topology version of the ring",
			ConstLabels: labels,
		}),
		QuorumFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "quorum_failures_total",
			Help:        "Total number of plans that could not meet their quorum",
			ConstLabels: labels,
		}),
		RebalanceMoves: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "rebalance_moves_total",
			Help:        "Total number of completed rebalance moves",
			ConstLabels: labels,
		}),
		RebalanceBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "placement",
			Name:        "rebalance_bytes_total",
			Help:        "Total estimated bytes moved by rebalancing",
			ConstLabels: labels,
		}),

		// Timer wheel metrics
		TimerRegistrations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "registrations_total",
			Help:        "Total number of timer registrations",
			ConstLabels: labels,
		}),
		TimerCancellations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "cancellations_total",
			Help:        "Total number of timer cancellations",
			ConstLabels: labels,
		}),
		TimerExpirations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "expirations_total",
			Help:        "Total number of timer expirations",
			ConstLabels: labels,
		}),
		TimerCascades: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "cascades_total",
			Help:        "Total number of non-empty slot cascades",
			ConstLabels: labels,
		}),
		TimersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "timers_active",
			Help:        "Current number of registered timers",
			ConstLabels: labels,
		}),
		TimersOverflow: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "timers_overflow",
			Help:        "Current number of timers parked in the overflow bucket",
			ConstLabels: labels,
		}),
		ProcessDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "clusterkit",
			Subsystem:   "timerwheel",
			Name:        "process_duration_seconds",
			Help:        "Histogram of timer wheel processing durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// RecordLocate records metrics for a locate operation
func (m *Metrics) RecordLocate(strategy string, duration float64) {
	m.LocateTotal.WithLabelValues(strategy).Inc()
	m.LocateDuration.Observe(duration)
}

// UpdateNodeCounts updates ring membership gauges
func (m *Metrics) UpdateNodeCounts(total, healthy int) {
	m.NodesTotal.Set(float64(total))
	m.NodesHealthy.Set(float64(healthy))
}

// UpdateRingVersion updates the topology version gauge
func (m *Metrics) UpdateRingVersion(version uint64) {
	m.RingVersion.Set(float64(version))
}

// RecordQuorumFailure records a plan that fell short of its quorum
func (m *Metrics) RecordQuorumFailure() {
	m.QuorumFailures.Inc()
}

// RecordRebalanceMove records a completed rebalance move
func (m *Metrics) RecordRebalanceMove(bytes uint64) {
	m.RebalanceMoves.Inc()
	m.RebalanceBytes.Add(float64(bytes))
}

// RecordTimerRegistration records a timer registration
func (m *Metrics) RecordTimerRegistration() {
	m.TimerRegistrations.Inc()
}

// RecordTimerCancellation records a timer cancellation
func (m *Metrics) RecordTimerCancellation() {
	m.TimerCancellations.Inc()
}

// RecordTimerExpiration records a timer expiration
func (m *Metrics) RecordTimerExpiration() {
	m.TimerExpirations.Inc()
}

// RecordTimerCascade records a non-empty slot cascade
func (m *Metrics) RecordTimerCascade() {
	m.TimerCascades.Inc()
}

// UpdateTimerCounts updates the active and overflow timer gauges
func (m *Metrics) UpdateTimerCounts(active, overflow int) {
	m.TimersActive.Set(float64(active))
	m.TimersOverflow.Set(float64(overflow))
}

// RecordProcess records a timer wheel processing pass
func (m *Metrics) RecordProcess(duration float64) {
	m.ProcessDuration.Observe(duration)
}
