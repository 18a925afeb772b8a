package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Agent metrics
	AgentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loom_agents_total",
			Help: "Total number of registered agents by status",
		},
		[]string{"status"},
	)

	AgentRegistrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loom_agent_registrations_total",
			Help: "Total number of agent registrations accepted",
		},
	)

	AgentDeregistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_agent_deregistrations_total",
			Help: "Total number of agents removed, by reason (voluntary, dead_sweep)",
		},
		[]string{"reason"},
	)

	// Work state metrics
	WorkByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "loom_work_by_state",
			Help: "Current number of work items by lifecycle state",
		},
		[]string{"state"},
	)

	WorkCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loom_work_created_total",
			Help: "Total number of work items created",
		},
	)

	WorkCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loom_work_completed_total",
			Help: "Total number of work items that reached the completed state",
		},
	)

	WorkFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_work_failed_total",
			Help: "Total number of work items that reached a terminal failure, by reason class",
		},
		[]string{"reason"},
	)

	WorkAbandonedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loom_work_abandoned_total",
			Help: "Total number of work items abandoned after exhausting retries",
		},
	)

	// Claim metrics
	ClaimAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_claim_attempts_total",
			Help: "Total claim attempts by outcome (won, lost)",
		},
		[]string{"outcome"},
	)

	ClaimLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loom_claim_latency_seconds",
			Help:    "Time from claim attempt to lock acquisition or rejection",
			Buckets: prometheus.DefBuckets,
		},
	)

	ClaimHoldDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loom_claim_hold_duration_seconds",
			Help:    "Time a claim is held before completion, failure, or release",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		},
	)

	// Policy metrics
	PolicySelectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loom_policy_select_duration_seconds",
			Help:    "Time spent inside a policy's Select call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"policy"},
	)

	PolicyRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_policy_rejections_total",
			Help: "Total times a policy returned no candidate or an invalid one",
		},
		[]string{"policy"},
	)

	// Janitor metrics
	JanitorSweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loom_janitor_sweep_duration_seconds",
			Help:    "Time taken for a janitor sweep cycle, by sweep kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	JanitorReclaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loom_janitor_reclaimed_total",
			Help: "Total work items reclaimed by the janitor, by sweep kind",
		},
		[]string{"sweep"},
	)

	JanitorBottleneckGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loom_janitor_bottleneck_work_items",
			Help: "Number of pending work items at the last health snapshot",
		},
	)

	// Storage / emergency metrics
	EmergencyHaltActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loom_emergency_halt_active",
			Help: "1 if the store is in emergency halt, 0 otherwise",
		},
	)

	StorageDiskFreeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "loom_storage_disk_free_bytes",
			Help: "Free bytes available on the data directory's filesystem, as last observed",
		},
	)
)

func init() {
	prometheus.MustRegister(AgentsTotal)
	prometheus.MustRegister(AgentRegistrationsTotal)
	prometheus.MustRegister(AgentDeregistrationsTotal)

	prometheus.MustRegister(WorkByState)
	prometheus.MustRegister(WorkCreatedTotal)
	prometheus.MustRegister(WorkCompletedTotal)
	prometheus.MustRegister(WorkFailedTotal)
	prometheus.MustRegister(WorkAbandonedTotal)

	prometheus.MustRegister(ClaimAttemptsTotal)
	prometheus.MustRegister(ClaimLatency)
	prometheus.MustRegister(ClaimHoldDuration)

	prometheus.MustRegister(PolicySelectDuration)
	prometheus.MustRegister(PolicyRejectionsTotal)

	prometheus.MustRegister(JanitorSweepDuration)
	prometheus.MustRegister(JanitorReclaimedTotal)
	prometheus.MustRegister(JanitorBottleneckGauge)

	prometheus.MustRegister(EmergencyHaltActive)
	prometheus.MustRegister(StorageDiskFreeBytes)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
