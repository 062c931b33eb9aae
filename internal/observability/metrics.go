package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "robotserver",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "robotserver",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "robotserver",
			Subsystem: "session",
			Name:      "sessions_total",
			Help:      "Total robot sessions accepted.",
		},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "robotserver",
			Subsystem: "session",
			Name:      "sessions_active",
			Help:      "Robot sessions currently in flight.",
		},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "robotserver",
			Subsystem: "session",
			Name:      "session_duration_seconds",
			Help:      "Wall time of a robot session from accept to close.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	sessionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "robotserver",
			Subsystem: "session",
			Name:      "outcomes_total",
			Help:      "Robot sessions grouped by terminal outcome.",
		},
		[]string{"outcome"},
	)
	obstacleHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "robotserver",
			Subsystem: "navigator",
			Name:      "obstacle_hits_total",
			Help:      "Forward moves that failed to change coordinates.",
		},
	)
	rechargeCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "robotserver",
			Subsystem: "session",
			Name:      "recharge_cycles_total",
			Help:      "RECHARGING/FULL POWER cycles completed without error.",
		},
	)
)

// Outcome labels recorded against sessionOutcomes.
const (
	OutcomeSecretDelivered = "secret_delivered"
	OutcomeSyntaxError     = "syntax_error"
	OutcomeKeyOutOfRange   = "key_out_of_range"
	OutcomeLoginFailed     = "login_failed"
	OutcomeLogicError      = "logic_error"
	OutcomeTimeout         = "timeout"
	OutcomeExhaustion      = "exhaustion"
	OutcomeTransportError  = "transport_error"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionsTotal,
			sessionsActive,
			sessionDuration,
			sessionOutcomes,
			obstacleHits,
			rechargeCycles,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionStart() {
	RegisterMetrics()
	sessionsTotal.Inc()
	sessionsActive.Inc()
}

func RecordSessionEnd(outcome string, started time.Time) {
	RegisterMetrics()
	sessionsActive.Dec()
	sessionDuration.Observe(time.Since(started).Seconds())
	sessionOutcomes.WithLabelValues(outcome).Inc()
}

func RecordObstacleHit() {
	RegisterMetrics()
	obstacleHits.Inc()
}

func RecordRechargeCycle() {
	RegisterMetrics()
	rechargeCycles.Inc()
}
