package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "transitions_total", Help: "Status transition attempts by action and result code."},
		[]string{"action", "result"},
	)
	TransitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docflow", Name: "transition_duration_seconds", Help: "Wall time of one transition unit of work, lock wait included.", Buckets: prometheus.DefBuckets},
		[]string{"action"},
	)
	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docflow", Name: "batch_size", Help: "Number of ids per batch request.", Buckets: []float64{1, 10, 50, 100, 250, 500, 1000}},
		[]string{"action"},
	)
	ConcurrencyRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docflow", Name: "concurrency_runs_total", Help: "Number of concurrent approval test runs."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(Transitions)
	reg.MustRegister(TransitionDuration)
	reg.MustRegister(BatchSize)
	reg.MustRegister(ConcurrencyRuns)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
