package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commitLatency      prometheus.Histogram
	batchOrders        prometheus.Histogram
	outcomesTotal      *prometheus.CounterVec
	commitConflicts    prometheus.Counter
	dependencyFailures *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Histogram, prometheus.Histogram, *prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec) {
	lat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_commit_latency_seconds",
			Help:    "Duration of the assignment compare-and-swap",
			Buckets: prometheus.DefBuckets,
		},
	)
	size := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_batch_orders",
			Help:    "Number of orders in the worklist of a batch run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	out := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_outcomes_total",
			Help: "Number of per-order outcomes by reason",
		},
		[]string{"reason"},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_commit_conflicts_total",
			Help: "Number of commits rejected because the order or vehicle changed",
		},
	)
	dep := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_dependency_failures_total",
			Help: "Number of store or estimator failures",
		},
		[]string{"op"},
	)
	return lat, size, out, conf, dep
}

func init() {
	commitLatency, batchOrders, outcomesTotal, commitConflicts, dependencyFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commitLatency, batchOrders, outcomesTotal, commitConflicts, dependencyFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commitLatency, batchOrders, outcomesTotal, commitConflicts, dependencyFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
