package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetassign/core/metrics"
)

// PromSink records assignment activity in Prometheus metrics.
type PromSink struct {
	outcomes    *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	batches     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_outcomes_total",
			Help: "Assignment outcomes per strategy and reason",
		}, []string{"strategy", "reason"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assignment_score",
			Help:    "Score of committed assignments",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"strategy"}),
		batches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assignment_batch_duration_seconds",
			Help:    "Duration of batch assignment runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Accepted order status transitions",
		}, []string{"from", "to"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_conflicts_observed_total",
			Help: "Commits that lost their compare-and-swap",
		}),
	}
	var err error
	if s.outcomes, err = register(reg, s.outcomes); err != nil {
		return nil, err
	}
	if s.scores, err = register(reg, s.scores); err != nil {
		return nil, err
	}
	if s.batches, err = register(reg, s.batches); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, s.conflicts); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignments counts outcomes and observes committed scores.
func (s *PromSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.outcomes.WithLabelValues(r.Strategy.String(), r.Reason).Inc()
		if r.VehicleID != "" {
			s.scores.WithLabelValues(r.Strategy.String()).Observe(r.Score)
		}
	}
	return nil
}

func (s *PromSink) RecordBatch(sum coremetrics.BatchSummary) error {
	s.batches.WithLabelValues(sum.Trigger).Observe(sum.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordStatusChange(ev coremetrics.StatusChange) error {
	s.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	return nil
}

func (s *PromSink) RecordConflict(coremetrics.ConflictEvent) error {
	s.conflicts.Inc()
	return nil
}
