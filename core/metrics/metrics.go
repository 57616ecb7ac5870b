package metrics

import (
	"time"

	"github.com/kilianp07/fleetassign/core/model"
)

// AssignmentRecord is the outcome of one order in an assignment run.
type AssignmentRecord struct {
	RunID     string
	OrderID   string
	VehicleID string
	Strategy  model.Strategy
	Reason    string
	Score     float64
	Time      time.Time
}

// MetricsSink records assignment outcomes for observability purposes.
type MetricsSink interface {
	RecordAssignments(recs []AssignmentRecord) error
}

// BatchSummary aggregates a batch run. Score statistics only cover assigned
// orders and are zero when nothing was assigned.
type BatchSummary struct {
	RunID     string
	Strategy  model.Strategy
	Trigger   string
	Orders    int
	Assigned  int
	MeanScore float64
	MinScore  float64
	MaxScore  float64
	Duration  time.Duration
	Time      time.Time
}

// BatchRecorder records batch summaries.
type BatchRecorder interface {
	RecordBatch(s BatchSummary) error
}

// StatusChange is an accepted order status transition.
type StatusChange struct {
	OrderID   string
	VehicleID string
	From      model.OrderStatus
	To        model.OrderStatus
	Time      time.Time
}

// StatusRecorder records order status transitions.
type StatusRecorder interface {
	RecordStatusChange(ev StatusChange) error
}

// ConflictEvent is a commit that lost its compare-and-swap.
type ConflictEvent struct {
	OrderID   string
	VehicleID string
	Time      time.Time
}

// ConflictRecorder records commit conflicts.
type ConflictRecorder interface {
	RecordConflict(ev ConflictEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignments([]AssignmentRecord) error { return nil }
func (NopSink) RecordBatch(BatchSummary) error             { return nil }
func (NopSink) RecordStatusChange(StatusChange) error      { return nil }
func (NopSink) RecordConflict(ConflictEvent) error         { return nil }
