// Package logging persists an audit trail of assignment runs. Each batch or
// manual assignment produces one LogRecord holding its worklist and the
// outcome of every order.
package logging

import (
	"context"
	"time"
)

// OutcomeEntry is the persisted form of a single order outcome.
type OutcomeEntry struct {
	OrderID   string  `json:"order_id"`
	VehicleID string  `json:"vehicle_id,omitempty"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

// LogRecord captures one assignment run.
type LogRecord struct {
	RunID      string         `json:"run_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Strategy   string         `json:"strategy"`
	Trigger    string         `json:"trigger"`
	Actor      string         `json:"actor,omitempty"`
	Worklist   []string       `json:"worklist"`
	Outcomes   []OutcomeEntry `json:"outcomes"`
	DurationMS float64        `json:"duration_ms"`
}

// LogQuery filters log records. Zero values match everything.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	OrderID   string
	VehicleID string
	Strategy  string
	Limit     int
}

// Matches reports whether the record satisfies q, ignoring Limit.
func (r LogRecord) Matches(q LogQuery) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Strategy != "" && r.Strategy != q.Strategy {
		return false
	}
	if q.OrderID == "" && q.VehicleID == "" {
		return true
	}
	for _, o := range r.Outcomes {
		if q.OrderID != "" && o.OrderID != q.OrderID {
			continue
		}
		if q.VehicleID != "" && o.VehicleID != q.VehicleID {
			continue
		}
		return true
	}
	return false
}

// LogStore persists and retrieves assignment run records.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

func limit(recs []LogRecord, n int) []LogRecord {
	if n > 0 && len(recs) > n {
		return recs[len(recs)-n:]
	}
	return recs
}
