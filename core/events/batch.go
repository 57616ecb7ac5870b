package events

import (
	"time"

	"github.com/kilianp07/fleetassign/core/model"
)

// BatchEvent summarises a batch run. Reasons counts outcomes per reason.
type BatchEvent struct {
	RunID    string
	Strategy model.Strategy
	Trigger  string
	Orders   int
	Reasons  map[string]int
	Duration time.Duration
	Time     time.Time
}

func (BatchEvent) Topic() string { return "batch" }
