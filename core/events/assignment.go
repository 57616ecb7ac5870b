package events

import (
	"time"

	"github.com/kilianp07/fleetassign/core/model"
)

// AssignmentEvent is published after a successful commit.
type AssignmentEvent struct {
	OrderID    string
	OrderNum   string
	ClientID   string
	VehicleID  string
	OperatorID string
	Strategy   model.Strategy
	Score      float64
	Actor      string
	Time       time.Time
}

func (AssignmentEvent) Topic() string { return "assignment" }

// ConflictEvent is published when a commit precondition no longer holds.
type ConflictEvent struct {
	OrderID   string
	VehicleID string
	Err       error
	Time      time.Time
}

func (ConflictEvent) Topic() string { return "conflict" }
