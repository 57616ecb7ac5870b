package events

import (
	"time"

	"github.com/kilianp07/fleetassign/core/model"
)

// StatusEvent is emitted on every accepted status change.
type StatusEvent struct {
	OrderID   string
	VehicleID string
	From      model.OrderStatus
	To        model.OrderStatus
	Actor     string
	Time      time.Time
}

func (StatusEvent) Topic() string { return "status" }
