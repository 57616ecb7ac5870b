// Package notify delivers fire-and-forget messages to vehicle operators and
// clients. Notifiers are called from an asynchronous Dispatcher so a slow or
// failing sink never delays an assignment commit.
package notify

import (
	"context"
	"errors"
	"time"
)

// Kind is the category of a notification.
type Kind string

const (
	// KindMissionAssigned tells an operator that a mission was given to their vehicle.
	KindMissionAssigned Kind = "mission_assigned"
	// KindOrderAssigned tells a client that their order has a vehicle.
	KindOrderAssigned Kind = "order_assigned"
	// KindStatusChanged tells a client that their order moved in the workflow.
	KindStatusChanged Kind = "status_changed"
)

// Notification is a message addressed to a single recipient.
type Notification struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Kind      Kind           `json:"kind"`
	OrderID   string         `json:"order_id"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	Time      time.Time      `json:"time"`
}

// Topic allows notifications to travel on the event bus.
func (Notification) Topic() string { return "notification" }

// Notifier sends a notification to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Multi sends every notification to all notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, nt := range m {
		errs = append(errs, nt.Notify(ctx, n))
	}
	return errors.Join(errs...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }
