package model

import (
	"fmt"
	"time"
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Priority expresses the urgency of an order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusAssigned   OrderStatus = "assigned"
	StatusAccepted   OrderStatus = "accepted"
	StatusPickedUp   OrderStatus = "picked_up"
	StatusInTransit  OrderStatus = "in_transit"
	StatusDelivering OrderStatus = "delivering"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusProblem    OrderStatus = "problem"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusAccepted, StatusPickedUp, StatusInTransit,
		StatusDelivering, StatusDelivered, StatusCancelled, StatusProblem:
		return true
	}
	return false
}

// RequiresVehicle returns true for the statuses between assignment and delivery.
func (s OrderStatus) RequiresVehicle() bool {
	switch s {
	case StatusAssigned, StatusAccepted, StatusPickedUp, StatusInTransit, StatusDelivering, StatusDelivered:
		return true
	}
	return false
}

// ActiveMission returns true if an order in this status counts towards the
// load of its vehicle.
func (s OrderStatus) ActiveMission() bool {
	switch s {
	case StatusAssigned, StatusInTransit, StatusDelivering:
		return true
	}
	return false
}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusAccepted, StatusPickedUp, StatusInTransit, StatusCancelled, StatusProblem},
	StatusAccepted:   {StatusPickedUp, StatusCancelled, StatusProblem},
	StatusPickedUp:   {StatusInTransit, StatusProblem},
	StatusInTransit:  {StatusDelivering, StatusProblem},
	StatusDelivering: {StatusDelivered, StatusProblem},
	StatusProblem:    {StatusPending, StatusInTransit, StatusDelivering, StatusCancelled},
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Order is a shipment request needing pickup and delivery.
type Order struct {
	ID        string       `json:"id" yaml:"id"`
	Number    string       `json:"number,omitempty" yaml:"number,omitempty"`
	ClientID  string       `json:"client_id" yaml:"client_id"`
	Weight    float64      `json:"weight" yaml:"weight"` // kg
	Volume    *float64     `json:"volume,omitempty" yaml:"volume,omitempty"`
	Pickup    *Coordinates `json:"pickup,omitempty" yaml:"pickup,omitempty"`
	Dropoff   *Coordinates `json:"dropoff,omitempty" yaml:"dropoff,omitempty"`
	Priority  Priority     `json:"priority" yaml:"priority"`
	Status    OrderStatus  `json:"status" yaml:"status"`
	VehicleID string       `json:"vehicle_id,omitempty" yaml:"vehicle_id,omitempty"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	Version   int64        `json:"version" yaml:"-"`
}

// Validate checks the order invariants.
func (o Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("order id is required")
	}
	if o.Weight <= 0 {
		return fmt.Errorf("order %s: weight must be positive", o.ID)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	if o.Priority != "" && !o.Priority.Valid() {
		return fmt.Errorf("order %s: unknown priority %q", o.ID, o.Priority)
	}
	if o.Status.RequiresVehicle() && o.VehicleID == "" {
		return fmt.Errorf("order %s: status %s without vehicle", o.ID, o.Status)
	}
	return nil
}
