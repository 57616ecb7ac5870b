package model

import "time"

// TrackingKind is the fixed vocabulary of order tracking events.
type TrackingKind string

const (
	TrackOrderCreated    TrackingKind = "order_created"
	TrackVehicleAssigned TrackingKind = "vehicle_assigned"
	TrackPickupStarted   TrackingKind = "pickup_started"
	TrackPickedUp        TrackingKind = "picked_up"
	TrackInTransit       TrackingKind = "in_transit"
	TrackArrived         TrackingKind = "arrived"
	TrackDelivering      TrackingKind = "delivering"
	TrackDelivered       TrackingKind = "delivered"
	TrackIncident        TrackingKind = "incident"
)

// TrackingEntry is an immutable audit record attached to an order.
type TrackingEntry struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"order_id"`
	VehicleID string       `json:"vehicle_id,omitempty"`
	Kind      TrackingKind `json:"kind"`
	Note      string       `json:"note,omitempty"`
	Position  *Coordinates `json:"position,omitempty"`
	Actor     string       `json:"actor,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// TrackingKindFor maps a status change to the tracking event recorded for it.
func TrackingKindFor(s OrderStatus) TrackingKind {
	switch s {
	case StatusAssigned:
		return TrackVehicleAssigned
	case StatusAccepted:
		return TrackPickupStarted
	case StatusPickedUp:
		return TrackPickedUp
	case StatusInTransit:
		return TrackInTransit
	case StatusDelivering:
		return TrackDelivering
	case StatusDelivered:
		return TrackDelivered
	default:
		return TrackIncident
	}
}
