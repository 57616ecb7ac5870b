// Package store defines the persistence contract of orders, vehicles and
// their tracking history. Every mutation is a conditional update: callers
// state the precondition and the store applies it atomically.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fleetassign/core/model"
)

var (
	// ErrNotFound is returned when an order or a vehicle does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when the precondition of a conditional update
	// no longer holds.
	ErrConflict = errors.New("conflict")
)

// OrderFilter restricts ListOrders. Zero values match everything.
type OrderFilter struct {
	Status model.OrderStatus
	IDs    []string
}

// Guard re-validates a vehicle inside the critical section of AssignOrder.
// active is the freshly recomputed number of active missions of the vehicle.
type Guard func(v model.Vehicle, active int) error

// AssignRequest describes a pending→assigned compare-and-swap.
type AssignRequest struct {
	OrderID   string
	VehicleID string
	Entry     model.TrackingEntry
	Guard     Guard
}

// StatusUpdate describes a compare-and-swap on the order status. VehicleID
// is only used when the target status requires a vehicle and the order has
// none.
type StatusUpdate struct {
	OrderID   string
	From      model.OrderStatus
	To        model.OrderStatus
	VehicleID string
	Entry     model.TrackingEntry
}

// Store is the order/vehicle repository used by the dispatch core.
type Store interface {
	GetOrder(ctx context.Context, id string) (model.Order, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	// ListOrders returns matching orders, oldest first.
	ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	// ActiveMissionCounts maps vehicle ids to their number of active missions.
	ActiveMissionCounts(ctx context.Context) (map[string]int, error)

	CreateOrder(ctx context.Context, o model.Order) (model.Order, error)
	UpsertVehicle(ctx context.Context, v model.Vehicle) error
	UpdatePosition(ctx context.Context, vehicleID string, pos model.Coordinates, at time.Time) error

	// AssignOrder atomically moves a pending order to assigned, provided the
	// guard accepts the vehicle, and appends the tracking entry. It returns
	// ErrConflict, possibly joined with the guard error, when the
	// precondition fails.
	AssignOrder(ctx context.Context, req AssignRequest) (model.Order, error)
	// UpdateStatus atomically applies a status change when the order is
	// still in req.From.
	UpdateStatus(ctx context.Context, req StatusUpdate) (model.Order, error)
	// Tracking lists the tracking entries of an order, newest first.
	Tracking(ctx context.Context, orderID string) ([]model.TrackingEntry, error)

	Close() error
}
