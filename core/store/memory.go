package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetassign/core/model"
)

// MemoryStore keeps orders and vehicles in process memory. A single mutex
// guards the maps and is held for one check-and-set at most.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]model.Order
	vehicles map[string]model.Vehicle
	tracking map[string][]model.TrackingEntry
	daySeq   map[string]int
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   map[string]model.Order{},
		vehicles: map[string]model.Vehicle{},
		tracking: map[string][]model.TrackingEntry{},
		daySeq:   map[string]int{},
		now:      time.Now,
	}
}

// SetClock overrides the time source used for generated timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

func (s *MemoryStore) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return model.Vehicle{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[id]
	if !ok {
		return model.Vehicle{}, fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	return v, nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Order, 0, len(s.orders))
	match := func(o model.Order) bool {
		return f.Status == "" || o.Status == f.Status
	}
	if len(f.IDs) > 0 {
		seen := make(map[string]struct{}, len(f.IDs))
		for _, id := range f.IDs {
			o, ok := s.orders[id]
			if _, dup := seen[id]; !ok || dup || !match(o) {
				continue
			}
			seen[id] = struct{}{}
			res = append(res, o)
		}
	} else {
		for _, o := range s.orders {
			if match(o) {
				res = append(res, o)
			}
		}
	}
	SortOldestFirst(res)
	return res, nil
}

func (s *MemoryStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) ActiveMissionCounts(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCountsLocked(), nil
}

func (s *MemoryStore) activeCountsLocked() map[string]int {
	counts := map[string]int{}
	for _, o := range s.orders {
		if o.VehicleID != "" && o.Status.ActiveMission() {
			counts[o.VehicleID]++
		}
	}
	return counts
}

// CreateOrder stores a new order. Missing identifiers, number, status and
// creation time are generated and an order_created entry is recorded.
func (s *MemoryStore) CreateOrder(ctx context.Context, o model.Order) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, exists := s.orders[o.ID]; exists {
		return model.Order{}, fmt.Errorf("order %s already exists: %w", o.ID, ErrConflict)
	}
	if o.Status == "" {
		o.Status = model.StatusPending
	}
	if o.Priority == "" {
		o.Priority = model.PriorityNormal
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	if err := o.Validate(); err != nil {
		return model.Order{}, err
	}
	if o.Number == "" {
		o.Number = s.nextNumberLocked(o.CreatedAt)
	}
	o.Version = 1
	s.orders[o.ID] = o
	s.tracking[o.ID] = append(s.tracking[o.ID], model.TrackingEntry{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Kind:      model.TrackOrderCreated,
		Position:  o.Pickup,
		Timestamp: o.CreatedAt,
	})
	return o, nil
}

func (s *MemoryStore) nextNumberLocked(at time.Time) string {
	day := at.Format("20060102")
	s.daySeq[day]++
	return OrderNumber(at, s.daySeq[day])
}

func (s *MemoryStore) UpsertVehicle(ctx context.Context, v model.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.vehicles[v.ID] = v
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdatePosition(ctx context.Context, vehicleID string, pos model.Coordinates, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return fmt.Errorf("vehicle %s: %w", vehicleID, ErrNotFound)
	}
	p := pos
	v.Position = &p
	v.PositionAt = at
	s.vehicles[vehicleID] = v
	return nil
}

func (s *MemoryStore) AssignOrder(ctx context.Context, req AssignRequest) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[req.OrderID]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", req.OrderID, ErrNotFound)
	}
	v, ok := s.vehicles[req.VehicleID]
	if !ok {
		return model.Order{}, fmt.Errorf("vehicle %s: %w", req.VehicleID, ErrNotFound)
	}
	if o.Status != model.StatusPending {
		return model.Order{}, fmt.Errorf("order %s is %s: %w", o.ID, o.Status, ErrConflict)
	}
	if req.Guard != nil {
		if err := req.Guard(v, s.activeCountsLocked()[v.ID]); err != nil {
			return model.Order{}, fmt.Errorf("vehicle %s: %w: %w", v.ID, ErrConflict, err)
		}
	}
	o.Status = model.StatusAssigned
	o.VehicleID = v.ID
	o.Version++
	s.orders[o.ID] = o
	s.appendLocked(o.ID, req.Entry)
	return o, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, req StatusUpdate) (model.Order, error) {
	if err := ctx.Err(); err != nil {
		return model.Order{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[req.OrderID]
	if !ok {
		return model.Order{}, fmt.Errorf("order %s: %w", req.OrderID, ErrNotFound)
	}
	if o.Status != req.From {
		return model.Order{}, fmt.Errorf("order %s is %s, expected %s: %w", o.ID, o.Status, req.From, ErrConflict)
	}
	o.Status = req.To
	switch {
	case req.To == model.StatusPending:
		o.VehicleID = ""
	case o.VehicleID == "" && req.VehicleID != "":
		o.VehicleID = req.VehicleID
	}
	if err := o.Validate(); err != nil {
		return model.Order{}, fmt.Errorf("%w: %w", ErrConflict, err)
	}
	o.Version++
	s.orders[o.ID] = o
	s.appendLocked(o.ID, req.Entry)
	return o, nil
}

func (s *MemoryStore) appendLocked(orderID string, e model.TrackingEntry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	e.OrderID = orderID
	s.tracking[orderID] = append(s.tracking[orderID], e)
}

func (s *MemoryStore) Tracking(ctx context.Context, orderID string) ([]model.TrackingEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.orders[orderID]; !ok {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	entries := s.tracking[orderID]
	res := make([]model.TrackingEntry, len(entries))
	// reversed insertion order keeps equal timestamps newest first
	for i, e := range entries {
		res[len(entries)-1-i] = e
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	return res, nil
}

// Seed loads fixtures as-is, bypassing the creation workflow. Orders keep
// their status and vehicle so active missions can be pre-populated.
func (s *MemoryStore) Seed(ctx context.Context, f Fixtures) error {
	for _, v := range f.Vehicles {
		if err := s.UpsertVehicle(ctx, v); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range f.Orders {
		if o.Status == "" {
			o.Status = model.StatusPending
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = s.now()
		}
		if err := o.Validate(); err != nil {
			return err
		}
		if o.Number == "" {
			o.Number = s.nextNumberLocked(o.CreatedAt)
		}
		if o.Version == 0 {
			o.Version = 1
		}
		s.orders[o.ID] = o
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// SortOldestFirst orders by creation time, then id.
func SortOldestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}
