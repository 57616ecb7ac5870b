package dispatch

import (
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/store"
)

// DefaultMaxActiveMissions caps the concurrent missions of a vehicle.
const DefaultMaxActiveMissions = 3

// EligibilityFilter is the single candidate filter shared by every strategy.
// MaxActiveMissions of zero disables the mission cap.
type EligibilityFilter struct {
	MaxActiveMissions int
}

// Check returns an *IneligibleError when v may not serve o.
func (f EligibilityFilter) Check(v model.Vehicle, o model.Order, active int) error {
	switch {
	case !v.Ready():
		return &IneligibleError{VehicleID: v.ID, Reason: IneligibleUnavailable}
	case v.CapacityKg < o.Weight:
		return &IneligibleError{VehicleID: v.ID, Reason: IneligibleCapacity}
	case !v.CanCarry(o):
		return &IneligibleError{VehicleID: v.ID, Reason: IneligibleVolume}
	case f.MaxActiveMissions > 0 && active >= f.MaxActiveMissions:
		return &IneligibleError{VehicleID: v.ID, Reason: IneligibleMissionCap}
	}
	return nil
}

// Eligible keeps the vehicles passing Check, preserving input order.
func (f EligibilityFilter) Eligible(vehicles []model.Vehicle, o model.Order, active map[string]int) []model.Vehicle {
	out := make([]model.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if f.Check(v, o, active[v.ID]) == nil {
			out = append(out, v)
		}
	}
	return out
}

// Guard re-runs Check inside the store critical section against the fresh
// vehicle row and mission count.
func (f EligibilityFilter) Guard(o model.Order) store.Guard {
	return func(v model.Vehicle, active int) error {
		return f.Check(v, o, active)
	}
}
