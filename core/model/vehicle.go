package model

import (
	"fmt"
	"time"
)

// VehicleStatus is the operational status of a transporter.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleOnMission   VehicleStatus = "on_mission"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleResting     VehicleStatus = "resting"
)

// Valid reports whether s is a known vehicle status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleAvailable, VehicleOnMission, VehicleMaintenance, VehicleResting:
		return true
	}
	return false
}

// MaxRating is the upper bound of a vehicle quality rating.
const MaxRating = 5.0

// Vehicle represents a transporter that can be assigned delivery orders.
type Vehicle struct {
	ID         string        `json:"id" yaml:"id"`
	OperatorID string        `json:"operator_id" yaml:"operator_id"`
	Plate      string        `json:"plate,omitempty" yaml:"plate,omitempty"`
	CapacityKg float64       `json:"capacity_kg" yaml:"capacity_kg"`
	CapacityM3 *float64      `json:"capacity_m3,omitempty" yaml:"capacity_m3,omitempty"`
	Position   *Coordinates  `json:"position,omitempty" yaml:"position,omitempty"`
	PositionAt time.Time     `json:"position_at,omitempty" yaml:"position_at,omitempty"`
	Available  bool          `json:"available" yaml:"available"`
	Status     VehicleStatus `json:"status" yaml:"status"`
	Rating     float64       `json:"rating" yaml:"rating"` // between 0 and 5
}

// Validate checks that the vehicle record is consistent.
// An available vehicle must have the available operational status.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id is required")
	}
	if v.CapacityKg <= 0 {
		return fmt.Errorf("vehicle %s: capacity must be positive", v.ID)
	}
	if !v.Status.Valid() {
		return fmt.Errorf("vehicle %s: unknown status %q", v.ID, v.Status)
	}
	if v.Available && v.Status != VehicleAvailable {
		return fmt.Errorf("vehicle %s: available flag set with status %s", v.ID, v.Status)
	}
	if v.Rating < 0 || v.Rating > MaxRating {
		return fmt.Errorf("vehicle %s: rating %.2f out of range", v.ID, v.Rating)
	}
	return nil
}

// Ready returns true if the vehicle can take a new mission right now.
func (v Vehicle) Ready() bool {
	return v.Available && v.Status == VehicleAvailable
}

// CanCarry returns true if the order fits the vehicle capacity. The volume
// is only checked when both sides know it.
func (v Vehicle) CanCarry(o Order) bool {
	if v.CapacityKg < o.Weight {
		return false
	}
	if o.Volume != nil && v.CapacityM3 != nil && *o.Volume > *v.CapacityM3 {
		return false
	}
	return true
}
