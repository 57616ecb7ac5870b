package dispatch

// Reason qualifies an assignment outcome.
type Reason string

const (
	ReasonAssigned              Reason = "assigned"
	ReasonNoEligibleVehicle     Reason = "no_eligible_vehicle"
	ReasonConflict              Reason = "conflict"
	ReasonDependencyUnavailable Reason = "dependency_unavailable"
	ReasonCancelled             Reason = "cancelled"
)

// Outcome is the result of trying to assign one order. VehicleID is nil
// when the order was left pending.
type Outcome struct {
	OrderID   string  `json:"order_id"`
	VehicleID *string `json:"vehicle_id"`
	Score     float64 `json:"score"`
	Reason    Reason  `json:"reason"`
}

// Assigned reports whether the order received a vehicle.
func (o Outcome) Assigned() bool { return o.VehicleID != nil }

func assignedOutcome(orderID, vehicleID string, score float64) Outcome {
	id := vehicleID
	return Outcome{OrderID: orderID, VehicleID: &id, Score: score, Reason: ReasonAssigned}
}

func unassignedOutcome(orderID string, r Reason) Outcome {
	return Outcome{OrderID: orderID, Reason: r}
}
