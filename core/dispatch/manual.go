package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetassign/core/dispatch/logging"
	"github.com/kilianp07/fleetassign/core/geo"
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/monitoring"
	"github.com/kilianp07/fleetassign/core/store"
)

// AssignOne commits vehicleID to orderID without running the selector.
// The returned error is nil only for an assigned outcome; it matches
// store.ErrNotFound, store.ErrConflict, ErrIneligible, ErrValidation or
// ErrDependencyUnavailable otherwise.
func (m *Manager) AssignOne(ctx context.Context, orderID, vehicleID, actor string) (Outcome, error) {
	if orderID == "" || vehicleID == "" {
		return unassignedOutcome(orderID, ReasonNoEligibleVehicle), validationErr("order and vehicle ids are required")
	}
	start := time.Now()
	o, v, active, err := m.load(ctx, orderID, vehicleID)
	if err != nil {
		return m.manualFailure(ctx, orderID, vehicleID, actor, start, err)
	}
	if o.Status != model.StatusPending {
		err := fmt.Errorf("order %s is %s: %w", o.ID, o.Status, store.ErrConflict)
		return m.manualFailure(ctx, orderID, vehicleID, actor, start, err)
	}
	if err := m.filter.Check(v, o, active); err != nil {
		return m.manualFailure(ctx, orderID, vehicleID, actor, start, err)
	}
	c, err := m.selector.Candidate(ctx, v, o, active)
	if err != nil {
		return m.manualFailure(ctx, orderID, vehicleID, actor, start, err)
	}
	b, _ := m.scorer.Score(c, o)
	if _, err := m.committer.Commit(ctx, CommitRequest{Order: o, Vehicle: v, Score: b.Total, Actor: actor}); err != nil {
		return m.manualFailure(ctx, orderID, vehicleID, actor, start, err)
	}
	out := assignedOutcome(o.ID, v.ID, b.Total)
	m.recordManual(ctx, out, actor, time.Since(start))
	return out, nil
}

func (m *Manager) load(ctx context.Context, orderID, vehicleID string) (model.Order, model.Vehicle, int, error) {
	o, err := m.store.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, model.Vehicle{}, 0, storeErr("get order", err)
	}
	v, err := m.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return model.Order{}, model.Vehicle{}, 0, storeErr("get vehicle", err)
	}
	active, err := m.store.ActiveMissionCounts(ctx)
	if err != nil {
		return model.Order{}, model.Vehicle{}, 0, storeErr("active missions", err)
	}
	return o, v, active[v.ID], nil
}

func (m *Manager) manualFailure(ctx context.Context, orderID, vehicleID, actor string, start time.Time, err error) (Outcome, error) {
	reason := ReasonNoEligibleVehicle
	switch {
	case errors.Is(err, store.ErrConflict):
		reason = ReasonConflict
	case errors.Is(err, ErrDependencyUnavailable):
		reason = ReasonDependencyUnavailable
		monitoring.CaptureException(err, map[string]string{"op": "assign_one", "order_id": orderID})
	case errors.Is(err, store.ErrNotFound):
		return unassignedOutcome(orderID, reason), err
	}
	m.logger.Warnf("manual assignment of order %s to vehicle %s failed: %v", orderID, vehicleID, err)
	out := unassignedOutcome(orderID, reason)
	m.recordManual(ctx, out, actor, time.Since(start))
	return out, err
}

func (m *Manager) recordManual(ctx context.Context, out Outcome, actor string, d time.Duration) {
	outcomesTotal.WithLabelValues(string(out.Reason)).Inc()
	m.appendLog(ctx, logging.LogRecord{
		RunID:      uuid.NewString(),
		Timestamp:  m.now(),
		Trigger:    TriggerManual,
		Actor:      actor,
		Worklist:   []string{out.OrderID},
		Outcomes:   toEntries([]Outcome{out}),
		DurationMS: float64(d) / float64(time.Millisecond),
	})
}

// ScoreReport explains how a vehicle would fare on an order.
type ScoreReport struct {
	OrderID          string           `json:"order_id"`
	VehicleID        string           `json:"vehicle_id"`
	Eligible         bool             `json:"eligible"`
	IneligibleReason IneligibleReason `json:"ineligible_reason,omitempty"`
	ActiveMissions   int              `json:"active_missions"`
	Breakdown        *Breakdown       `json:"breakdown,omitempty"`
	Route            *geo.Estimate    `json:"route,omitempty"`
}

// Score reports the score breakdown of vehicleID for orderID together with
// its eligibility. The breakdown is present whenever the vehicle can carry
// the order weight, even if another filter excludes it.
func (m *Manager) Score(ctx context.Context, orderID, vehicleID string) (ScoreReport, error) {
	if orderID == "" || vehicleID == "" {
		return ScoreReport{}, validationErr("order and vehicle ids are required")
	}
	o, v, active, err := m.load(ctx, orderID, vehicleID)
	if err != nil {
		return ScoreReport{}, err
	}
	rep := ScoreReport{OrderID: o.ID, VehicleID: v.ID, Eligible: true, ActiveMissions: active}
	var ie *IneligibleError
	if err := m.filter.Check(v, o, active); errors.As(err, &ie) {
		rep.Eligible = false
		rep.IneligibleReason = ie.Reason
	}
	c, err := m.selector.Candidate(ctx, v, o, active)
	if err != nil {
		return ScoreReport{}, err
	}
	if b, ok := m.scorer.Score(c, o); ok {
		rep.Breakdown = &b
	}
	est, ok, err := m.geo.Estimate(ctx, o.Pickup, o.Dropoff)
	if err != nil {
		return ScoreReport{}, dependencyErr("estimate route", err)
	}
	if ok {
		rep.Route = &est
	}
	return rep, nil
}

// storeErr keeps ErrNotFound visible to callers and turns anything else
// into a dependency failure.
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	dependencyFailures.WithLabelValues("store").Inc()
	return dependencyErr(op, err)
}
