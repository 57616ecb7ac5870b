package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetassign/core/events"
	"github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/notify"
	"github.com/kilianp07/fleetassign/core/store"
)

// StatusChange moves an order through its delivery workflow. Position, when
// set, is also recorded as the latest position of the assigned vehicle.
type StatusChange struct {
	OrderID  string
	Status   string
	Note     string
	Position *model.Coordinates
	Actor    string
}

// ChangeStatus applies an allowed status transition and appends the
// matching tracking entry. Assignment goes through AssignOne instead.
func (m *Manager) ChangeStatus(ctx context.Context, req StatusChange) (model.Order, error) {
	to := model.OrderStatus(req.Status)
	if req.OrderID == "" {
		return model.Order{}, validationErr("order id is required")
	}
	if !to.Valid() {
		return model.Order{}, validationErr("unknown status %q", req.Status)
	}
	if to == model.StatusAssigned {
		return model.Order{}, validationErr("use the assignment endpoint to assign order %s", req.OrderID)
	}
	o, err := m.store.GetOrder(ctx, req.OrderID)
	if err != nil {
		return model.Order{}, storeErr("get order", err)
	}
	if !o.Status.CanTransition(to) {
		return model.Order{}, validationErr("order %s cannot move from %s to %s", o.ID, o.Status, to)
	}

	at := m.now()
	note := req.Note
	if note == "" && model.TrackingKindFor(to) == model.TrackIncident {
		note = fmt.Sprintf("status changed to %s", to)
	}
	updated, err := m.store.UpdateStatus(ctx, store.StatusUpdate{
		OrderID: o.ID,
		From:    o.Status,
		To:      to,
		Entry: model.TrackingEntry{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			VehicleID: o.VehicleID,
			Kind:      model.TrackingKindFor(to),
			Note:      note,
			Position:  req.Position,
			Actor:     req.Actor,
			Timestamp: at,
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.Order{}, err
		}
		return model.Order{}, storeErr("update status", err)
	}
	if req.Position != nil && o.VehicleID != "" {
		if err := m.store.UpdatePosition(ctx, o.VehicleID, *req.Position, at); err != nil {
			m.logger.Warnf("update position of vehicle %s: %v", o.VehicleID, err)
		}
	}
	m.logger.Infof("order %s: %s -> %s", o.ID, o.Status, to)

	if sr, ok := m.metrics.(metrics.StatusRecorder); ok {
		if err := sr.RecordStatusChange(metrics.StatusChange{OrderID: o.ID, VehicleID: o.VehicleID, From: o.Status, To: to, Time: at}); err != nil {
			m.logger.Errorf("status metrics error: %v", err)
		}
	}
	if m.bus != nil {
		m.bus.Publish(events.StatusEvent{OrderID: o.ID, VehicleID: o.VehicleID, From: o.Status, To: to, Actor: req.Actor, Time: at})
	}
	if updated.ClientID != "" {
		n := notify.Notification{
			ID:        uuid.NewString(),
			Recipient: updated.ClientID,
			Kind:      notify.KindStatusChanged,
			OrderID:   updated.ID,
			Message:   fmt.Sprintf("Order %s is now %s", orderLabel(updated), to),
			Payload:   map[string]any{"from": string(o.Status), "to": string(to)},
			Time:      at,
		}
		if err := m.notifier.Notify(ctx, n); err != nil {
			m.logger.Warnf("notify %s (%s): %v", n.Recipient, n.Kind, err)
		}
	}
	return updated, nil
}

// Tracking returns the tracking history of an order, newest first.
func (m *Manager) Tracking(ctx context.Context, orderID string) ([]model.TrackingEntry, error) {
	if orderID == "" {
		return nil, validationErr("order id is required")
	}
	entries, err := m.store.Tracking(ctx, orderID)
	if err != nil {
		return nil, storeErr("tracking", err)
	}
	return entries, nil
}
