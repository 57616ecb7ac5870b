package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetassign/core/events"
	"github.com/kilianp07/fleetassign/core/geo"
	"github.com/kilianp07/fleetassign/core/logger"
	"github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/notify"
	"github.com/kilianp07/fleetassign/core/store"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

// CommitRequest binds a selected vehicle to an order.
type CommitRequest struct {
	Order    model.Order
	Vehicle  model.Vehicle
	Strategy model.Strategy
	Score    float64
	Actor    string
}

// Committer applies assignments to the store and fans out the side effects
// of a successful commit.
type Committer struct {
	store    store.Store
	filter   EligibilityFilter
	geo      geo.Estimator
	notifier notify.Notifier
	metrics  metrics.MetricsSink
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
}

// NewCommitter wires a Committer. notifier, sink and bus may be nil.
func NewCommitter(st store.Store, filter EligibilityFilter, est geo.Estimator, notifier notify.Notifier, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) *Committer {
	if est == nil {
		est = geo.NewHaversineEstimator(0)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Committer{
		store:    st,
		filter:   filter,
		geo:      est,
		notifier: notifier,
		metrics:  sink,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// Commit moves req.Order from pending to assigned. The store re-validates
// the vehicle under its own lock, so a stale selection yields ErrConflict
// and leaves the order untouched.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (model.Order, error) {
	route, hasRoute := c.route(ctx, req.Order)

	at := c.now()
	entry := model.TrackingEntry{
		ID:        uuid.NewString(),
		OrderID:   req.Order.ID,
		VehicleID: req.Vehicle.ID,
		Kind:      model.TrackVehicleAssigned,
		Note:      fmt.Sprintf("assigned to %s", vehicleLabel(req.Vehicle)),
		Position:  req.Vehicle.Position,
		Actor:     req.Actor,
		Timestamp: at,
	}
	start := time.Now()
	updated, err := c.store.AssignOrder(ctx, store.AssignRequest{
		OrderID:   req.Order.ID,
		VehicleID: req.Vehicle.ID,
		Entry:     entry,
		Guard:     c.filter.Guard(req.Order),
	})
	commitLatency.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		c.conflict(req, err, at)
		return model.Order{}, err
	case errors.Is(err, store.ErrNotFound):
		return model.Order{}, err
	default:
		dependencyFailures.WithLabelValues("assign").Inc()
		return model.Order{}, dependencyErr("assign order", err)
	}

	c.log.Infof("order %s assigned to vehicle %s (score %.2f)", updated.ID, req.Vehicle.ID, req.Score)
	c.notifyAssigned(ctx, updated, req.Vehicle, route, hasRoute, at)
	if c.bus != nil {
		c.bus.Publish(events.AssignmentEvent{
			OrderID:    updated.ID,
			OrderNum:   updated.Number,
			ClientID:   updated.ClientID,
			VehicleID:  req.Vehicle.ID,
			OperatorID: req.Vehicle.OperatorID,
			Strategy:   req.Strategy,
			Score:      req.Score,
			Actor:      req.Actor,
			Time:       at,
		})
	}
	return updated, nil
}

// route estimates the pickup to dropoff leg. Failures only cost the
// notification its route details.
func (c *Committer) route(ctx context.Context, o model.Order) (geo.Estimate, bool) {
	est, ok, err := c.geo.Estimate(ctx, o.Pickup, o.Dropoff)
	if err != nil {
		c.log.Warnf("route estimate for order %s: %v", o.ID, err)
		return geo.Estimate{}, false
	}
	return est, ok
}

func (c *Committer) conflict(req CommitRequest, err error, at time.Time) {
	commitConflicts.Inc()
	c.log.Warnf("commit of order %s to vehicle %s rejected: %v", req.Order.ID, req.Vehicle.ID, err)
	if cr, ok := c.metrics.(metrics.ConflictRecorder); ok {
		if mErr := cr.RecordConflict(metrics.ConflictEvent{OrderID: req.Order.ID, VehicleID: req.Vehicle.ID, Time: at}); mErr != nil {
			c.log.Errorf("conflict metrics error: %v", mErr)
		}
	}
	if c.bus != nil {
		c.bus.Publish(events.ConflictEvent{OrderID: req.Order.ID, VehicleID: req.Vehicle.ID, Err: err, Time: at})
	}
}

func (c *Committer) notifyAssigned(ctx context.Context, o model.Order, v model.Vehicle, route geo.Estimate, hasRoute bool, at time.Time) {
	if v.OperatorID != "" {
		payload := map[string]any{
			"order_id":  o.ID,
			"number":    o.Number,
			"weight_kg": o.Weight,
			"priority":  string(o.Priority),
		}
		if o.Pickup != nil {
			payload["pickup"] = *o.Pickup
		}
		if o.Dropoff != nil {
			payload["dropoff"] = *o.Dropoff
		}
		if hasRoute {
			payload["route_distance_km"] = route.DistanceKm
			payload["route_duration_minutes"] = route.DurationMinutes
		}
		c.send(ctx, notify.Notification{
			ID:        uuid.NewString(),
			Recipient: v.OperatorID,
			Kind:      notify.KindMissionAssigned,
			OrderID:   o.ID,
			Message:   fmt.Sprintf("New mission %s", orderLabel(o)),
			Payload:   payload,
			Time:      at,
		})
	}
	if o.ClientID != "" {
		c.send(ctx, notify.Notification{
			ID:        uuid.NewString(),
			Recipient: o.ClientID,
			Kind:      notify.KindOrderAssigned,
			OrderID:   o.ID,
			Message:   fmt.Sprintf("Order %s assigned to %s", orderLabel(o), vehicleLabel(v)),
			Payload:   map[string]any{"vehicle_id": v.ID, "plate": v.Plate},
			Time:      at,
		})
	}
}

func (c *Committer) send(ctx context.Context, n notify.Notification) {
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.log.Warnf("notify %s (%s): %v", n.Recipient, n.Kind, err)
	}
}

func vehicleLabel(v model.Vehicle) string {
	if v.Plate != "" {
		return v.Plate
	}
	return v.ID
}

func orderLabel(o model.Order) string {
	if o.Number != "" {
		return o.Number
	}
	return o.ID
}
