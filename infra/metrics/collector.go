package metrics

import (
	"context"

	"github.com/kilianp07/fleetassign/core/events"
	coremetrics "github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/infra/logger"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records status
// transitions and conflicts on sinks supporting them. It stops when the
// context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) {
	if bus == nil || sink == nil {
		return
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := collect(ev, sink); err != nil {
					log.Errorf("metrics collector: %v", err)
				}
			}
		}
	}()
}

func collect(ev eventbus.Event, sink coremetrics.MetricsSink) error {
	switch e := ev.(type) {
	case events.StatusEvent:
		if r, ok := sink.(coremetrics.StatusRecorder); ok {
			return r.RecordStatusChange(coremetrics.StatusChange{
				OrderID: e.OrderID, VehicleID: e.VehicleID, From: e.From, To: e.To, Time: e.Time,
			})
		}
	case events.ConflictEvent:
		if r, ok := sink.(coremetrics.ConflictRecorder); ok {
			return r.RecordConflict(coremetrics.ConflictEvent{OrderID: e.OrderID, VehicleID: e.VehicleID, Time: e.Time})
		}
	}
	return nil
}
