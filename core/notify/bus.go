package notify

import (
	"context"

	"github.com/kilianp07/fleetassign/internal/eventbus"
)

// BusNotifier republishes notifications on the event bus, where in-process
// consumers such as push gateways can pick them up.
type BusNotifier struct {
	bus eventbus.EventBus
}

func NewBusNotifier(bus eventbus.EventBus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

func (b *BusNotifier) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.bus.Publish(n)
	return nil
}
