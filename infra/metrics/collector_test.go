package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/fleetassign/core/events"
	coremetrics "github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

type statusSink struct {
	coremetrics.NopSink
	mu      sync.Mutex
	changes []coremetrics.StatusChange
	got     chan struct{}
}

func (s *statusSink) RecordStatusChange(ev coremetrics.StatusChange) error {
	s.mu.Lock()
	s.changes = append(s.changes, ev)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func TestEventCollectorRecordsStatus(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sink := &statusSink{got: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartEventCollector(ctx, bus, sink, nil)
	bus.Publish(events.StatusEvent{OrderID: "o1", From: model.StatusAssigned, To: model.StatusInTransit})

	select {
	case <-sink.got:
	case <-time.After(time.Second):
		t.Fatal("status change not recorded")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.changes[0].OrderID != "o1" || sink.changes[0].To != model.StatusInTransit {
		t.Fatalf("unexpected change %+v", sink.changes[0])
	}
}
