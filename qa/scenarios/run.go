package scenarios

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/store"
	"github.com/kilianp07/fleetassign/infra/logger"
	"github.com/kilianp07/fleetassign/infra/metrics"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

// RunScenario replays sc against an in-memory store and fails t on the
// first diverging outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	st := store.NewMemoryStore()
	if err := st.Seed(ctx, store.Fixtures{Vehicles: sc.Vehicles, Orders: sc.Orders}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	bus := eventbus.New()
	defer bus.Close()
	mgr, err := dispatch.NewManager(dispatch.Config{MaxActiveMissions: sc.MaxActiveMissions}, st, nil, nil, sink, bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	batchAssigned := 0
	for i, step := range sc.Steps {
		var (
			outcomes []dispatch.Outcome
			err      error
		)
		switch {
		case step.Batch != nil:
			var res dispatch.BatchResult
			res, err = mgr.RunBatch(ctx, dispatch.BatchRequest{
				OrderIDs: step.Batch.Orders,
				Strategy: step.Batch.Strategy,
				Trigger:  "scenario",
			})
			outcomes = res.Outcomes
			for _, o := range outcomes {
				if o.Assigned() {
					batchAssigned++
				}
			}
		default:
			var out dispatch.Outcome
			out, err = mgr.AssignOne(ctx, step.Assign.Order, step.Assign.Vehicle, "scenario")
			outcomes = []dispatch.Outcome{out}
		}

		if got := errorClass(err); got != step.ExpectError {
			t.Fatalf("scenario %s step %d: expected error %q, got %q (%v)", sc.Name, i, step.ExpectError, got, err)
		}
		if step.Batch != nil && err != nil {
			continue
		}
		if len(outcomes) != len(step.Expect) {
			t.Fatalf("scenario %s step %d: expected %d outcomes, got %d: %+v", sc.Name, i, len(step.Expect), len(outcomes), outcomes)
		}
		for j, want := range step.Expect {
			checkOutcome(t, sc.Name, i, want, outcomes[j])
		}
	}

	if len(sc.FinalActive) > 0 {
		active, err := st.ActiveMissionCounts(ctx)
		if err != nil {
			t.Fatalf("active missions: %v", err)
		}
		for id, want := range sc.FinalActive {
			if active[id] != want {
				t.Errorf("scenario %s: vehicle %s has %d active missions, expected %d", sc.Name, id, active[id], want)
			}
		}
	}

	if got := assignedSamples(t, reg); got != batchAssigned {
		t.Errorf("scenario %s: sink recorded %d assignments, expected %d", sc.Name, got, batchAssigned)
	}
}

func checkOutcome(t *testing.T, name string, step int, want Expected, got dispatch.Outcome) {
	t.Helper()
	if got.OrderID != want.Order || string(got.Reason) != want.Reason {
		t.Fatalf("scenario %s step %d: expected %s/%s, got %s/%s", name, step, want.Order, want.Reason, got.OrderID, got.Reason)
	}
	vehicle := ""
	if got.VehicleID != nil {
		vehicle = *got.VehicleID
	}
	if vehicle != want.Vehicle {
		t.Fatalf("scenario %s step %d: order %s expected vehicle %q, got %q", name, step, want.Order, want.Vehicle, vehicle)
	}
	if want.Score != nil && math.Abs(*want.Score-got.Score) > 1e-6 {
		t.Fatalf("scenario %s step %d: order %s expected score %.2f, got %.2f", name, step, want.Order, *want.Score, got.Score)
	}
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, dispatch.ErrValidation):
		return "validation"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, dispatch.ErrIneligible):
		return "ineligible"
	case errors.Is(err, dispatch.ErrDependencyUnavailable):
		return "dependency_unavailable"
	default:
		return err.Error()
	}
}

// assignedSamples sums the assigned outcomes recorded by the prometheus sink.
func assignedSamples(t *testing.T, g prometheus.Gatherer) int {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != "assignment_outcomes_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "reason" && lp.GetValue() == string(dispatch.ReasonAssigned) {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return int(total)
}
