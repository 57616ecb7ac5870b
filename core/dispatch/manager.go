package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fleetassign/core/dispatch/logging"
	"github.com/kilianp07/fleetassign/core/events"
	"github.com/kilianp07/fleetassign/core/geo"
	"github.com/kilianp07/fleetassign/core/logger"
	"github.com/kilianp07/fleetassign/core/metrics"
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/monitoring"
	"github.com/kilianp07/fleetassign/core/notify"
	"github.com/kilianp07/fleetassign/core/store"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

// Triggers recorded with each run.
const (
	TriggerAPI       = "api"
	TriggerCLI       = "cli"
	TriggerScheduler = "scheduler"
	TriggerManual    = "manual"
)

// BatchRequest asks for an automatic assignment run. An empty OrderIDs
// targets every pending order and an empty Strategy the configured default.
type BatchRequest struct {
	OrderIDs []string
	Strategy string
	Trigger  string
	Actor    string
}

// BatchResult holds one outcome per worklist order, in worklist order.
type BatchResult struct {
	RunID    string         `json:"run_id"`
	Strategy model.Strategy `json:"strategy"`
	Outcomes []Outcome      `json:"outcomes"`
}

// Manager orchestrates selection and commits over the shared store.
type Manager struct {
	store           store.Store
	selector        *Selector
	committer       *Committer
	filter          EligibilityFilter
	scorer          Scorer
	geo             geo.Estimator
	defaultStrategy model.Strategy
	notifier        notify.Notifier
	metrics         metrics.MetricsSink
	bus             eventbus.EventBus
	logger          logger.Logger
	logStore        logging.LogStore
	now             func() time.Time
	mu              sync.Mutex
}

// NewManager creates a new manager. est, notifier, sink and bus are
// optional.
func NewManager(cfg Config, st store.Store, est geo.Estimator, notifier notify.Notifier, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if est == nil {
		est = geo.NewHaversineEstimator(cfg.AverageSpeedKmh)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	filter := EligibilityFilter{MaxActiveMissions: cfg.MissionCap()}
	scorer := NewScorer(cfg.Weights)
	return &Manager{
		store:           st,
		selector:        NewSelector(filter, scorer, est),
		committer:       NewCommitter(st, filter, est, notifier, sink, bus, log),
		filter:          filter,
		scorer:          scorer,
		geo:             est,
		defaultStrategy: cfg.Strategy(),
		notifier:        notifier,
		metrics:         sink,
		bus:             bus,
		logger:          log,
		now:             time.Now,
	}, nil
}

// SetLogStore configures the store used to persist assignment run records.
func (m *Manager) SetLogStore(ls logging.LogStore) {
	m.mu.Lock()
	m.logStore = ls
	m.mu.Unlock()
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.committer.now = now
}

// DefaultStrategy returns the strategy used when a request names none.
func (m *Manager) DefaultStrategy() model.Strategy { return m.defaultStrategy }

// Close releases the audit log store.
func (m *Manager) Close() error {
	m.mu.Lock()
	ls := m.logStore
	m.logStore = nil
	m.mu.Unlock()
	if ls != nil {
		return ls.Close()
	}
	return nil
}

// RunBatch assigns the requested pending orders, oldest first. It only
// fails for invalid input or when the worklist cannot be fetched; every
// other problem becomes the outcome of the affected order. A cancelled ctx
// stops the run between orders and marks the rest as cancelled.
func (m *Manager) RunBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	strategy, err := model.ParseStrategy(req.Strategy, m.defaultStrategy)
	if err != nil {
		return BatchResult{}, validationErr("%v", err)
	}
	policy, err := PolicyFor(strategy)
	if err != nil {
		return BatchResult{}, err
	}
	worklist, err := m.worklist(ctx, req.OrderIDs)
	if err != nil {
		return BatchResult{}, err
	}

	start := time.Now()
	res := BatchResult{RunID: uuid.NewString(), Strategy: strategy, Outcomes: make([]Outcome, 0, len(worklist))}
	vehicles, active, snapErr := m.snapshot(ctx)
	if snapErr != nil {
		m.logger.Errorf("batch %s: vehicle snapshot: %v", res.RunID, snapErr)
		monitoring.CaptureException(snapErr, map[string]string{"op": "snapshot"})
	}
	for i, o := range worklist {
		if ctx.Err() != nil {
			for _, rest := range worklist[i:] {
				res.Outcomes = append(res.Outcomes, unassignedOutcome(rest.ID, ReasonCancelled))
			}
			m.logger.Warnf("batch %s cancelled after %d of %d orders", res.RunID, i, len(worklist))
			break
		}
		if snapErr != nil {
			res.Outcomes = append(res.Outcomes, unassignedOutcome(o.ID, ReasonDependencyUnavailable))
			continue
		}
		out := m.assignFromSnapshot(ctx, o, vehicles, active, policy, req.Actor)
		if out.Assigned() {
			active[*out.VehicleID]++
		}
		res.Outcomes = append(res.Outcomes, out)
	}
	m.finishBatch(ctx, req, res, worklist, time.Since(start))
	return res, nil
}

// worklist validates explicit ids and returns the pending orders to process.
func (m *Manager) worklist(ctx context.Context, ids []string) ([]model.Order, error) {
	if len(ids) == 0 {
		orders, err := m.store.ListOrders(ctx, store.OrderFilter{Status: model.StatusPending})
		if err != nil {
			return nil, dependencyErr("list pending orders", err)
		}
		store.SortOldestFirst(orders)
		return orders, nil
	}
	for _, id := range ids {
		if id == "" {
			return nil, validationErr("empty order id")
		}
	}
	orders, err := m.store.ListOrders(ctx, store.OrderFilter{IDs: ids})
	if err != nil {
		return nil, dependencyErr("list orders", err)
	}
	known := make(map[string]bool, len(orders))
	for _, o := range orders {
		known[o.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, validationErr("unknown order %q", id)
		}
	}
	pending := orders[:0]
	for _, o := range orders {
		if o.Status == model.StatusPending {
			pending = append(pending, o)
		}
	}
	store.SortOldestFirst(pending)
	return pending, nil
}

func (m *Manager) snapshot(ctx context.Context) ([]model.Vehicle, map[string]int, error) {
	vehicles, err := m.store.ListVehicles(ctx)
	if err != nil {
		dependencyFailures.WithLabelValues("snapshot").Inc()
		return nil, nil, dependencyErr("list vehicles", err)
	}
	active, err := m.store.ActiveMissionCounts(ctx)
	if err != nil {
		dependencyFailures.WithLabelValues("snapshot").Inc()
		return nil, nil, dependencyErr("active missions", err)
	}
	if active == nil {
		active = make(map[string]int)
	}
	return vehicles, active, nil
}

func (m *Manager) assignFromSnapshot(ctx context.Context, o model.Order, vehicles []model.Vehicle, active map[string]int, p Policy, actor string) Outcome {
	best, ok, err := m.selector.Select(ctx, o, vehicles, active, p)
	if err != nil {
		if ctx.Err() != nil {
			return unassignedOutcome(o.ID, ReasonCancelled)
		}
		m.logger.Errorf("select vehicle for order %s: %v", o.ID, err)
		monitoring.CaptureException(err, map[string]string{"op": "select", "order_id": o.ID})
		return unassignedOutcome(o.ID, ReasonDependencyUnavailable)
	}
	if !ok {
		m.logger.Debugf("no eligible vehicle for order %s", o.ID)
		return unassignedOutcome(o.ID, ReasonNoEligibleVehicle)
	}
	_, err = m.committer.Commit(ctx, CommitRequest{
		Order:    o,
		Vehicle:  best.Vehicle,
		Strategy: p.Strategy(),
		Score:    best.Breakdown.Total,
		Actor:    actor,
	})
	switch {
	case err == nil:
		return assignedOutcome(o.ID, best.Vehicle.ID, best.Breakdown.Total)
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrNotFound):
		return unassignedOutcome(o.ID, ReasonConflict)
	case ctx.Err() != nil:
		return unassignedOutcome(o.ID, ReasonCancelled)
	default:
		m.logger.Errorf("commit order %s: %v", o.ID, err)
		monitoring.CaptureException(err, map[string]string{"op": "commit", "order_id": o.ID})
		return unassignedOutcome(o.ID, ReasonDependencyUnavailable)
	}
}

func (m *Manager) finishBatch(ctx context.Context, req BatchRequest, res BatchResult, worklist []model.Order, d time.Duration) {
	at := m.now()
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerAPI
	}
	batchOrders.Observe(float64(len(worklist)))

	reasons := make(map[string]int)
	recs := make([]metrics.AssignmentRecord, 0, len(res.Outcomes))
	var scores []float64
	for _, out := range res.Outcomes {
		outcomesTotal.WithLabelValues(string(out.Reason)).Inc()
		reasons[string(out.Reason)]++
		rec := metrics.AssignmentRecord{
			RunID:    res.RunID,
			OrderID:  out.OrderID,
			Strategy: res.Strategy,
			Reason:   string(out.Reason),
			Score:    out.Score,
			Time:     at,
		}
		if out.Assigned() {
			rec.VehicleID = *out.VehicleID
			scores = append(scores, out.Score)
		}
		recs = append(recs, rec)
	}
	if len(recs) > 0 {
		if err := m.metrics.RecordAssignments(recs); err != nil {
			m.logger.Errorf("metrics error: %v", err)
		}
	}
	if br, ok := m.metrics.(metrics.BatchRecorder); ok {
		sum := metrics.BatchSummary{
			RunID:    res.RunID,
			Strategy: res.Strategy,
			Trigger:  trigger,
			Orders:   len(worklist),
			Assigned: len(scores),
			Duration: d,
			Time:     at,
		}
		if len(scores) > 0 {
			sum.MeanScore = stat.Mean(scores, nil)
			sum.MinScore = floats.Min(scores)
			sum.MaxScore = floats.Max(scores)
		}
		if err := br.RecordBatch(sum); err != nil {
			m.logger.Errorf("batch metrics error: %v", err)
		}
	}

	ids := make([]string, len(worklist))
	for i, o := range worklist {
		ids[i] = o.ID
	}
	m.appendLog(ctx, logging.LogRecord{
		RunID:      res.RunID,
		Timestamp:  at,
		Strategy:   string(res.Strategy),
		Trigger:    trigger,
		Actor:      req.Actor,
		Worklist:   ids,
		Outcomes:   toEntries(res.Outcomes),
		DurationMS: float64(d) / float64(time.Millisecond),
	})
	if m.bus != nil {
		m.bus.Publish(events.BatchEvent{
			RunID:    res.RunID,
			Strategy: res.Strategy,
			Trigger:  trigger,
			Orders:   len(worklist),
			Reasons:  reasons,
			Duration: d,
			Time:     at,
		})
	}
	m.logger.Infof("batch %s (%s, %s): %d orders, %d assigned in %s", res.RunID, res.Strategy, trigger, len(worklist), len(scores), d)
}

// appendLog persists rec. The run context may already be cancelled, so the
// write gets its own deadline.
func (m *Manager) appendLog(ctx context.Context, rec logging.LogRecord) {
	m.mu.Lock()
	ls := m.logStore
	m.mu.Unlock()
	if ls == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := ls.Append(wctx, rec); err != nil {
		m.logger.Errorf("assignment log error: %v", err)
	}
}

// Logs queries the assignment audit trail. Without a configured log store
// the result is empty.
func (m *Manager) Logs(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	m.mu.Lock()
	ls := m.logStore
	m.mu.Unlock()
	if ls == nil {
		return []logging.LogRecord{}, nil
	}
	recs, err := ls.Query(ctx, q)
	if err != nil {
		return nil, dependencyErr("query assignment log", err)
	}
	return recs, nil
}

func toEntries(outs []Outcome) []logging.OutcomeEntry {
	entries := make([]logging.OutcomeEntry, len(outs))
	for i, o := range outs {
		entries[i] = logging.OutcomeEntry{OrderID: o.OrderID, Score: o.Score, Reason: string(o.Reason)}
		if o.VehicleID != nil {
			entries[i].VehicleID = *o.VehicleID
		}
	}
	return entries
}
