package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/logger"
	"github.com/kilianp07/fleetassign/core/monitoring"
)

// Runner executes batch assignment runs.
type Runner interface {
	RunBatch(ctx context.Context, req dispatch.BatchRequest) (dispatch.BatchResult, error)
}

// Scheduler triggers a batch run on every tick.
type Scheduler struct {
	runner   Runner
	cfg      Config
	interval time.Duration
	log      logger.Logger
	runs     atomic.Uint64
	failures atomic.Uint64
}

// New creates a scheduler. cfg is defaulted and validated.
func New(runner Runner, cfg Config, log logger.Logger) (*Scheduler, error) {
	if runner == nil || log == nil {
		return nil, fmt.Errorf("scheduler: nil parameter provided to New")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{runner: runner, cfg: cfg, interval: cfg.Interval(), log: log}, nil
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.log.Infof("auto-assignment every %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer monitoring.Recover()
	s.runs.Add(1)
	if _, err := s.RunOnce(ctx); err != nil {
		s.failures.Add(1)
		s.log.Errorf("auto-assignment: %v", err)
		monitoring.CaptureException(err, map[string]string{"component": "scheduler"})
	}
}

// RunOnce performs a single batch over every pending order.
func (s *Scheduler) RunOnce(ctx context.Context) (dispatch.BatchResult, error) {
	if d := s.cfg.RunTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	res, err := s.runner.RunBatch(ctx, dispatch.BatchRequest{
		Strategy: s.cfg.Strategy,
		Trigger:  dispatch.TriggerScheduler,
		Actor:    "scheduler",
	})
	if err != nil {
		return res, err
	}
	assigned := 0
	for _, o := range res.Outcomes {
		if o.Assigned() {
			assigned++
		}
	}
	if len(res.Outcomes) > 0 {
		s.log.Infof("auto-assignment %s: %d/%d orders assigned", res.RunID, assigned, len(res.Outcomes))
	}
	return res, nil
}

// Runs returns the number of ticks processed so far.
func (s *Scheduler) Runs() uint64 { return s.runs.Load() }

// Failures returns the number of ticks whose run returned an error.
func (s *Scheduler) Failures() uint64 { return s.failures.Load() }
