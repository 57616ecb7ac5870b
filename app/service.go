// Package app wires configuration, storage, notification and the
// assignment engine into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/fleetassign/api/assignment"
	"github.com/kilianp07/fleetassign/api/vehicles"
	"github.com/kilianp07/fleetassign/config"
	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/dispatch/logging"
	"github.com/kilianp07/fleetassign/core/factory"
	"github.com/kilianp07/fleetassign/core/geo"
	coremetrics "github.com/kilianp07/fleetassign/core/metrics"
	coremon "github.com/kilianp07/fleetassign/core/monitoring"
	"github.com/kilianp07/fleetassign/core/notify"
	"github.com/kilianp07/fleetassign/core/scheduler"
	"github.com/kilianp07/fleetassign/core/store"
	"github.com/kilianp07/fleetassign/infra/logger"
	"github.com/kilianp07/fleetassign/infra/metrics"
	"github.com/kilianp07/fleetassign/infra/monitoring"
	_ "github.com/kilianp07/fleetassign/infra/notify"
	infrastore "github.com/kilianp07/fleetassign/infra/store"
	"github.com/kilianp07/fleetassign/internal/eventbus"
)

// Service owns every long-lived component of the assignment engine.
type Service struct {
	Manager *dispatch.Manager
	Store   store.Store

	cfg       *config.Config
	scheduler *scheduler.Scheduler
	bus       *eventbus.Bus
	notifier  *notify.Dispatcher
	sink      coremetrics.MetricsSink
	log       logger.Logger
}

type seeder interface {
	Seed(ctx context.Context, f store.Fixtures) error
}

// New creates a Service from the configuration. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	svc := &Service{Store: st, cfg: cfg, log: logg}
	fail := func(err error) (*Service, error) {
		_ = svc.Close()
		return nil, err
	}

	sinkCfgs := cfg.Metrics.Sinks
	if len(sinkCfgs) == 0 && cfg.Metrics.PrometheusEnabled {
		sinkCfgs = []factory.ModuleConfig{{Type: "prometheus"}}
	}
	svc.sink, err = coremetrics.NewMetricsSink(sinkCfgs)
	if err != nil {
		return fail(fmt.Errorf("metrics sinks: %w", err))
	}

	svc.bus = eventbus.New()
	base, err := notify.NewNotifier(cfg.Notify.Sinks)
	if err != nil {
		return fail(fmt.Errorf("notifiers: %w", err))
	}
	svc.notifier = notify.NewDispatcher(notify.Multi{base, notify.NewBusNotifier(svc.bus)}, cfg.Notify, logger.New("notify"))

	est := geo.NewHaversineEstimator(cfg.Dispatch.AverageSpeedKmh)
	svc.Manager, err = dispatch.NewManager(cfg.Dispatch, st, est, svc.notifier, svc.sink, svc.bus, logger.New("dispatch"))
	if err != nil {
		return fail(fmt.Errorf("dispatch manager: %w", err))
	}
	ls, err := logging.Open(cfg.Logging)
	if err != nil {
		return fail(fmt.Errorf("assignment log: %w", err))
	}
	svc.Manager.SetLogStore(ls)

	if cfg.Scheduler.Enabled {
		svc.scheduler, err = scheduler.New(svc.Manager, cfg.Scheduler, logger.New("scheduler"))
		if err != nil {
			return fail(err)
		}
	}
	return svc, nil
}

func openStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	var st store.Store
	switch c.Backend {
	case "postgres":
		pg, err := infrastore.NewPostgresStore(ctx, c.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		st = pg
	default:
		st = store.NewMemoryStore()
	}
	if c.Fixtures == "" {
		return st, nil
	}
	fx, err := store.LoadFixtures(c.Fixtures)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	if s, ok := st.(seeder); ok {
		if err := s.Seed(ctx, fx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed store: %w", err)
		}
	}
	return st, nil
}

// Handler returns the API routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	assignment.Register(mux, s.Manager, s.cfg.HTTP.Token, logger.New("http"))
	vehicles.Register(mux, s.Store, func(h http.Handler) http.Handler {
		return assignment.RequireToken(s.cfg.HTTP.Token, h)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Run serves the API, the optional metrics endpoint and the scheduler
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("collector"))
	if s.cfg.Metrics.PrometheusEnabled {
		coremon.Go(func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}
	if s.scheduler != nil {
		coremon.Go(func() { s.scheduler.Run(ctx) })
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Address)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close drains pending notifications and releases the stores.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	if s.notifier != nil {
		errs = append(errs, s.notifier.Close(ctx))
	}
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
