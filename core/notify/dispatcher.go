package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/fleetassign/core/logger"
	"github.com/kilianp07/fleetassign/core/monitoring"
)

// ErrQueueFull is returned when the dispatcher cannot accept more work.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("notification dispatcher closed")

// Dispatcher queues notifications and delivers them from a pool of workers.
// Notify never blocks: when the queue is full the notification is dropped
// and ErrQueueFull is returned. Delivery errors are logged.
type Dispatcher struct {
	next    Notifier
	log     logger.Logger
	timeout time.Duration
	limiter *rate.Limiter

	mu     sync.RWMutex
	queue  chan Notification
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers delivering to next.
func NewDispatcher(next Notifier, cfg Config, log logger.Logger) *Dispatcher {
	cfg.SetDefaults()
	d := &Dispatcher{
		next:    next,
		log:     log,
		timeout: cfg.Timeout(),
		queue:   make(chan Notification, cfg.QueueSize),
	}
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify enqueues n for delivery.
func (d *Dispatcher) Notify(_ context.Context, n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.log.Warnf("notification queue full, dropping %s for %s", n.Kind, n.Recipient)
		return ErrQueueFull
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n Notification) {
	defer monitoring.Recover()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Warnf("notification to %s not sent: %v", n.Recipient, err)
			return
		}
	}
	if err := d.next.Notify(ctx, n); err != nil {
		d.log.Errorf("notification %s to %s failed: %v", n.Kind, n.Recipient, err)
		monitoring.CaptureException(err, map[string]string{"module": "notify", "kind": string(n.Kind)})
	}
}

// Close stops accepting notifications and waits for the queue to drain or
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
