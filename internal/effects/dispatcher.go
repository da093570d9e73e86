package effects

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"corrflow/internal/config"
	"corrflow/internal/logging"
)

// Stats reports dispatcher counters.
type Stats struct {
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
	Workers   int   `json:"workers"`
}

type job struct {
	ctx    context.Context
	effect Effect
}

// Dispatcher executes effects on a pool of background workers.
type Dispatcher struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	mu      sync.RWMutex
	queue   chan job
	running bool
	closed  bool
	wg      sync.WaitGroup

	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher sizes a dispatcher from the [effects] configuration.
func NewDispatcher(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	workers, size, timeout := 2, 256, 10*time.Second
	if cfg != nil {
		if cfg.Effects.Workers > 0 {
			workers = cfg.Effects.Workers
		}
		if cfg.Effects.QueueSize > 0 {
			size = cfg.Effects.QueueSize
		}
		timeout = cfg.EffectTimeout()
	}
	return &Dispatcher{
		logger:  logging.NewComponentLogger(logger, "effects"),
		workers: workers,
		timeout: timeout,
		queue:   make(chan job, size),
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("effects dispatcher closed")
	}
	if d.running {
		return errors.New("effects dispatcher already running")
	}
	d.running = true
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.work()
	}
	d.logger.Debug("effects dispatcher started",
		logging.Int("workers", d.workers),
		logging.Int("queue_size", cap(d.queue)),
	)
	return nil
}

// Emit enqueues effects without blocking. Effects emitted before Start wait in
// the queue; effects emitted after Close or onto a full queue are dropped.
func (d *Dispatcher) Emit(ctx context.Context, effects ...Effect) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, eff := range effects {
		if eff.Run == nil {
			continue
		}
		if d.closed {
			d.drop(ctx, eff, "dispatcher closed")
			continue
		}
		select {
		case d.queue <- job{ctx: detach(ctx), effect: eff}:
			d.queued.Add(1)
		default:
			d.drop(ctx, eff, "queue full")
		}
	}
}

func (d *Dispatcher) drop(ctx context.Context, eff Effect, reason string) {
	d.dropped.Add(1)
	logging.WarnWithContext(logging.WithContext(detach(ctx), d.logger), "side effect dropped",
		"effect_dropped",
		logging.String("effect", eff.Name),
		logging.CorrespondenceID(eff.CorrespondenceID),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "raise effects.queue_size or effects.workers"),
		logging.String(logging.FieldImpact, "audit entry or notification skipped"),
	)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		if err := execute(j.ctx, d.logger, d.timeout, j.effect); err != nil {
			d.failed.Add(1)
			continue
		}
		d.completed.Add(1)
	}
}

// Close stops accepting effects and waits until the queue drains or ctx ends.
// Effects still queued when ctx ends are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	running := d.running
	d.mu.Unlock()

	if !running {
		abandoned := len(d.queue)
		for range d.queue {
		}
		if abandoned > 0 {
			d.dropped.Add(int64(abandoned))
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logging.WarnWithContext(d.logger, "effects dispatcher shutdown timed out", "effects_shutdown_timeout",
			logging.Int("pending", len(d.queue)),
			logging.String(logging.FieldImpact, "queued audit entries or notifications were not delivered"),
		)
		return ctx.Err()
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    d.queued.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Pending:   len(d.queue),
		Workers:   d.workers,
	}
}
