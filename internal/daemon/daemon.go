package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"corrflow/internal/api"
	"corrflow/internal/config"
	"corrflow/internal/correspondence"
	"corrflow/internal/directory"
	"corrflow/internal/effects"
	"corrflow/internal/logging"
	"corrflow/internal/notifications"
	"corrflow/internal/store"
	"corrflow/internal/workflow"
)

// Daemon owns the runtime services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	directory  *directory.Service
	engine     *workflow.Engine
	corr       *correspondence.Service
	inbox      *notifications.Inbox
	hub        *notifications.Hub
	dispatcher *effects.Dispatcher
	server     *apiServer

	sessionID string
	startedAt time.Time

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithSessionID tags status output with the runner's session identifier.
func WithSessionID(id string) Option {
	return func(d *Daemon) {
		d.sessionID = id
	}
}

// New constructs a daemon and the services it serves over HTTP.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if err := cfg.RequireSecret(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.hub = notifications.NewHub(logger)
	d.inbox = notifications.NewInbox(st, d.hub)
	d.dispatcher = effects.NewDispatcher(cfg, logger)
	d.directory = directory.NewService(cfg, st, logger)
	d.engine = workflow.NewEngine(cfg, st, d.directory, logger,
		workflow.WithEmitter(d.dispatcher),
		workflow.WithNotifier(notifications.NewService(cfg, st, d.hub, logger)),
	)
	d.corr = correspondence.NewService(cfg, st, d.directory, d.engine, logger)
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the effect workers and begins
// serving HTTP.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another corrflow daemon instance is already running")
	}

	if err := d.dispatcher.Start(); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start effects: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		d.drain()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("corrflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.address()),
	)
	return nil
}

// Stop shuts down the HTTP server, drains pending side effects and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.hub.Close()
	d.drain()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("corrflow daemon stopped")
}

func (d *Daemon) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout())
	defer cancel()
	if err := d.dispatcher.Close(ctx); err != nil {
		stats := d.dispatcher.Stats()
		logging.WarnWithContext(d.logger, "side effects abandoned at shutdown", "effects_drain_timeout",
			logging.Error(err),
			logging.Int("pending", stats.Pending),
			logging.String(logging.FieldImpact, "some audit rows or notifications were not written"),
			logging.String(logging.FieldErrorHint, "raise effects.shutdown_timeout_seconds"),
		)
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the HTTP listen address once started.
func (d *Daemon) Addr() string {
	return d.server.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Bind:         d.server.address(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		SessionID:    d.sessionID,
		Effects:      api.FromEffectsStats(d.dispatcher.Stats()),
		Directory:    api.FromCacheStats(d.directory.CacheStats()),
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.Format(time.RFC3339)
	}
	return status
}

// Health returns database diagnostics.
func (d *Daemon) Health(ctx context.Context) (api.Health, error) {
	health, err := d.store.CheckHealth(ctx)
	if err != nil {
		return api.Health{}, err
	}
	return api.FromHealth(health), nil
}
