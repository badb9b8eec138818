package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"linkhaul/internal/api"
	"linkhaul/internal/config"
	"linkhaul/internal/containers"
	"linkhaul/internal/downloads"
	"linkhaul/internal/engine"
	"linkhaul/internal/logging"
	"linkhaul/internal/store"
)

// Engine is the connection surface the daemon manages. Transfer calls go
// through the downloads service.
type Engine interface {
	downloads.Engine
	Connect(ctx context.Context) error
	Connected() bool
	Endpoint() string
	Version(ctx context.Context) (*engine.Version, error)
}

var _ Engine = (*engine.Client)(nil)

// Daemon coordinates the API server and the reconcile sweep, and enforces
// single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	engine     Engine
	downloads  *downloads.Service
	containers *containers.Service

	lockPath string
	lock     *flock.Flock

	api   *apiServer
	sweep *sweeper

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, eng Engine, dl *downloads.Service, cs *containers.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || eng == nil || dl == nil || cs == nil {
		return nil, errors.New("daemon requires config, store, engine, and services")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		engine:     eng,
		downloads:  dl,
		containers: cs,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	d.sweep = newSweeper(cfg.ReconcileInterval(), d, logger)
	return d, nil
}

// Handler exposes the HTTP API handler, mainly for tests.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Start acquires the daemon lock, connects the engine, and starts the API
// server and the sweep. An unreachable engine is logged, not fatal; the
// client reconnects per its policy.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another linkhaul daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.engine.Connect(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "engine unreachable at startup", "engine_unreachable",
			logging.String("endpoint", d.engine.Endpoint()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "start aria2c with --enable-rpc or fix engine.url"),
			logging.String(logging.FieldImpact, "submissions fail until the engine is reachable"),
		)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	if err := d.sweep.start(runCtx); err != nil {
		cancel()
		d.api.stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start reconcile sweep: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("linkhaul daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.sweep.stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("linkhaul daemon stopped")
}

// Close stops the daemon. The store is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the bound API address, or "" when the server is not listening.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Sweep reconciles in-flight downloads and then active containers.
func (d *Daemon) Sweep(ctx context.Context) error {
	n, err := d.downloads.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep downloads: %w", err)
	}
	m, err := d.containers.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep containers: %w", err)
	}
	d.logger.Debug("reconcile sweep finished", logging.Int("downloads", n), logging.Int("containers", m))
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	stats, err := d.downloads.Stats(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	status := api.DaemonStatus{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		EngineEndpoint:  d.engine.Endpoint(),
		EngineConnected: d.engine.Connected(),
		Stats:           api.FromStats(stats),
	}
	if interval := d.cfg.ReconcileInterval(); interval > 0 {
		status.SweepInterval = interval.String()
	}
	if stats.EngineAvailable {
		if v, err := d.engine.Version(ctx); err == nil && v != nil {
			status.EngineVersion = v.Version
		}
	}
	return status, nil
}
