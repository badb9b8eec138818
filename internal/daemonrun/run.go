package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"linkhaul/internal/config"
	"linkhaul/internal/containers"
	"linkhaul/internal/daemon"
	"linkhaul/internal/downloads"
	"linkhaul/internal/engine"
	"linkhaul/internal/extract"
	"linkhaul/internal/keylock"
	"linkhaul/internal/logging"
	"linkhaul/internal/notifications"
	"linkhaul/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Runtime holds the wired components shared by the daemon and in-process
// CLI commands.
type Runtime struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *store.Store
	Engine     *engine.Client
	Extractor  *extract.Extractor
	Downloads  *downloads.Service
	Containers *containers.Service
}

// Build opens the store and wires the engine client, the extractor, and both
// orchestrators around one shared keylock set.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	locks := keylock.New()
	eng := engine.New(cfg.Engine, engine.WithLogger(logger))
	ex := extract.New(cfg.Extract, extract.WithLogger(logger))
	dl := downloads.NewService(cfg, st, eng,
		downloads.WithLogger(logger),
		downloads.WithLocks(locks),
	)
	cs := containers.NewService(cfg, st, dl, ex,
		containers.WithLogger(logger),
		containers.WithLocks(locks),
		containers.WithNotifier(notifications.NewService(cfg)),
	)
	return &Runtime{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Engine:     eng,
		Extractor:  ex,
		Downloads:  dl,
		Containers: cs,
	}, nil
}

// Close releases the store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Run starts the linkhaul daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("open runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	logger.Info("runtime snapshot",
		logging.String(logging.FieldEventType, "runtime_snapshot"),
		logging.String("database", rt.Store.Path()),
		logging.String("engine", rt.Engine.Endpoint()),
		logging.String("reconnect", cfg.Engine.Reconnect),
		logging.Bool("engine_secret_present", cfg.Engine.Secret != ""),
		logging.Bool("api_token_present", cfg.Paths.APIToken != ""),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Duration("sweep_interval", cfg.ReconcileInterval()),
		logging.Int("hosters", len(cfg.Extract.Hosters)),
	)

	d, err := daemon.New(cfg, rt.Store, rt.Engine, rt.Downloads, rt.Containers, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "linkhauld.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("linkhaul daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
