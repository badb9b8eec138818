package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"linkhaul/internal/logging"
)

// sweeper runs Daemon.Sweep on a fixed interval. Overlapping runs are
// rescheduled rather than stacked.
type sweeper struct {
	interval  time.Duration
	daemon    *Daemon
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

func newSweeper(interval time.Duration, d *Daemon, logger *slog.Logger) *sweeper {
	return &sweeper{
		interval: interval,
		daemon:   d,
		logger:   logging.NewComponentLogger(logger, "sweep"),
	}
}

func (s *sweeper) start(ctx context.Context) error {
	if s == nil || s.interval <= 0 {
		return nil
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.run(ctx) }),
		gocron.WithName("reconcile-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info("reconcile sweep scheduled", logging.Duration("interval", s.interval))
	return nil
}

func (s *sweeper) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.daemon.Sweep(ctx); err != nil {
		logging.WarnWithContext(s.logger, "reconcile sweep failed", "sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access and engine connectivity"),
			logging.String(logging.FieldImpact, "stored status may lag behind the engine until the next run"),
		)
	}
}

func (s *sweeper) stop() {
	if s == nil || s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		s.logger.Debug("scheduler shutdown", logging.Error(err))
	}
	s.scheduler = nil
}
