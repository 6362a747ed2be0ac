package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 1m"

const sweepTimeout = 30 * time.Second

// Scheduler runs the sweeper on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	sweeper  *Sweeper
	schedule string
	log      *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewScheduler(sweeper *Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{sweeper: sweeper, schedule: schedule, log: logger.With("component", "reminders")}
}

func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.runOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("reminder schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.log.Info("reminder scheduler started", "schedule", s.schedule)
	return nil
}

// Stop cancels in-flight sweeps and waits for the running job to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	started := time.Now()
	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("reminder sweep failed", "sent", n, "err", err)
		return
	}
	if n > 0 {
		s.log.Info("reminder sweep finished", "sent", n, "duration", time.Since(started))
	}
}
