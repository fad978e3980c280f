package notifications

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultDigestSchedule runs the digest every day at 08:00.
const DefaultDigestSchedule = "0 8 * * *"

// Scheduler runs the daily digest on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	digest   *Digest
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for digest. An empty schedule uses DefaultDigestSchedule.
func NewScheduler(schedule string, digest *Digest, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultDigestSchedule
	}
	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		digest:   digest,
		logger:   logger,
	}
}

// Start registers the digest job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		// Errors are logged and counted by Run.
		_, _ = s.digest.Run(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("digest scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("digest scheduler stopped")
}
