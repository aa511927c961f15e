package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"splitledger/internal/logger"
)

// runTimeout bounds a scheduled run.
const runTimeout = 5 * time.Minute

// Scheduler triggers reminder runs on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers svc.Run under spec, a standard five-field cron
// expression or a descriptor such as "@daily".
func NewScheduler(svc *Service, spec string) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := svc.Run(ctx); err != nil {
			logger.Named("reminders").Errorw("scheduled reminder run failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Named("reminders").Infow("reminder scheduler started", "next_run", s.NextRun())
}

// NextRun returns when the next run is due, or the zero time if the
// scheduler has not started.
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
