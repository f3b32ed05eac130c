package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	applog "expenso/internal/log"
)

// DefaultSchedule runs at 09:00 on the first day of every month.
const DefaultSchedule = "0 9 1 * *"

const runTimeout = 10 * time.Minute

type Job interface {
	Run(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	logger *applog.Logger
}

// NewScheduler registers job under a standard five-field cron spec.
func NewScheduler(spec string, job Job, logger *applog.Logger) (*Scheduler, error) {
	logger = logger.WithComponent(applog.ComponentArchive)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		logger.InfoContext(ctx, "Executing monthly archive")
		if err := job.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "Monthly archive failed", applog.FieldError, err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("add cron job %q: %w", spec, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("Archive scheduled", "next_run", e.Next)
	}
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
