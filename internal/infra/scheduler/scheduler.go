package scheduler

import (
	"context"
	"time"

	"study_reminder_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DispatchScheduler runs the reminder dispatch batch on a cron spec. The
// engine itself never owns a clock: each tick is one externally-driven
// invocation of DispatchService.Run with a bounded context.
type DispatchScheduler struct {
	cronEngine *cron.Cron
	dispatch   *app.DispatchService
	logger     *logrus.Logger
	cronSpec   string
	runTimeout time.Duration
}

func NewDispatchScheduler(
	dispatch *app.DispatchService,
	logger *logrus.Logger,
	cronSpec string, // e.g. "*/5 * * * *"
	runTimeout time.Duration,
) *DispatchScheduler {
	return &DispatchScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		dispatch:   dispatch,
		logger:     logger,
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
	}
}

func (s *DispatchScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		report, err := s.dispatch.Run(ctx, app.RunOptions{})
		if err != nil {
			s.logger.Errorf("Dispatch run failed: %v", err)
			return
		}
		s.logger.Infof("Dispatch run %s finished: %s", report.RunID, report.Summary())
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.Infof("Dispatch scheduler started with spec %q", s.cronSpec)
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *DispatchScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Dispatch scheduler stopped")
}
