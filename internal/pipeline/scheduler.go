package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
)

// Scheduler runs the pipeline on a cron schedule over a trailing window of
// days ending yesterday. A tick that fires while the previous run is still
// going is skipped.
type Scheduler struct {
	cron *cron.Cron
	orch *Orchestrator
	cfg  config.ScheduleConfig
	now  func() time.Time

	mu      sync.Mutex
	entry   cron.EntryID
	last    *domain.JobResult
	lastErr error
}

// NewScheduler creates a Scheduler for orch.
func NewScheduler(orch *Orchestrator, cfg config.ScheduleConfig) *Scheduler {
	cronLog := cron.PrintfLogger(logger.GetDefault().WithField("component", "scheduler"))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		orch: orch,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the job and starts the cron loop.
// Parameters:
//   - ctx: base context for every scheduled run; cancelling it stops new runs
//     from doing work.
// Returns:
//   - error: ConfigurationError for an invalid cron expression or source.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := domain.ParseDataSource(s.cfg.Source); err != nil {
		return &domain.ConfigurationError{Field: "schedule.source", Err: err}
	}
	id, err := s.cron.AddFunc(s.cfg.Cron, func() { _, _ = s.RunOnce(ctx) })
	if err != nil {
		return &domain.ConfigurationError{Field: "schedule.cron", Err: err}
	}
	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()

	s.cron.Start()
	logger.CtxInfo(ctx, "Scheduler started: cron=%q source=%s lookback=%dd", s.cfg.Cron, s.cfg.Source, s.lookback())
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// Next returns the next scheduled fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Window returns the date range the next run covers.
func (s *Scheduler) Window() (start, end time.Time) {
	end = truncateDay(s.now()).AddDate(0, 0, -1)
	start = end.AddDate(0, 0, -(s.lookback() - 1))
	return start, end
}

// RunOnce runs the pipeline for the current window.
func (s *Scheduler) RunOnce(ctx context.Context) (*domain.JobResult, error) {
	src, err := domain.ParseDataSource(s.cfg.Source)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "schedule.source", Err: err}
	}
	start, end := s.Window()
	ctx = logger.SetComponent(ctx, "scheduler")

	res, err := s.orch.Run(ctx, RunRequest{Source: src, Start: start, End: end})
	s.mu.Lock()
	s.last, s.lastErr = res, err
	s.mu.Unlock()

	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Scheduled run for %s..%s failed",
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
		return res, fmt.Errorf("scheduled run: %w", err)
	}
	return res, nil
}

// Last returns the result and error of the most recent scheduled run.
func (s *Scheduler) Last() (*domain.JobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

func (s *Scheduler) lookback() int {
	if s.cfg.LookbackDays < 1 {
		return 1
	}
	return s.cfg.LookbackDays
}
