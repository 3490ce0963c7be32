// Package scheduler triggers jobs in-process on cron schedules, for deployments
// without an external scheduler.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/jobs"
)

// AuthMethod recorded on results of in-process triggers.
const AuthMethod = "cron"

type taskRunner interface {
	Run(ctx context.Context, t jobs.Task, trig jobs.Trigger) domain.TaskResult
}

// Scheduler runs registered tasks through the job runner.
type Scheduler struct {
	cron   *cron.Cron
	runner taskRunner
	l      *zap.Logger
	ctx    context.Context
}

// New creates a scheduler whose jobs run with ctx.
func New(ctx context.Context, l *zap.Logger, runner taskRunner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		l:      l.With(zap.String("component", "scheduler")),
		ctx:    ctx,
	}
}

// Add registers a task. Schedule examples:
//   - "0 */5 * * * *" every 5 minutes
//   - "@every 1m"
func (s *Scheduler) Add(schedule string, t jobs.Task) error {
	_, err := s.cron.AddFunc(schedule, func() { s.RunNow(t) })
	if err != nil {
		return err
	}
	s.l.Info("job registered", zap.String("schedule", schedule), zap.String("job", t.Name()))
	return nil
}

// RunNow executes a task immediately, outside its schedule.
func (s *Scheduler) RunNow(t jobs.Task) domain.TaskResult {
	return s.runner.Run(s.ctx, t, jobs.Trigger{AuthMethod: AuthMethod})
}

// Entries number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started", zap.Int("jobs", s.Entries()))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.l.Info("scheduler stopped")
}
