// Package jobs runs the scheduled tasks with retries, timeouts, cache
// fallbacks and a uniform status classification.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vadiminshakov/qrlbot/internal/domain"
	"github.com/vadiminshakov/qrlbot/internal/metrics"
	"github.com/vadiminshakov/qrlbot/pkg/retrier"
)

const (
	reasonAlreadyRunning = "already running"
	reasonNoCredentials  = "API keys not configured"
)

// Task is a single scheduled job.
type Task interface {
	Name() string
	// RequiresCredentials reports whether the task calls signed exchange endpoints.
	RequiresCredentials() bool
	Run(ctx context.Context, run *Run) domain.TaskResult
}

// Policy retry settings of a task.
type Policy struct {
	// Attempts total number of tries, at least one.
	Attempts int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// Backoff base delay, doubled after every failed attempt.
	Backoff time.Duration
}

func (p Policy) retrier(l *zap.Logger) *retrier.Retrier {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return retrier.New(
		retrier.WithMaxRetries(attempts-1),
		retrier.WithInitialInterval(p.Backoff),
		retrier.WithMultiplier(2),
		retrier.WithJitter(0),
		retrier.WithAttemptTimeout(p.Timeout),
		retrier.WithOnRetry(func(attempt int, err error) {
			l.Warn("attempt failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
}

// withRetry runs fn under the policy of the current run.
func withRetry[T any](ctx context.Context, run *Run, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	r := p.retrier(run.l)
	v, err := retrier.DoWithData(r, ctx, fn)
	if err != nil {
		run.l.Warn("all attempts failed", zap.Int("max_attempts", r.Attempts()), zap.Error(err))
	}
	return v, err
}

// Trigger carries caller supplied data for one invocation.
type Trigger struct {
	RequestID  string
	AuthMethod string
}

// Run per-invocation context handed to a task.
type Run struct {
	Task       string
	RequestID  string
	AuthMethod string
	Started    time.Time
	l          *zap.Logger
}

// Logger returns the logger bound to this invocation.
func (r *Run) Logger() *zap.Logger {
	return r.l
}

// Metadata returns the base metadata of this invocation.
func (r *Run) Metadata() domain.TaskMetadata {
	return domain.TaskMetadata{
		Task:       r.Task,
		Timestamp:  r.Started,
		RequestID:  r.RequestID,
		AuthMethod: r.AuthMethod,
	}
}

// Runner executes tasks, refusing to start a task that is still running.
type Runner struct {
	l              *zap.Logger
	hasCredentials func() bool
	now            func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// NewRunner creates a runner. hasCredentials may be nil when no exchange keys are needed.
func NewRunner(l *zap.Logger, hasCredentials func() bool) *Runner {
	return &Runner{
		l:              l,
		hasCredentials: hasCredentials,
		now:            time.Now,
		running:        make(map[string]struct{}),
	}
}

// Run executes the task and returns its classified result. It never returns
// an error: failures are reported through the result status.
func (r *Runner) Run(ctx context.Context, t Task, trig Trigger) domain.TaskResult {
	name := t.Name()
	requestID := trig.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	started := r.now().UTC()
	run := &Run{
		Task:       name,
		RequestID:  requestID,
		AuthMethod: trig.AuthMethod,
		Started:    started,
		l:          r.l.With(zap.String("job", name), zap.String("request_id", requestID)),
	}

	var res domain.TaskResult
	switch {
	case t.RequiresCredentials() && !r.credentialsSet():
		res = skipped(run, reasonNoCredentials)
	case !r.acquire(name):
		res = skipped(run, reasonAlreadyRunning)
	default:
		func() {
			defer r.release(name)
			res = t.Run(ctx, run)
		}()
	}

	duration := r.now().Sub(started)
	res.Metadata = complete(res.Metadata, run, duration)

	metrics.TaskRuns.WithLabelValues(name, string(res.Status)).Inc()
	metrics.JobDuration.WithLabelValues(name).Observe(duration.Seconds())

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Int64("duration_ms", res.Metadata.DurationMs),
	}
	if res.Metadata.Source != "" {
		fields = append(fields, zap.String("source", res.Metadata.Source))
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", res.Reason))
	}
	switch res.Status {
	case domain.TaskStatusError:
		run.l.Error("job failed", append(fields, zap.String("error", res.Metadata.Error))...)
	case domain.TaskStatusDegraded, domain.TaskStatusPartial:
		run.l.Warn("job finished", fields...)
	default:
		run.l.Info("job finished", fields...)
	}

	return res
}

func (r *Runner) credentialsSet() bool {
	return r.hasCredentials == nil || r.hasCredentials()
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[name]; busy {
		return false
	}
	r.running[name] = struct{}{}
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}

func skipped(run *Run, reason string) domain.TaskResult {
	return domain.TaskResult{
		Status:   domain.TaskStatusSkipped,
		Reason:   reason,
		Metadata: run.Metadata(),
	}
}

// complete fills the fields every result must carry.
func complete(m domain.TaskMetadata, run *Run, d time.Duration) domain.TaskMetadata {
	if m.Task == "" {
		m.Task = run.Task
	}
	if m.RequestID == "" {
		m.RequestID = run.RequestID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = run.Started
	}
	if m.AuthMethod == "" {
		m.AuthMethod = run.AuthMethod
	}
	m.DurationMs = d.Milliseconds()
	return m
}

func failed(meta domain.TaskMetadata, source string, err error) domain.TaskResult {
	meta.Source = source
	meta.Error = err.Error()
	return domain.TaskResult{Status: domain.TaskStatusError, Reason: err.Error(), Metadata: meta}
}
