// Package scheduler runs batch tasks on cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fraud-lake/internal/domain"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler runs tasks on standard 5-field cron specs (and descriptors such
// as "@hourly"). A firing is skipped while the previous run of the same task
// is still in progress, and a panicking task is logged and recovered.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// New creates a Scheduler. Call Add before Start or Run.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// ParseSpec validates a cron spec.
func ParseSpec(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, domain.ErrValidation("invalid cron schedule %q: %v", spec, err)
	}
	return sched, nil
}

// Add registers task under name. Names must be unique.
func (s *Scheduler) Add(name, spec string, task Task) error {
	sched, err := ParseSpec(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return domain.ErrConflict("task %q is already scheduled", name)
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(name, task) }))
	s.entries[name] = id
	s.logger.Info("task scheduled", "task", name, "schedule", spec)
	return nil
}

func (s *Scheduler) fire(name string, task Task) {
	start := time.Now()
	logger := s.logger.With("task", name)
	logger.Info("scheduled task started")
	if err := task(s.baseCtx); err != nil {
		logger.Error("scheduled task failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Info("scheduled task finished", "duration", time.Since(start))
}

// Next returns the next activation time of the named task, or the zero time
// when the task is unknown or the scheduler is not running.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "tasks", len(s.entries))
}

// Stop stops new firings, cancels the context given to running tasks and
// waits for them to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is cancelled, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
