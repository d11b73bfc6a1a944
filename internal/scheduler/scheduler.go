// Package scheduler runs fixed-period background tasks independently of
// request handling. Each task gets its own goroutine and ticker; failures
// and panics are logged and the task simply runs again on its next tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a named unit of periodic work.
type Task struct {
	// Name identifies the task in logs.
	Name string

	// Interval is the period between runs. Must be positive.
	Interval time.Duration

	// RunAtStart runs the task once immediately when the scheduler starts.
	RunAtStart bool

	// Run does the work. A returned error is logged, never propagated.
	Run func(ctx context.Context) error
}

// Scheduler owns a set of cancellable periodic tasks. A task never overlaps
// with itself: a slow run delays its next tick instead of stacking up.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []Task
	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. Tasks added after Start are rejected.
func (s *Scheduler) Add(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started, cannot add %q", t.Name)
	}
	if t.Interval <= 0 {
		return fmt.Errorf("task %q: interval must be positive", t.Name)
	}
	if t.Run == nil {
		return fmt.Errorf("task %q: run function is required", t.Name)
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start launches every registered task. It returns immediately. The given
// context bounds the tasks' lifetime in addition to Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)

	for _, t := range s.tasks {
		t := t
		s.group.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}

	slog.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
}

// Stop cancels all tasks and waits for in-flight runs to return.
// Safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, group := s.cancel, s.group
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	_ = group.Wait()
	slog.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	if t.RunAtStart {
		runOnce(ctx, t)
	}

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, t)
		}
	}
}

// runOnce executes a single run, converting panics into log entries so one
// bad run cannot kill the task loop.
func runOnce(ctx context.Context, t Task) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled task panicked",
				slog.String("task", t.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := t.Run(ctx); err != nil {
		slog.Error("scheduled task failed",
			slog.String("task", t.Name),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}

	slog.Debug("scheduled task finished",
		slog.String("task", t.Name),
		slog.Duration("elapsed", time.Since(start)),
	)
}
