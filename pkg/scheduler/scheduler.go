// Package scheduler drives the engine's periodic work from a
// single tick source. Tasks run at fixed tick multiples; async
// tasks run off the tick goroutine and are skipped while a
// previous run is still going.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"digital.vasic.challengeboard/pkg/logging"
)

// DefaultTickInterval is one game tick.
const DefaultTickInterval = 50 * time.Millisecond

// Task is work run every Every ticks.
type Task struct {
	Name  string
	Every int64

	// Async tasks run on their own goroutine and never block
	// the tick.
	Async bool

	Run func(ctx context.Context) error
}

type taskState struct {
	Task
	running atomic.Bool
	runs    atomic.Int64
}

// Scheduler runs tasks from a ticker.
type Scheduler struct {
	interval time.Duration
	logger   logging.Logger

	mu    sync.Mutex
	tasks []*taskState

	tick atomic.Int64
	wg   sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets the wall-clock length of one tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger used by the scheduler.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler with no tasks.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: DefaultTickInterval,
		logger:   logging.NullLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers t.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" {
		return errors.New("task name is required")
	}
	if t.Every <= 0 {
		return fmt.Errorf("task %s: every must be positive", t.Name)
	}
	if t.Run == nil {
		return fmt.Errorf("task %s: run function is required", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tasks {
		if existing.Name == t.Name {
			return fmt.Errorf("task %s already registered", t.Name)
		}
	}
	s.tasks = append(s.tasks, &taskState{Task: t})
	return nil
}

// TickInterval returns the length of one tick.
func (s *Scheduler) TickInterval() time.Duration { return s.interval }

// Ticks returns how many ticks have elapsed.
func (s *Scheduler) Ticks() int64 { return s.tick.Load() }

// Runs returns how many times the named task has started.
func (s *Scheduler) Runs(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Name == name {
			return t.runs.Load()
		}
	}
	return 0
}

// Run ticks until ctx is done, then waits for async tasks to
// finish.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		logging.DurationField("tick", s.interval),
		logging.IntField("tasks", len(s.snapshot())),
	)
	for {
		select {
		case <-ctx.Done():
			s.Wait()
			s.logger.Info("scheduler stopped",
				logging.Int64Field("ticks", s.Ticks()),
			)
			return nil
		case <-ticker.C:
			s.advance(ctx)
		}
	}
}

// Step advances n ticks immediately on the calling goroutine.
func (s *Scheduler) Step(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		s.advance(ctx)
	}
}

// Wait blocks until every running async task returns.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) snapshot() []*taskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*taskState(nil), s.tasks...)
}

func (s *Scheduler) advance(ctx context.Context) {
	n := s.tick.Add(1)
	for _, t := range s.snapshot() {
		if n%t.Every != 0 {
			continue
		}
		if !t.Async {
			s.execute(ctx, t)
			continue
		}
		if !t.running.CompareAndSwap(false, true) {
			s.logger.Debug("task still running, skipped",
				logging.StringField("task", t.Name),
			)
			continue
		}
		s.wg.Add(1)
		go func(t *taskState) {
			defer s.wg.Done()
			defer t.running.Store(false)
			s.execute(ctx, t)
		}(t)
	}
}

func (s *Scheduler) execute(ctx context.Context, t *taskState) {
	t.runs.Add(1)
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return t.Run(ctx)
	}()
	if err != nil {
		s.logger.Error("task failed",
			logging.StringField("task", t.Name),
			logging.ErrorField(err),
		)
	}
}
