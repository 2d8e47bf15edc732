// Package scheduler runs a task at a fixed rate on a single goroutine.
//
// Executions never overlap: the next one starts only after the previous one
// returned. If a run takes longer than the interval, the following run starts
// right after it and the schedule continues from there. Errors and panics of
// the task are logged and do not stop the schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"AppStatus/internal/agent/metrics"
)

var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrClosed          = errors.New("scheduler is closed")
)

// Task is one scheduled execution. ctx is cancelled when the scheduler is closed.
type Task func(ctx context.Context) error

type Options struct {
	Interval time.Duration
	// RunImmediately runs the first execution on Start instead of one interval later.
	RunImmediately bool
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

type Scheduler struct {
	name           string
	task           Task
	runImmediately bool
	logger         *slog.Logger
	metrics        *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	reset  chan struct{}
	done   chan struct{}

	mu       sync.Mutex
	interval time.Duration
	started  bool
	closed   bool
}

func New(name string, task Task, opts Options) (*Scheduler, error) {
	if task == nil {
		return nil, errors.New("task is nil")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, opts.Interval)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		name:           name,
		task:           task,
		runImmediately: opts.RunImmediately,
		logger:         logger.With("scheduler", name),
		metrics:        opts.Metrics,
		ctx:            ctx,
		cancel:         cancel,
		reset:          make(chan struct{}, 1),
		done:           make(chan struct{}),
		interval:       opts.Interval,
	}, nil
}

// Start is a no-op when the scheduler is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}

	s.started = true
	go s.loop()

	s.logger.Debug("scheduler started", "interval", s.interval)
	return nil
}

// SetInterval changes the period of future runs. A run in progress is not affected.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	changed := s.interval != interval
	s.interval = interval
	s.mu.Unlock()

	if changed {
		select {
		case s.reset <- struct{}{}:
		default:
		}
		s.logger.Debug("scheduler interval changed", "interval", interval)
	}
	return nil
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.interval
}

// IsCancelled reports whether Close has been requested.
func (s *Scheduler) IsCancelled() bool {
	return s.ctx.Err() != nil
}

// Close stops the schedule and waits for a running execution to return.
// It must not be called from inside the task.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	started := s.started
	if !s.closed {
		s.closed = true
		s.cancel()
	}
	s.mu.Unlock()

	if started {
		<-s.done
	}
	return nil
}

func (s *Scheduler) loop() {
	defer close(s.done)

	// anchor is the start of the last run, or of the loop before the first one
	anchor := time.Now()
	immediate := s.runImmediately

	wait := s.Interval()
	if immediate {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reset:
			if immediate {
				// the first run is still owed right away
				continue
			}
			timer.Reset(s.untilNext(anchor))
		case <-timer.C:
			immediate = false
			anchor = time.Now()
			s.runOnce()

			if s.ctx.Err() != nil {
				return
			}
			// interval is re-read below, a pending reset is already applied
			select {
			case <-s.reset:
			default:
			}
			timer.Reset(s.untilNext(anchor))
		}
	}
}

func (s *Scheduler) untilNext(anchor time.Time) time.Duration {
	wait := time.Until(anchor.Add(s.Interval()))
	if wait < 0 {
		return 0
	}
	return wait
}

func (s *Scheduler) runOnce() {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			s.metrics.TickPanic(s.name)
		}
		s.metrics.Tick(s.name, time.Since(start).Seconds())
	}()

	if err := s.task(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled task failed", "error", err)
	}
}
