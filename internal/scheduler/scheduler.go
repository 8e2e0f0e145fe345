// Package scheduler drives the Reconciler and Orphan Sweeper on two
// independently-configurable timers and gates both behind a pausable
// switch. It generalizes the periodic-reconciliation ticker loop that used
// to live inline in main(): time.NewTicker plus a select on ctx.Done()/
// ticker.C, now parameterized per timer and aware of pause state.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Funcs are the callbacks the Scheduler invokes on each timer tick. Either
// may be nil, in which case that timer is not started.
type Funcs struct {
	Poll    func(ctx context.Context)
	Cleanup func(ctx context.Context)
}

// Scheduler runs Poll on pollInterval and Cleanup on cleanupInterval, both
// skipped while the PauseManager reports paused.
type Scheduler struct {
	pollInterval    time.Duration
	cleanupInterval time.Duration
	funcs           Funcs
	pause           *PauseManager
	logger          *slog.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPauseManager attaches a PauseManager gating both timers. If not
// supplied, a fresh never-paused PauseManager is used.
func WithPauseManager(pm *PauseManager) Option {
	return func(s *Scheduler) {
		if pm != nil {
			s.pause = pm
		}
	}
}

// New creates a Scheduler. pollInterval and cleanupInterval of zero disable
// the corresponding timer.
func New(pollInterval, cleanupInterval time.Duration, funcs Funcs, opts ...Option) *Scheduler {
	s := &Scheduler{
		pollInterval:    pollInterval,
		cleanupInterval: cleanupInterval,
		funcs:           funcs,
		logger:          slog.Default(),
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pause == nil {
		s.pause = NewPauseManager()
	}
	return s
}

// Pause returns the scheduler's PauseManager.
func (s *Scheduler) Pause() *PauseManager {
	return s.pause
}

// Start launches the poll and cleanup timer goroutines, if configured.
func (s *Scheduler) Start(ctx context.Context) {
	if s.funcs.Poll != nil && s.pollInterval > 0 {
		s.wg.Add(1)
		go s.runTimer(ctx, "poll", s.pollInterval, s.funcs.Poll)
	}
	if s.funcs.Cleanup != nil && s.cleanupInterval > 0 {
		s.wg.Add(1)
		go s.runTimer(ctx, "cleanup", s.cleanupInterval, s.funcs.Cleanup)
	}
}

// Stop halts both timer goroutines and waits for them to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) runTimer(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if s.pause.Paused() {
				s.logger.Debug("scheduler tick skipped, paused", slog.String("timer", name))
				continue
			}
			fn(ctx)
		}
	}
}
