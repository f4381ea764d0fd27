// Package scheduler drives periodic rate resolution.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ratefeed/internal/rate"
)

var (
	ErrAlreadyStarted  = errors.New("scheduler already started")
	ErrStopped         = errors.New("scheduler stopped")
	ErrInvalidInterval = errors.New("refresh interval must be positive")
)

// Resolver is the part of the resolver the scheduler drives.
type Resolver interface {
	Resolve(ctx context.Context) rate.ConversionRate
	Current() (rate.ConversionRate, bool)
	ApplyFallback(ctx context.Context) rate.ConversionRate
}

// Scheduler runs one resolution immediately on Start and then one per
// interval. A tick that arrives while a cycle is still running is dropped.
type Scheduler struct {
	res Resolver
	log *zap.SugaredLogger

	mu       sync.Mutex
	interval time.Duration
	started  bool
	stopped  bool
	cancel   context.CancelFunc

	reset    chan struct{}
	busy     atomic.Bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Scheduler; it does nothing until Start.
func New(res Resolver, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		res:      res,
		log:      log,
		interval: interval,
		reset:    make(chan struct{}, 1),
	}
}

// Start performs the first resolution synchronously, applies the fallback if
// the current rate is still unset, and then starts the ticker loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	case s.interval <= 0:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidInterval, s.interval)
	}
	s.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.busy.Store(true)
	s.res.Resolve(loopCtx)
	s.busy.Store(false)
	if _, ok := s.res.Current(); !ok {
		s.res.ApplyFallback(loopCtx)
	}

	go s.loop(loopCtx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()
	s.log.Infow("rate scheduler started", "interval", s.Interval())

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("rate scheduler stopped")
			return
		case <-s.reset:
			d := s.Interval()
			ticker.Reset(d)
			s.log.Infow("rate scheduler restarted", "interval", d)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Debugw("previous cycle still running, tick skipped")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)
		s.res.Resolve(ctx)
	}()
}

// Interval returns the current period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Reset changes the period. A running ticker is replaced so the next cycle
// fires one full interval from now.
func (s *Scheduler) Reset(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	s.mu.Lock()
	s.interval = interval
	running := s.started && !s.stopped
	s.mu.Unlock()

	if running {
		select {
		case s.reset <- struct{}{}:
		default:
			// a restart is already pending and will read the new interval
		}
	}
	return nil
}

// Stop cancels the loop and waits for it and any in-flight cycle. Only the
// first call has an effect.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
	})
}
