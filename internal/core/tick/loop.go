// Package tick drives the simulation at a fixed step with an accumulator.
package tick

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/gamecore/internal/core/observability/log"
)

var (
	// ErrTickFault wraps any error or panic raised inside a tick.
	ErrTickFault = errors.New("tick: fault")
	ErrRunning   = errors.New("tick: loop already running")
)

const (
	DefaultRate = 30
	MinRate     = 1
	MaxRate     = 600
	// catchUpSteps is how many steps may pile up before the step widens.
	catchUpSteps = 3
)

// Func advances the simulation by dt seconds.
type Func func(dt float64) error

// Clock abstracts wall time so tests can drive the loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Loop runs Func at a fixed rate. Every tick runs under the tick lock; other
// goroutines touch simulation state through Locked.
type Loop struct {
	fn     Func
	rate   int
	step   float64
	clock  Clock
	logger log.Log

	mu          sync.Mutex
	accumulator float64

	shutdown atomic.Bool
	running  atomic.Bool
	ticks    atomic.Uint64
}

type Option func(*Loop)

// WithRate sets the target ticks per second. Rates outside [MinRate, MaxRate]
// fall back to DefaultRate.
func WithRate(rate int) Option {
	return func(l *Loop) { l.rate = rate }
}

func WithClock(c Clock) Option {
	return func(l *Loop) { l.clock = c }
}

func WithLogger(logger log.Log) Option {
	return func(l *Loop) { l.logger = logger }
}

func New(fn Func, opts ...Option) *Loop {
	l := &Loop{fn: fn, rate: DefaultRate, clock: wallClock{}}
	for _, opt := range opts {
		opt(l)
	}
	if l.rate < MinRate || l.rate > MaxRate {
		l.rate = DefaultRate
	}
	if l.logger == nil {
		l.logger = log.Provide()
	}
	l.step = 1 / float64(l.rate)
	return l
}

func (l *Loop) Rate() int { return l.rate }

// Step returns the target step in seconds.
func (l *Loop) Step() float64 { return l.step }

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// Shutdown asks the loop to stop before its next tick. A tick in progress
// completes.
func (l *Loop) Shutdown() { l.shutdown.Store(true) }

func (l *Loop) ShuttingDown() bool { return l.shutdown.Load() }

// Locked runs fn under the tick lock, between ticks.
func (l *Loop) Locked(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Advance adds elapsed seconds to the accumulator and runs as many ticks as
// it covers. When more than three steps are pending the step doubles until
// they are not. The shutdown flag is checked before every tick. The first
// fault stops the drain and is returned wrapped in ErrTickFault.
func (l *Loop) Advance(elapsed float64) (int, error) {
	if elapsed > 0 {
		l.accumulator += elapsed
	}
	step := l.step
	for l.accumulator > catchUpSteps*step {
		step *= 2
	}

	n := 0
	for l.accumulator >= step {
		if l.shutdown.Load() {
			break
		}
		if err := l.tick(step); err != nil {
			return n, err
		}
		l.accumulator -= step
		n++
	}
	return n, nil
}

// Pending returns the unspent accumulated time in seconds.
func (l *Loop) Pending() float64 { return l.accumulator }

func (l *Loop) tick(dt float64) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTickFault, r)
			l.logger.Error("tick panicked",
				log.Uint64("tick", l.ticks.Load()),
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())),
			)
		}
	}()

	if ferr := l.fn(dt); ferr != nil {
		l.logger.Error("tick failed", log.Uint64("tick", l.ticks.Load()), log.Error(ferr))
		return fmt.Errorf("%w: %w", ErrTickFault, ferr)
	}
	l.ticks.Add(1)
	return nil
}

// Run measures wall time, feeds it to Advance and sleeps for what is left of
// the step. It returns nil after Shutdown or context cancellation, and the
// wrapped fault when a tick fails. A fault is fatal; Run does not restart.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)

	stepDur := time.Duration(l.step * float64(time.Second))
	l.logger.Info("tick loop started", log.Int("rate", l.rate), log.Duration("step", stepDur))

	last := l.clock.Now()
	for {
		if l.shutdown.Load() || ctx.Err() != nil {
			l.logger.Info("tick loop stopped", log.Uint64("ticks", l.ticks.Load()))
			return nil
		}

		now := l.clock.Now()
		elapsed := now.Sub(last).Seconds()
		last = now

		if _, err := l.Advance(elapsed); err != nil {
			return err
		}

		took := l.clock.Now().Sub(now)
		if wait := stepDur - took; wait > 0 {
			_ = l.clock.Sleep(ctx, wait)
		}
	}
}
