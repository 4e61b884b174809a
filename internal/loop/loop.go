package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrLoopStopped is returned by Post and Ref once Stop has been called.
var ErrLoopStopped = errors.New("loop stopped")

// Fault describes a callback that panicked on the loop.
type Fault struct {
	Value any
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("callback panicked: %v", f.Value)
}

// FaultHandler receives recovered callback panics. It runs on the loop
// goroutine.
type FaultHandler func(*Fault)

// Option configures a Loop.
type Option func(*Loop)

// WithFaultHandler replaces the default fault handler, which logs the
// fault at error level.
func WithFaultHandler(h FaultHandler) Option {
	return func(l *Loop) {
		l.onFault = h
	}
}

// Loop runs posted callbacks serially on one goroutine.
type Loop struct {
	logger  *slog.Logger
	onFault FaultHandler

	// wake has capacity 1 so a burst of posts coalesces into one wakeup.
	wake chan struct{}

	mu      sync.Mutex
	queue   []func()
	refs    int
	stopped bool
}

// New creates a loop. It does nothing until Run is called.
func New(logger *slog.Logger, opts ...Option) *Loop {
	l := &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	l.onFault = l.logFault
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) logFault(f *Fault) {
	l.logger.Error("loop callback panicked", "panic", fmt.Sprint(f.Value), "stack", string(f.Stack))
}

// Post queues fn to run on the loop. It never blocks; the queue is
// unbounded. It is safe to call from any goroutine, including the loop.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()
	return nil
}

// Ref records one outstanding piece of work that will eventually post back
// to the loop. RunUntilIdle does not return while references are held. A
// stopped loop takes no new references, since their posts could never run.
func (l *Loop) Ref() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrLoopStopped
	}
	l.refs++
	return nil
}

// Unref releases a reference taken with Ref.
func (l *Loop) Unref() {
	l.mu.Lock()
	if l.refs == 0 {
		l.mu.Unlock()
		panic("loop: Unref without matching Ref")
	}
	l.refs--
	l.mu.Unlock()

	l.signal()
}

// Refs reports how many references are currently held.
func (l *Loop) Refs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

// Stop makes Run return once the callbacks already queued have run.
// Subsequent posts fail with ErrLoopStopped.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.signal()
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// Run executes callbacks on the calling goroutine until Stop is called or
// ctx is done. It returns ctx.Err() in the latter case.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, false)
}

// RunUntilIdle is like Run but also returns once the queue is empty and no
// references are held.
func (l *Loop) RunUntilIdle(ctx context.Context) error {
	return l.run(ctx, true)
}

func (l *Loop) run(ctx context.Context, untilIdle bool) error {
	for {
		batch, refs, stopped := l.take()
		for _, fn := range batch {
			l.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if stopped || (untilIdle && refs == 0) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// take removes every queued callback in FIFO order.
func (l *Loop) take() ([]func(), int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch, l.refs, l.stopped
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			loopFaultsTotal.Inc()
			l.onFault(&Fault{Value: r, Stack: debug.Stack()})
		}
	}()
	loopCallbacksTotal.Inc()
	fn()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
