// Package pool provides the schedulers that run thumbnail work off the
// caller's loop: an unbounded goroutine-per-task scheduler and a fixed-size
// worker pool with a bounded queue.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Common errors returned by schedulers.
var (
	ErrQueueFull = errors.New("work queue is full")
	ErrClosed    = errors.New("scheduler is closed")
)

// Scheduler runs tasks on some goroutine other than the caller's.
type Scheduler interface {
	// Schedule hands task off for execution. A nil error means the task
	// will run exactly once.
	Schedule(task func()) error
}

// runTask executes task and turns a panic into a log line so that one bad
// task never takes a worker down with it.
func runTask(logger *slog.Logger, task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	task()
}

// Unbounded runs every task in its own goroutine.
type Unbounded struct {
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewUnbounded creates a goroutine-per-task scheduler.
func NewUnbounded(logger *slog.Logger) *Unbounded {
	return &Unbounded{logger: logger}
}

// Schedule starts task in a new goroutine. It fails only after Close.
func (u *Unbounded) Schedule(task func()) error {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.closed {
		return ErrClosed
	}
	u.wg.Go(func() {
		runTask(u.logger, task)
	})
	return nil
}

// Wait blocks until every scheduled task has returned.
func (u *Unbounded) Wait() {
	u.wg.Wait()
}

// Close refuses further tasks and waits for in-flight ones.
func (u *Unbounded) Close() {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()
	u.wg.Wait()
}

// Pool runs tasks on a fixed number of workers fed by a bounded queue.
type Pool struct {
	tasks  chan func()
	logger *slog.Logger

	// workers tracks worker goroutines; pending tracks accepted tasks.
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Config holds the size of a worker pool.
type Config struct {
	// Workers is the number of concurrent workers. Zero or negative means 1.
	Workers int

	// QueueSize is how many tasks may wait for a worker. Zero or negative
	// means no waiting room beyond the workers themselves.
	QueueSize int
}

// New starts a worker pool.
func New(cfg Config, logger *slog.Logger) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.Workers,
			"default_count", 1)
		workers = 1
	}
	size := max(cfg.QueueSize, 0)

	p := &Pool{
		tasks:  make(chan func(), size),
		logger: logger,
	}
	for i := range workers {
		p.workers.Go(func() {
			p.work(i)
		})
	}
	logger.Info("worker pool started", "workers", workers, "queue_size", size)
	return p
}

func (p *Pool) work(id int) {
	for task := range p.tasks {
		runTask(p.logger.With("worker_id", id), task)
		p.pending.Done()
	}
}

// Schedule queues task without blocking. It returns ErrQueueFull when
// every worker is busy and the queue has no room.
func (p *Pool) Schedule(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return nil
	default:
		p.pending.Done()
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(p.tasks))
	}
}

// Wait blocks until every accepted task has finished.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Close stops accepting tasks, drains the queue and stops the workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.workers.Wait()
	p.logger.Info("worker pool stopped")
}
