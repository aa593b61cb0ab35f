// Package worker runs background imports on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zulandar/testyard/internal/apperr"
)

// ErrPoolFull is returned by Submit when the queue is saturated.
var ErrPoolFull = fmt.Errorf("worker: queue full: %w", apperr.ErrUnavailable)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = fmt.Errorf("worker: pool closed: %w", apperr.ErrUnavailable)

// Task is a unit of background work. The context is detached from the
// request that submitted the task and is cancelled only when Shutdown
// gives up waiting.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool is a fixed set of workers draining a bounded queue.
type Pool struct {
	queue  chan Task
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts size workers over a queue holding up to queue pending tasks.
func New(size, queue int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queue),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range size {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "worker", id, "task", task.Name, "panic", r)
		}
	}()
	if err := task.Run(p.ctx); err != nil {
		p.logger.Warn("task failed", "worker", id, "task", task.Name, "error", err)
		return
	}
	p.logger.Debug("task done", "worker", id, "task", task.Name)
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return errors.New("worker: task has no Run func")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish. When
// ctx expires first the running tasks are cancelled and ctx.Err() returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
