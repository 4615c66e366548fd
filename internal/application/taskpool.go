package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// TaskPool runs fire-and-forget background tasks with bounded concurrency.
// Tasks run under the pool's own context, never the submitter's, so a task
// outlives the request that scheduled it. Shutdown drains the pool.
type TaskPool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewTaskPool creates a pool running at most limit tasks at once.
func NewTaskPool(limit int) *TaskPool {
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskPool{
		sem:    semaphore.NewWeighted(int64(limit)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules fn and returns immediately. It reports false when the pool is
// shutting down and the task was not accepted. An accepted task always runs
// exactly once, with a canceled context if the shutdown grace has expired.
func (p *TaskPool) Go(name string, fn func(ctx context.Context)) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		slog.Warn("task rejected, pool is shutting down", "task", name)
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		// Acquire cannot fail with a background context.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				slog.Error("task panicked", "task", name, "panic", r)
			}
		}()

		fn(p.ctx)
	}()

	return true
}

// Wait blocks until every accepted task has finished.
func (p *TaskPool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones until ctx is done.
// Tasks still running at that point have their context canceled and are
// waited for once more before Shutdown returns.
func (p *TaskPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
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
		return fmt.Errorf("task pool shutdown: %w", ctx.Err())
	}
}
