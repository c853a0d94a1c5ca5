// Package schedule runs cancellable repeating tasks.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Task calls fn every interval until stopped. Start and Stop are idempotent:
// starting a running task or stopping an idle one is a no-op.
type Task struct {
	interval time.Duration
	fn       func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask creates an idle task
func NewTask(interval time.Duration, fn func(ctx context.Context)) *Task {
	return &Task{interval: interval, fn: fn}
}

// Start begins ticking. The first call to fn happens one interval after Start.
// Cancelling ctx stops the task the same way Stop does.
func (t *Task) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		select {
		case <-t.done:
			// parent context ended the previous run
			t.cancel()
		default:
			return
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(runCtx, done)
}

func (t *Task) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A tick racing with Stop must not fire after cancellation
			if ctx.Err() != nil {
				return
			}
			t.fn(ctx)
		}
	}
}

// Stop cancels the task without waiting for an in-flight call to return
func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	t.done = nil
}

// Running reports whether the task has been started and not stopped.
// A task whose parent context was cancelled reports false.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
