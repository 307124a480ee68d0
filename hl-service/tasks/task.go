package tasks

import (
	"context"
	"fmt"
	"sync"
)

// Task is a unit of background work with a joinable result.
// The task owns a cancellation capability: Cancel closes the context passed to the work function.
type Task[T any] struct {
	name   string
	cancel context.CancelFunc

	done chan struct{}
	val  T
	err  error

	once sync.Once
}

// Go starts fn in a new goroutine. The returned task must be joined with Await,
// or released with Cancel, by its owner.
func Go[T any](ctx context.Context, name string, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task %q panicked: %v", name, r)
			}
		}()
		t.val, t.err = fn(ctx)
	}()
	return t
}

func (t *Task[T]) Name() string {
	return t.name
}

// Done is closed once the work function has returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Await blocks until the task completes or ctx is done.
// Leaving Await early does not cancel the task.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-t.done:
		t.once.Do(t.cancel)
		if t.err != nil {
			return t.val, fmt.Errorf("task %q: %w", t.name, t.err)
		}
		return t.val, nil
	}
}

// Cancel signals the task to stop, and does not wait for it.
func (t *Task[T]) Cancel() {
	t.once.Do(t.cancel)
}
