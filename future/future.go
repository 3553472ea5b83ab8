// Package future provides the pending-result primitive returned by connection
// handles. A Future is completed exactly once; callers observe the outcome either
// by blocking (Wait) or by registering a continuation (Then). Both views read the
// same completion, so request logic is never duplicated between sync and async paths.
package future

import (
	"context"
	"sync"
)

// Future is a single-assignment (value, error) pair.
// The zero value is NOT ready to use. Construct with New or Resolved.
type Future[T any] struct {
	mu   sync.Mutex
	done chan struct{}
	val  T
	err  error
	cbs  []func(T, error)
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns an already completed future.
func Resolved[T any](v T, err error) *Future[T] {
	f := New[T]()
	f.Complete(v, err)
	return f
}

// Complete stores the outcome and runs registered continuations on the calling
// goroutine. Only the first call wins; it reports whether this call completed f.
func (f *Future[T]) Complete(v T, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.val, f.err = v, err
	cbs := f.cbs
	f.cbs = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

// Done is closed once the future has been completed.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until completion or until ctx ends. A ctx error does not cancel
// the underlying request.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers cb to run exactly once with the outcome. If f is already
// complete, cb runs immediately on the caller's goroutine; otherwise it runs on
// whichever goroutine completes f.
func (f *Future[T]) Then(cb func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		cb(f.val, f.err)
		return
	default:
	}
	f.cbs = append(f.cbs, cb)
	f.mu.Unlock()
}

// Map derives a future whose value is fn applied to f's value.
// fn is skipped when f fails; the error passes through with U's zero value.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.Then(func(v T, err error) {
		if err != nil {
			var zero U
			out.Complete(zero, err)
			return
		}
		out.Complete(fn(v))
	})
	return out
}
