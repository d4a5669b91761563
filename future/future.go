// Package future provides a settle-once result container used to unify plain
// values and pending asynchronous work behind one completion path.
package future

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/reglet-dev/reglet-interop/domain/errors"
)

// Pending is implemented by values that settle later. Entry points may return
// any Pending; the dispatcher awaits it out of line.
type Pending interface {
	// Outcome blocks until the work settles or ctx is done.
	Outcome(ctx context.Context) (any, error)
}

// Future holds the eventual outcome of a unit of work. The first Settle wins;
// later calls are ignored.
type Future[T any] struct {
	value T
	err   error
	done  chan struct{}
	once  sync.Once
}

// New creates an unsettled future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved creates a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Settle(v, nil)
	return f
}

// Failed creates a future already settled with err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	var zero T
	f.Settle(zero, err)
	return f
}

// Go runs fn on a new goroutine and settles the future with its outcome.
// A panic in fn settles the future with an *errors.PanicError.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.Settle(zero, &errors.PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		f.Settle(fn())
	}()
	return f
}

// Settle records the outcome. It reports whether this call settled the future.
func (f *Future[T]) Settle(v T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has an outcome.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Outcome implements Pending.
func (f *Future[T]) Outcome(ctx context.Context) (any, error) {
	return f.Await(ctx)
}

// Then calls fn with the outcome once the future settles, on its own goroutine.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}

// FromPending adapts any Pending into a Future that settles when p does.
// A plain Future[any] is returned unchanged.
func FromPending(ctx context.Context, p Pending) *Future[any] {
	if f, ok := p.(*Future[any]); ok {
		return f
	}
	return Go(func() (any, error) {
		return p.Outcome(ctx)
	})
}
