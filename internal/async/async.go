// Package async carries the results of operations that complete on another goroutine.
package async

import (
	"context"
	"sync"
)

// Dispatcher runs completion callbacks on a particular context, for example the goroutine that
// owns the display state.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// Immediate runs callbacks on the goroutine that completed the operation.
var Immediate Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Queue is a serial callback context. Callbacks run one at a time, in dispatch order, on the
// goroutine that calls Run.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	signal chan struct{}
}

// NewQueue returns an empty queue. Nothing runs until Run is called.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Dispatch enqueues fn. It never blocks.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Run executes queued callbacks until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		fn()
	}
}

// Future is the result of an operation that completes exactly once, either with a value or with
// an error.
type Future[T any] struct {
	dispatcher Dispatcher
	done       chan struct{}
	once       sync.Once
	value      T
	err        error
}

// NewFuture returns a pending future whose callbacks run on d.
func NewFuture[T any](d Dispatcher) *Future[T] {
	if d == nil {
		d = Immediate
	}
	return &Future[T]{dispatcher: d, done: make(chan struct{})}
}

// Failed returns a future that has already completed with err.
func Failed[T any](d Dispatcher, err error) *Future[T] {
	f := NewFuture[T](d)
	var zero T
	f.Resolve(zero, err)
	return f
}

// Resolve completes the future. Only the first call has an effect; it reports whether it did.
// On error the value is discarded.
func (f *Future[T]) Resolve(value T, err error) bool {
	resolved := false
	f.once.Do(func() {
		if err == nil {
			f.value = value
		}
		f.err = err
		resolved = true
		close(f.done)
	})
	return resolved
}

// Done is closed once the future has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future completes or ctx is done. Giving up on the wait does not cancel
// the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers a callback that is dispatched exactly once after completion.
func (f *Future[T]) OnComplete(fn func(value T, err error)) {
	go func() {
		<-f.done
		f.dispatcher.Dispatch(func() { fn(f.value, f.err) })
	}()
}
