package invoke

import (
	"context"
	"fmt"
)

// Deferred is a computation that settles later. A handler whose declared
// result implements Deferred is treated as asynchronous.
type Deferred interface {
	// Done is closed once the computation has settled.
	Done() <-chan struct{}
	// Err returns the failure of a settled computation.
	Err() error
}

// ValueDeferred is a Deferred that carries a payload once settled.
type ValueDeferred interface {
	Deferred
	// Value returns the payload of a successfully settled computation.
	Value() any
}

// Completion is a bare completion signal with no payload.
type Completion struct {
	done chan struct{}
	err  error
}

// GoErr runs fn on its own goroutine and returns a Completion that settles
// with fn's error. A panic in fn settles the Completion with an error.
func GoErr(fn func() error) *Completion {
	c := &Completion{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		defer func() {
			if r := recover(); r != nil {
				c.err = fmt.Errorf("invoke: deferred work panicked: %v", r)
			}
		}()
		c.err = fn()
	}()

	return c
}

// Done implements Deferred.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err implements Deferred. It is only meaningful after Done is closed.
func (c *Completion) Err() error { return c.err }

// Await blocks until the Completion settles or ctx ends.
func (c *Completion) Await(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task is a deferred computation producing a T.
type Task[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn on its own goroutine and returns a Task that settles with its
// result. A panic in fn settles the Task with an error.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("invoke: deferred work panicked: %v", r)
			}
		}()
		t.val, t.err = fn()
	}()

	return t
}

// Resolved returns an already settled Task holding v.
func Resolved[T any](v T) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), val: v}
	close(t.done)

	return t
}

// Failed returns an already settled Task holding err.
func Failed[T any](err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{}), err: err}
	close(t.done)

	return t
}

// Done implements Deferred.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Err implements Deferred. It is only meaningful after Done is closed.
func (t *Task[T]) Err() error { return t.err }

// Value implements ValueDeferred.
func (t *Task[T]) Value() any { return t.val }

// Result returns the typed payload. It is only meaningful after Done is closed.
func (t *Task[T]) Result() T { return t.val }

// Await blocks until the Task settles or ctx ends.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.val, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// then settles a new Task from d once d settles, mapping its outcome with fn.
func then[T any](d Deferred, fn func() (T, error)) *Task[T] {
	select {
	case <-d.Done():
		v, err := fn()
		if err != nil {
			return Failed[T](err)
		}

		return Resolved(v)
	default:
	}

	return Go(func() (T, error) {
		<-d.Done()
		return fn()
	})
}
