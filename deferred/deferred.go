// Package deferred provides one-shot resolve/reject pairs, the host-side
// building block behind asynchronous capabilities such as the dynamic loader.
package deferred

import (
	"context"
	"errors"
	"sync"
)

// ErrRejected is the error a Deferred settles with when rejected with nil.
var ErrRejected = errors.New("deferred rejected")

// Pending is the read side of a Deferred: a value that settles exactly once.
type Pending[T any] struct {
	d *Deferred[T]
}

// Deferred is a resolve/reject pair. The first settle wins.
type Deferred[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// New returns an unsettled Deferred.
func New[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Factory is the default deferred factory handed to the OS module.
func Factory() *Deferred[any] {
	return New[any]()
}

// Rejected returns a Pending that has already failed with err.
func Rejected[T any](err error) Pending[T] {
	d := New[T]()
	d.Reject(err)
	return d.Pending()
}

// Resolved returns a Pending that has already succeeded with v.
func Resolved[T any](v T) Pending[T] {
	d := New[T]()
	d.Resolve(v)
	return d.Pending()
}

// Resolve settles the deferred with v. It reports whether this call settled it.
func (d *Deferred[T]) Resolve(v T) bool {
	return d.settle(v, nil)
}

// Reject settles the deferred with err. It reports whether this call settled
// it. A nil err rejects with ErrRejected.
func (d *Deferred[T]) Reject(err error) bool {
	if err == nil {
		err = ErrRejected
	}
	var zero T
	return d.settle(zero, err)
}

func (d *Deferred[T]) settle(v T, err error) bool {
	settled := false
	d.once.Do(func() {
		d.value = v
		d.err = err
		settled = true
		close(d.done)
	})
	return settled
}

// Pending returns the read side of d.
func (d *Deferred[T]) Pending() Pending[T] {
	return Pending[T]{d: d}
}

// Done is closed once the value settles.
func (p Pending[T]) Done() <-chan struct{} {
	return p.d.done
}

// Settled reports whether the value has been resolved or rejected.
func (p Pending[T]) Settled() bool {
	select {
	case <-p.d.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the value settles or ctx is done.
func (p Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.d.done:
		return p.d.value, p.d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled value without blocking. ok is false while the
// value is still pending.
func (p Pending[T]) Result() (v T, ok bool, err error) {
	if !p.Settled() {
		return v, false, nil
	}
	return p.d.value, true, p.d.err
}
