package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotDone is returned by Result before the operation completes.
var ErrNotDone = errors.New("operation not done")

// Operation is a host load in flight. It completes exactly once.
type Operation struct {
	done chan struct{}
	once sync.Once
	obj  Object
	err  error
}

// NewOperation returns an operation that completes on Complete.
func NewOperation() *Operation {
	return &Operation{done: make(chan struct{})}
}

// Completed returns an operation that is already done.
func Completed(obj Object, err error) *Operation {
	op := NewOperation()
	op.Complete(obj, err)
	return op
}

// Go runs fn on a new goroutine and completes the operation with its result.
// A panic in fn completes the operation with an ErrPanic error.
func Go(ctx context.Context, fn func(context.Context) (Object, error)) *Operation {
	op := NewOperation()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				op.Complete(nil, fmt.Errorf("%w: %v", ErrPanic, p))
			}
		}()
		op.Complete(fn(ctx))
	}()
	return op
}

// Complete sets the result. It reports false if the operation was already
// complete, in which case the call has no effect.
func (o *Operation) Complete(obj Object, err error) bool {
	completed := false
	o.once.Do(func() {
		o.obj = obj
		o.err = err
		close(o.done)
		completed = true
	})
	return completed
}

// Done returns a channel closed on completion.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// IsDone reports whether the operation completed.
func (o *Operation) IsDone() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Wait blocks until completion or ctx is done. A completed operation returns
// without selecting on ctx.
func (o *Operation) Wait(ctx context.Context) (Object, error) {
	if o.IsDone() {
		return o.obj, o.err
	}
	select {
	case <-o.done:
		return o.obj, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking.
func (o *Operation) Result() (Object, error) {
	if !o.IsDone() {
		return nil, ErrNotDone
	}
	return o.obj, o.err
}
