package loader

import (
	"context"
	"time"

	"github.com/GriffinCanCode/assetcatalog/internal/host"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/id"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// Request is one host load. Every caller that asks for the same content id
// while it is in flight gets the same Request.
type Request struct {
	id        id.RequestID
	contentID types.ContentID
	container string
	issuedAt  time.Time
	done      chan struct{}

	// Written once before done is closed
	obj        host.Object
	err        error
	finishedAt time.Time
}

func newRequest(contentID types.ContentID, container string) *Request {
	return &Request{
		id:        id.NewRequestID(),
		contentID: contentID,
		container: container,
		issuedAt:  time.Now(),
		done:      make(chan struct{}),
	}
}

func (r *Request) ID() id.RequestID           { return r.id }
func (r *Request) ContentID() types.ContentID { return r.contentID }
func (r *Request) Container() string          { return r.container }
func (r *Request) IssuedAt() time.Time        { return r.issuedAt }

// Done is closed once the load finished and the cache entry was updated.
func (r *Request) Done() <-chan struct{} { return r.done }

// IsDone reports whether the load finished.
func (r *Request) IsDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the load finishes and returns its error. A finished
// request returns immediately without selecting on ctx.
func (r *Request) Wait(ctx context.Context) error {
	if r.IsDone() {
		return r.err
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the load error of a finished request.
func (r *Request) Err() error {
	if !r.IsDone() {
		return nil
	}
	return r.err
}

// Duration returns how long the load took, or zero while it is pending.
func (r *Request) Duration() time.Duration {
	if !r.IsDone() {
		return 0
	}
	return r.finishedAt.Sub(r.issuedAt)
}

func (r *Request) result() host.Object {
	return r.obj
}

func (r *Request) complete(obj host.Object, err error) {
	r.obj = obj
	r.err = err
	r.finishedAt = time.Now()
	close(r.done)
}
