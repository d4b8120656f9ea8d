package scheduler

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ppiankov/netshell/internal/model"
)

const (
	statePending int32 = iota
	stateRunning
	stateDone
	stateCancelled
)

// request is one unit of owner-loop work: a frontend job or a background
// intrinsic call. ctx carries both the deadline and the owning program's
// cancellation, so either one kills the request.
type request struct {
	ctx   context.Context
	exec  *Execution // nil for frontend jobs and external calls
	label string
	queue bool // intrinsic request rather than a frontend job
	fn    func(ctx context.Context)
	state atomic.Int32
	err   error
	done  chan struct{}
}

func newRequest(ctx context.Context, exec *Execution, label string, fn func(ctx context.Context)) *request {
	return &request{ctx: ctx, exec: exec, label: label, fn: fn, done: make(chan struct{})}
}

// State reports the request's lifecycle state.
func (r *request) State() int32 {
	return r.state.Load()
}

// gone maps a dead request context to the failure the waiter observes.
func (r *request) gone() error {
	err := r.ctx.Err()
	what := "request"
	if r.queue {
		what = "intrinsic request"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.Wrap(model.CodeInternalError, err, "%s: %s timed out", r.label, what)
	case r.exec != nil:
		return model.Wrap(model.CodeInternalError, err, "%s: program interrupted", r.label)
	default:
		return model.Wrap(model.CodeInternalError, err, "%s: %s cancelled", r.label, what)
	}
}

// submit posts r on ch and waits for the owner loop. A waiter that gives up
// marks the request cancelled first; if the owner already took it, the waiter
// waits for the owner to finish instead.
func submit(ch chan<- *request, r *request) error {
	select {
	case ch <- r:
	case <-r.ctx.Done():
		r.state.Store(stateCancelled)
		return r.gone()
	}
	select {
	case <-r.done:
		return r.err
	case <-r.ctx.Done():
		if r.state.CompareAndSwap(statePending, stateCancelled) {
			return r.gone()
		}
		<-r.done
		return r.err
	}
}

// serve runs r on the owner loop. Cancelled or expired requests are
// discarded without running. The execution's apply lock is held across the
// final liveness check and the effect, so an interrupt either waits for the
// effect or prevents it.
func serve(r *request) bool {
	if !r.state.CompareAndSwap(statePending, stateRunning) {
		return false
	}
	if r.exec != nil {
		r.exec.applyMu.Lock()
		defer r.exec.applyMu.Unlock()
	}
	defer close(r.done)
	if r.ctx.Err() != nil {
		r.err = r.gone()
		r.state.Store(stateCancelled)
		return false
	}
	r.fn(r.ctx)
	r.state.Store(stateDone)
	return true
}
