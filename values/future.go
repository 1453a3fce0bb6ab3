package values

import (
	"context"
	"sync"
)

// Future is the host-side asynchronous result bridged to script thenables.
// It settles at most once; later Complete/Fail calls are ignored.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	value   any
	err     error
	settled bool
}

// NewFuture creates an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete settles the future with a value. Returns false if already settled.
func (f *Future) Complete(v any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.value = v
	f.settled = true
	close(f.done)
	return true
}

// Fail settles the future with an error. Returns false if already settled.
func (f *Future) Fail(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.err = err
	f.settled = true
	close(f.done)
	return true
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has completed or failed.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the settled value or error. It does not block; calling it
// before the future settles returns (nil, false).
func (f *Future) Result() (any, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, nil, false
	}
	return f.value, f.err, true
}

// Await blocks until the future settles or ctx is done. The settlement is
// driven by the bridge's microtask drain, not by a background goroutine, so
// callers awaiting from the engine's own thread must drain first.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
