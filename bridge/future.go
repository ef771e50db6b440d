package bridge

import (
	"context"
	"sync"
)

// Future is a single-resolution container for a pending operation's
// eventual result or error. Whichever completion path fires first wins;
// the signal fires exactly once. A Future tolerates any number of
// non-blocking polls before completion.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	value   any
	err     error
	settled bool
}

// NewFuture creates an unresolved future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with a value. Returns false if the future
// was already settled; the earlier write stands.
func (f *Future) Resolve(value any) bool {
	return f.settle(value, nil)
}

// Fail settles the future with an error. Returns false if the future
// was already settled.
func (f *Future) Fail(err error) bool {
	return f.settle(nil, err)
}

func (f *Future) settle(value any, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.value = value
	f.err = err
	f.settled = true
	f.mu.Unlock()
	close(f.done)
	return true
}

// Ready reports whether the future has settled.
func (f *Future) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// TryGet returns the terminal state without blocking. ok is false while
// the future is still pending.
func (f *Future) TryGet() (value any, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, nil, false
	}
	return f.value, f.err, true
}

// Done returns a channel closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Block waits until the future settles or ctx expires. It satisfies the
// pollable contract used by the capability poll surface.
func (f *Future) Block(ctx context.Context) {
	select {
	case <-f.done:
	case <-ctx.Done():
	}
}

// Awaited is evidence that pending work was genuinely awaited: only
// Bridge.Await produces one. An enrolled capability function returns
// the Awaited it received, which is what makes "returned a cached field
// without awaiting" detectable at the API boundary rather than by
// review discipline.
type Awaited struct {
	value any
	err   error
	from  *Future
}

// Value returns the awaited result.
func (a Awaited) Value() any { return a.value }

// Err returns the awaited failure, if any.
func (a Awaited) Err() error { return a.err }

// of reports whether this evidence came from f.
func (a Awaited) of(f *Future) bool { return a.from == f }
