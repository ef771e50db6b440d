package bridge

import (
	"context"
	"fmt"
)

// Mode selects how blocking guest calls are serviced. It is fixed once
// per host instance; the two modes are never mixed.
type Mode uint8

const (
	// ModeSuspend models a host that can pause and resume the guest
	// stack: blocking calls are serviced by a cooperative loop.
	ModeSuspend Mode = iota
	// ModeBlock models a host where the guest runs on a dedicated
	// worker that stalls on a synchronous wait primitive while a
	// privileged dispatcher performs the real I/O.
	ModeBlock
)

func (m Mode) String() string {
	switch m {
	case ModeSuspend:
		return "suspend"
	case ModeBlock:
		return "block"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Op is one unit of asynchronous host work. Implementations call
// complete exactly once with the result or the failure; the bridge
// guards against later writers.
type Op func(complete func(value any, err error))

// Bridge abstracts the per-mode scheduling model. Every capability
// component blocks through a Bridge rather than directly on the
// underlying primitive, which keeps error codes host-agnostic.
type Bridge interface {
	// Mode reports the scheduling model, fixed at construction.
	Mode() Mode

	// Go starts op asynchronously and returns its Future immediately.
	Go(op Op) *Future

	// Await blocks the calling context until f settles and returns the
	// evidence value. In suspend mode this pumps the cooperative loop;
	// in block mode it stalls the worker on the wait primitive.
	Await(ctx context.Context, f *Future) (Awaited, error)

	// Invoke runs an enrolled capability function. Suspend mode rejects
	// a pending result from a function that is not on the enrollment
	// list with a ProtocolViolationError instead of hanging.
	Invoke(ctx context.Context, namespace, name string, op Op) (any, error)

	// Pump services queued work without waiting for more to arrive.
	// In suspend mode nothing else runs the loop, so any non-blocking
	// check of a future must pump first or the backing task is never
	// serviced. In block mode completions arrive from the dispatcher
	// and Pump is a no-op.
	Pump()

	// Close stops the bridge. Pending futures fail with ErrShutdown.
	Close() error
}

// WouldBlockError is the generic timeout/would-block failure. It is the
// only way a bounded wait surfaces; timeouts are never silently dropped.
type WouldBlockError struct {
	Op string
}

func (e *WouldBlockError) Error() string {
	if e.Op == "" {
		return "bridge: operation would block"
	}
	return "bridge: " + e.Op + " would block"
}

// Is matches any WouldBlockError.
func (e *WouldBlockError) Is(target error) bool {
	_, ok := target.(*WouldBlockError)
	return ok
}

// ProtocolViolationError reports a capability function that broke the
// execution-mode contract: it observed pending work but was not
// enrolled as a suspension point, or it returned a cached value without
// genuinely awaiting. Surfaced as a typed failure, never corruption.
type ProtocolViolationError struct {
	Namespace string
	Name      string
	Detail    string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("bridge: protocol violation in %s#%s: %s", e.Namespace, e.Name, e.Detail)
}

// Is matches any ProtocolViolationError.
func (e *ProtocolViolationError) Is(target error) bool {
	_, ok := target.(*ProtocolViolationError)
	return ok
}

// ErrShutdown is returned for operations submitted after Close.
var ErrShutdown = fmt.Errorf("bridge: shut down")
