package bridge

import (
	"context"
	"sync"
)

// SuspendBridge services blocking calls cooperatively: the guest runs on
// a single logical thread, an enrolled call that observes pending work
// suspends at the await point, and the loop runs queued tasks until the
// awaited future settles. Pending microtasks always drain before the
// guest resumes, so side effects that must be visible on resumption are
// scheduled as real asynchronous work, never synchronous closures.
type SuspendBridge struct {
	enrolled Matcher

	mu     sync.Mutex
	tasks  []func()
	micro  []func()
	wake   chan struct{}
	closed bool
}

// NewSuspendBridge creates a suspend-mode bridge. Only functions the
// matcher enrolls may suspend; everything else must complete
// synchronously or fail with a ProtocolViolationError.
func NewSuspendBridge(enrolled Matcher) *SuspendBridge {
	if enrolled == nil {
		enrolled = NewExactMatcher(nil)
	}
	return &SuspendBridge{
		enrolled: enrolled,
		wake:     make(chan struct{}, 1),
	}
}

// Mode returns ModeSuspend.
func (b *SuspendBridge) Mode() Mode { return ModeSuspend }

// Schedule queues fn as a macrotask. Safe from any goroutine; the task
// runs the next time the loop is pumped by an await.
func (b *SuspendBridge) Schedule(fn func()) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.tasks = append(b.tasks, fn)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Microtask queues fn to run before the guest next resumes.
func (b *SuspendBridge) Microtask(fn func()) {
	b.mu.Lock()
	if !b.closed {
		b.micro = append(b.micro, fn)
	}
	b.mu.Unlock()
}

// Go starts op as a macrotask and returns its future immediately.
func (b *SuspendBridge) Go(op Op) *Future {
	f := NewFuture()
	b.Schedule(func() {
		op(func(v any, err error) {
			if err != nil {
				f.Fail(err)
				return
			}
			f.Resolve(v)
		})
	})
	return f
}

// Await pumps the loop until f settles, then drains microtasks and
// returns the evidence value. A deadline on ctx is the only bound; when
// it expires the wait surfaces as a WouldBlockError.
func (b *SuspendBridge) Await(ctx context.Context, f *Future) (Awaited, error) {
	for {
		b.drainMicrotasks()

		if v, err, ok := f.TryGet(); ok {
			// Microtasks queued by the completion run before resumption.
			b.drainMicrotasks()
			return Awaited{value: v, err: err, from: f}, nil
		}

		b.mu.Lock()
		closed := b.closed
		var task func()
		if len(b.tasks) > 0 {
			task = b.tasks[0]
			b.tasks = b.tasks[1:]
		}
		b.mu.Unlock()

		if closed {
			return Awaited{}, ErrShutdown
		}
		if task != nil {
			task()
			continue
		}

		// Loop is idle: wait for external completion or new work.
		select {
		case <-f.Done():
		case <-b.wake:
		case <-ctx.Done():
			return Awaited{}, &WouldBlockError{Op: "await"}
		}
	}
}

// Invoke runs a capability function. The op body executes inline on the
// guest's logical thread; if it completes synchronously the result is
// returned directly. A pending result from an unenrolled function is the
// latent-hang bug class, converted here into a typed failure.
func (b *SuspendBridge) Invoke(ctx context.Context, namespace, name string, op Op) (any, error) {
	f := NewFuture()
	op(func(v any, err error) {
		if err != nil {
			f.Fail(err)
			return
		}
		f.Resolve(v)
	})

	if v, err, ok := f.TryGet(); ok {
		return v, err
	}

	if !b.enrolled.Match(namespace, name) {
		return nil, &ProtocolViolationError{
			Namespace: namespace,
			Name:      name,
			Detail:    "pending result outside an enrolled suspension point",
		}
	}

	aw, err := b.Await(ctx, f)
	if err != nil {
		return nil, err
	}
	if !aw.of(f) {
		return nil, &ProtocolViolationError{
			Namespace: namespace,
			Name:      name,
			Detail:    "await evidence does not match the pending future",
		}
	}
	return aw.Value(), aw.Err()
}

// Pump drains queued tasks and microtasks. Non-blocking checks of a
// future route through here so the task that settles it actually runs.
func (b *SuspendBridge) Pump() {
	b.RunUntilIdle()
}

// RunUntilIdle pumps queued tasks and microtasks until both queues are
// empty. Used at teardown and by tests that drive the loop directly.
func (b *SuspendBridge) RunUntilIdle() {
	for {
		b.drainMicrotasks()
		b.mu.Lock()
		var task func()
		if len(b.tasks) > 0 {
			task = b.tasks[0]
			b.tasks = b.tasks[1:]
		}
		b.mu.Unlock()
		if task == nil {
			return
		}
		task()
	}
}

// Close discards queued work and rejects further scheduling.
func (b *SuspendBridge) Close() error {
	b.mu.Lock()
	b.closed = true
	b.tasks = nil
	b.micro = nil
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *SuspendBridge) drainMicrotasks() {
	for {
		b.mu.Lock()
		if len(b.micro) == 0 {
			b.mu.Unlock()
			return
		}
		fn := b.micro[0]
		b.micro = b.micro[1:]
		b.mu.Unlock()
		fn()
	}
}
