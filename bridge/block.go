package bridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultWaitTimeout bounds block-mode waits when the caller's context
// carries no deadline of its own.
const DefaultWaitTimeout = 30 * time.Second

// BlockBridge services blocking calls with real threads: capability ops
// are dispatched to a privileged goroutine that performs the I/O, while
// the calling worker stalls on a semaphore until the completion callback
// signals. Ops are expected to pre-stage whatever they can so the wait
// stays short once the privileged side gets to them.
type BlockBridge struct {
	timeout time.Duration

	dispatch chan func()
	quit     chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewBlockBridge creates a block-mode bridge and starts its privileged
// dispatcher goroutine. A timeout of zero means DefaultWaitTimeout.
func NewBlockBridge(timeout time.Duration) *BlockBridge {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	b := &BlockBridge{
		timeout:  timeout,
		dispatch: make(chan func(), 64),
		quit:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *BlockBridge) run() {
	defer b.wg.Done()
	for {
		select {
		case fn := <-b.dispatch:
			fn()
		case <-b.quit:
			// Drain what was already submitted so completions still fire.
			for {
				select {
				case fn := <-b.dispatch:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Mode returns ModeBlock.
func (b *BlockBridge) Mode() Mode { return ModeBlock }

func (b *BlockBridge) submit(fn func()) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.mu.Unlock()
	select {
	case b.dispatch <- fn:
		return true
	case <-b.quit:
		return false
	}
}

// Go dispatches op to the privileged goroutine and returns its future
// immediately.
func (b *BlockBridge) Go(op Op) *Future {
	f := NewFuture()
	ok := b.submit(func() {
		op(func(v any, err error) {
			if err != nil {
				f.Fail(err)
				return
			}
			f.Resolve(v)
		})
	})
	if !ok {
		f.Fail(ErrShutdown)
	}
	return f
}

// Invoke dispatches op to the privileged goroutine and blocks the
// calling worker on a semaphore until the completion callback releases
// it. The completion callback is the single writer of the future's
// terminal state; a racing second write loses and does not signal.
func (b *BlockBridge) Invoke(ctx context.Context, namespace, name string, op Op) (any, error) {
	f := NewFuture()
	sem := semaphore.NewWeighted(1)
	// Hold the only permit; the winning completion releases it.
	if !sem.TryAcquire(1) {
		return nil, ErrShutdown
	}

	ok := b.submit(func() {
		op(func(v any, err error) {
			var won bool
			if err != nil {
				won = f.Fail(err)
			} else {
				won = f.Resolve(v)
			}
			if won {
				sem.Release(1)
			}
		})
	})
	if !ok {
		return nil, ErrShutdown
	}

	wctx, cancel := b.waitContext(ctx)
	defer cancel()
	if err := sem.Acquire(wctx, 1); err != nil {
		return nil, &WouldBlockError{Op: namespace + "#" + name}
	}

	v, err, _ := f.TryGet()
	return v, err
}

// Pump is a no-op: the dispatcher goroutine services ops on its own.
func (b *BlockBridge) Pump() {}

// Await stalls the worker until f settles or the wait times out.
func (b *BlockBridge) Await(ctx context.Context, f *Future) (Awaited, error) {
	if v, err, ok := f.TryGet(); ok {
		return Awaited{value: v, err: err, from: f}, nil
	}

	wctx, cancel := b.waitContext(ctx)
	defer cancel()
	select {
	case <-f.Done():
		v, err, _ := f.TryGet()
		return Awaited{value: v, err: err, from: f}, nil
	case <-wctx.Done():
		return Awaited{}, &WouldBlockError{Op: "await"}
	}
}

func (b *BlockBridge) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Close stops the dispatcher after draining already-submitted ops.
func (b *BlockBridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	close(b.quit)
	b.wg.Wait()
	return nil
}
