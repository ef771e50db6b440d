package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBlockInvoke(t *testing.T) {
	b := NewBlockBridge(time.Second)
	defer b.Close()

	v, err := b.Invoke(context.Background(), "test:ns", "op", func(complete func(any, error)) {
		complete("result", nil)
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if v != "result" {
		t.Errorf("expected 'result', got %v", v)
	}
}

func TestBlockInvokeError(t *testing.T) {
	b := NewBlockBridge(time.Second)
	defer b.Close()

	want := errors.New("backend failure")
	_, err := b.Invoke(context.Background(), "test:ns", "op", func(complete func(any, error)) {
		complete(nil, want)
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestBlockInvokeTimeout(t *testing.T) {
	b := NewBlockBridge(30 * time.Millisecond)
	defer b.Close()

	_, err := b.Invoke(context.Background(), "test:ns", "stuck-op", func(complete func(any, error)) {
		// Completion deliberately delayed past the wait timeout.
		go func() {
			time.Sleep(200 * time.Millisecond)
			complete("too late", nil)
		}()
	})
	var wb *WouldBlockError
	if !errors.As(err, &wb) {
		t.Fatalf("expected WouldBlockError, got %v", err)
	}
}

func TestBlockInvokeDeferredCompletion(t *testing.T) {
	b := NewBlockBridge(time.Second)
	defer b.Close()

	v, err := b.Invoke(context.Background(), "test:ns", "op", func(complete func(any, error)) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			complete(99, nil)
		}()
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if v != 99 {
		t.Errorf("expected 99, got %v", v)
	}
}

func TestBlockInvokeFirstWriterWins(t *testing.T) {
	b := NewBlockBridge(time.Second)
	defer b.Close()

	for i := 0; i < 20; i++ {
		v, err := b.Invoke(context.Background(), "test:ns", "op", func(complete func(any, error)) {
			go complete("winner", nil)
			go complete(nil, errors.New("loser"))
		})
		// Either side may win, but exactly one terminal state holds.
		if err == nil && v != "winner" {
			t.Fatalf("unexpected value %v", v)
		}
		if err != nil && err.Error() != "loser" {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func TestBlockGoAndAwait(t *testing.T) {
	b := NewBlockBridge(time.Second)
	defer b.Close()

	f := b.Go(func(complete func(any, error)) {
		complete("async", nil)
	})
	aw, err := b.Await(context.Background(), f)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if aw.Value() != "async" {
		t.Errorf("expected 'async', got %v", aw.Value())
	}
}

func TestBlockAwaitTimeout(t *testing.T) {
	b := NewBlockBridge(20 * time.Millisecond)
	defer b.Close()

	_, err := b.Await(context.Background(), NewFuture())
	var wb *WouldBlockError
	if !errors.As(err, &wb) {
		t.Fatalf("expected WouldBlockError, got %v", err)
	}
}

func TestBlockCloseRejectsWork(t *testing.T) {
	b := NewBlockBridge(time.Second)
	b.Close()

	f := b.Go(func(complete func(any, error)) { complete(1, nil) })
	_, err, ok := f.TryGet()
	if !ok || !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown on Go after close, got %v (settled=%v)", err, ok)
	}

	if _, err := b.Invoke(context.Background(), "ns", "op", func(complete func(any, error)) {}); !errors.Is(err, ErrShutdown) {
		t.Fatalf("expected ErrShutdown on Invoke after close, got %v", err)
	}
}
