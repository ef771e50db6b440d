package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSuspendInvokeSynchronousResult(t *testing.T) {
	b := NewSuspendBridge(NewExactMatcher(nil))
	defer b.Close()

	v, err := b.Invoke(context.Background(), "test:ns", "sync-op", func(complete func(any, error)) {
		complete(42, nil)
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %v", v)
	}
}

func TestSuspendInvokeEnrolledAwaits(t *testing.T) {
	b := NewSuspendBridge(NewExactMatcher([]string{"test:ns#slow-op"}))
	defer b.Close()

	v, err := b.Invoke(context.Background(), "test:ns", "slow-op", func(complete func(any, error)) {
		// Completion arrives via a scheduled task, the way real async
		// work lands back on the loop.
		b.Schedule(func() {
			complete("done", nil)
		})
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if v != "done" {
		t.Errorf("expected 'done', got %v", v)
	}
}

func TestSuspendUnenrolledPendingIsViolation(t *testing.T) {
	b := NewSuspendBridge(NewExactMatcher([]string{"test:ns#other"}))
	defer b.Close()

	_, err := b.Invoke(context.Background(), "test:ns", "sneaky-op", func(complete func(any, error)) {
		b.Schedule(func() { complete("never seen", nil) })
	})

	var pv *ProtocolViolationError
	if !errors.As(err, &pv) {
		t.Fatalf("expected ProtocolViolationError, got %v", err)
	}
	if pv.Name != "sneaky-op" {
		t.Errorf("violation names wrong function: %s", pv.Name)
	}
}

func TestSuspendMicrotasksDrainBeforeResume(t *testing.T) {
	b := NewSuspendBridge(NewWildcardMatcher([]string{"*"}))
	defer b.Close()

	var order []string
	v, err := b.Invoke(context.Background(), "test:ns", "op", func(complete func(any, error)) {
		b.Schedule(func() {
			b.Microtask(func() { order = append(order, "micro") })
			complete("v", nil)
		})
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	order = append(order, "resumed")

	if v != "v" {
		t.Errorf("expected 'v', got %v", v)
	}
	if len(order) != 2 || order[0] != "micro" || order[1] != "resumed" {
		t.Errorf("microtask did not drain before resume: %v", order)
	}
}

func TestSuspendAwaitExternalCompletion(t *testing.T) {
	b := NewSuspendBridge(NewWildcardMatcher([]string{"*"}))
	defer b.Close()

	f := NewFuture()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve("external")
	}()

	aw, err := b.Await(context.Background(), f)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if aw.Value() != "external" {
		t.Errorf("expected 'external', got %v", aw.Value())
	}
}

func TestSuspendAwaitDeadlineWouldBlock(t *testing.T) {
	b := NewSuspendBridge(NewWildcardMatcher([]string{"*"}))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Await(ctx, NewFuture())
	var wb *WouldBlockError
	if !errors.As(err, &wb) {
		t.Fatalf("expected WouldBlockError, got %v", err)
	}
}

func TestSuspendGoRunsWhenPumped(t *testing.T) {
	b := NewSuspendBridge(NewWildcardMatcher([]string{"*"}))
	defer b.Close()

	f := b.Go(func(complete func(any, error)) {
		complete(7, nil)
	})
	if f.Ready() {
		t.Fatal("scheduled op ran before the loop was pumped")
	}

	aw, err := b.Await(context.Background(), f)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if aw.Value() != 7 {
		t.Errorf("expected 7, got %v", aw.Value())
	}
}

func TestSuspendRunUntilIdle(t *testing.T) {
	b := NewSuspendBridge(nil)
	defer b.Close()

	var ran int
	b.Schedule(func() { ran++ })
	b.Schedule(func() {
		ran++
		b.Microtask(func() { ran++ })
	})
	b.RunUntilIdle()
	if ran != 3 {
		t.Errorf("expected 3 tasks run, got %d", ran)
	}
}
