package capability

import (
	"context"
	"testing"
	"time"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

func TestPollReportsReadyIndices(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	h := NewPollHost(reg)

	ready := uint32(reg.Register(registry.TypePollable, NewReadyPollable()))
	f := bridge.NewFuture()
	br := bridge.NewBlockBridge(time.Second)
	defer br.Close()
	pending := uint32(reg.Register(registry.TypePollable, NewFuturePollable(br, f)))

	got := h.Poll(ctx, []uint32{pending, ready})
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("expected only index 1 ready, got %v", got)
	}

	f.Resolve("done")
	got = h.Poll(ctx, []uint32{pending, ready})
	if len(got) != 2 {
		t.Errorf("expected both ready after resolve, got %v", got)
	}

	if !h.MethodPollableReady(ctx, ready) {
		t.Error("expected ready pollable")
	}
	if h.MethodPollableReady(ctx, 9999) {
		t.Error("expected unknown handle to read not-ready")
	}

	h.ResourceDropPollable(ctx, ready)
	if got := h.Poll(ctx, []uint32{ready}); len(got) != 0 {
		t.Errorf("expected dropped pollable skipped, got %v", got)
	}
}

func TestDeadlinePollable(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	clock := NewClockHost(reg)
	poll := NewPollHost(reg)

	p := clock.SubscribeDuration(ctx, uint64(20*time.Millisecond))
	if poll.MethodPollableReady(ctx, p) {
		t.Error("expected deadline pollable pending at birth")
	}
	start := time.Now()
	poll.MethodPollableBlock(ctx, p)
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("expected block to wait for the deadline, returned after %v", elapsed)
	}
	if !poll.MethodPollableReady(ctx, p) {
		t.Error("expected ready after deadline")
	}
}

func TestMonotonicClock(t *testing.T) {
	ctx := context.Background()
	clock := NewClockHost(registry.New())
	a := clock.Now(ctx)
	b := clock.Now(ctx)
	if b < a {
		t.Errorf("clock went backwards: %d then %d", a, b)
	}
	if clock.Resolution(ctx) == 0 {
		t.Error("expected nonzero resolution")
	}
}
