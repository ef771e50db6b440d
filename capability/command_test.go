package capability

import (
	"context"
	"testing"
	"time"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/loader"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestSpawnAndWaitThroughHandles(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	br := bridge.NewBlockBridge(5 * time.Second)
	defer br.Close()
	ldr := loader.New(ctx, loader.MapSource{"tool": emptyModule}, br)
	defer ldr.Close(ctx)
	h := NewCommandHost(reg, ldr)

	cmd, err := h.Spawn(ctx, "tool", []string{"--version"}, nil, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	code, done, err := h.MethodCommandPoll(ctx, cmd)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !done || code != 0 {
		t.Errorf("expected finished block-mode command, got done=%v code=%d", done, code)
	}
	res, err := h.MethodCommandWait(ctx, cmd)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}

	h.ResourceDropCommand(ctx, cmd)
	if _, _, err := h.MethodCommandPoll(ctx, cmd); err == nil {
		t.Error("expected dropped handle rejected")
	}
}

func TestSpawnUnknownThroughHandles(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	br := bridge.NewBlockBridge(time.Second)
	defer br.Close()
	ldr := loader.New(ctx, loader.MapSource{}, br)
	defer ldr.Close(ctx)
	h := NewCommandHost(reg, ldr)

	cmd, err := h.Spawn(ctx, "ghost", nil, nil, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	res, err := h.MethodCommandTryWait(ctx, cmd)
	if err != nil {
		t.Fatalf("try-wait: %v", err)
	}
	if res == nil || res.ExitCode != loader.ExitNoSuchCommand {
		t.Errorf("expected 127 result, got %+v", res)
	}
}

func TestCommandSubscribeSuspendMode(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	br := bridge.NewSuspendBridge(bridge.NewWildcardMatcher([]string{"*"}))
	defer br.Close()
	ldr := loader.New(ctx, loader.MapSource{"tool": emptyModule}, br)
	defer ldr.Close(ctx)
	h := NewCommandHost(reg, ldr)
	poll := NewPollHost(reg)

	cmd, err := h.Spawn(ctx, "tool", nil, nil, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, done, err := h.MethodCommandPoll(ctx, cmd); err != nil || done {
		t.Errorf("expected pending command before the pump runs, got done=%v err=%v", done, err)
	}
	p, err := h.MethodCommandSubscribe(ctx, cmd)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	poll.MethodPollableBlock(ctx, p)
	res, err := h.MethodCommandTryWait(ctx, cmd)
	if err != nil {
		t.Fatalf("try-wait after block: %v", err)
	}
	if res == nil || res.ExitCode != 0 {
		t.Errorf("expected exit 0 after block, got %+v", res)
	}
}

func TestGetModuleThroughHandles(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	br := bridge.NewBlockBridge(time.Second)
	defer br.Close()
	ldr := loader.New(ctx, loader.MapSource{"tool": emptyModule}, br)
	defer ldr.Close(ctx)
	h := NewCommandHost(reg, ldr)

	mod, err := h.GetModule(ctx, "tool")
	if err != nil {
		t.Fatalf("get-module: %v", err)
	}
	v, err := reg.GetTyped(registry.Handle(mod), registry.TypeModule)
	if err != nil {
		t.Fatalf("expected a module handle, got %v", err)
	}
	if v == nil {
		t.Fatal("expected a compiled module behind the handle")
	}
	if names := ldr.Loaded(); len(names) != 1 || names[0] != "tool" {
		t.Errorf("expected loaded [tool], got %v", names)
	}

	other, err := h.GetModule(ctx, "tool")
	if err != nil {
		t.Fatalf("get-module again: %v", err)
	}
	if other == mod {
		t.Error("expected distinct handles over the cached compilation")
	}

	h.ResourceDropModule(ctx, mod)
	if _, err := reg.GetTyped(registry.Handle(mod), registry.TypeModule); err == nil {
		t.Error("expected dropped module handle rejected")
	}
	if _, err := reg.GetTyped(registry.Handle(other), registry.TypeModule); err != nil {
		t.Errorf("expected the second handle to survive the drop, got %v", err)
	}

	if _, err := h.GetModule(ctx, "ghost"); err == nil {
		t.Error("expected unknown module name rejected")
	}
}

func TestCommandCancelThroughHandles(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	br := bridge.NewBlockBridge(time.Second)
	defer br.Close()
	ldr := loader.New(ctx, loader.MapSource{"tool": emptyModule}, br)
	defer ldr.Close(ctx)
	h := NewCommandHost(reg, ldr)

	cmd, err := h.Spawn(ctx, "tool", nil, nil, nil)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := h.MethodCommandCancel(ctx, cmd); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, done, err := h.MethodCommandPoll(ctx, cmd); err != nil || done {
		t.Errorf("expected canceled handle to stop reporting, got done=%v err=%v", done, err)
	}
	h.ResourceDropCommand(ctx, cmd)
}
