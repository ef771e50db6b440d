package host

import (
	"context"
	"testing"
	"time"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
)

func TestNewDefaultsToBlockMode(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, Config{WaitTimeout: time.Second, CacheSize: 16})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer h.Close(ctx)

	if h.Bridge().Mode() != bridge.ModeBlock {
		t.Errorf("expected block mode, got %v", h.Bridge().Mode())
	}
	if len(h.Capabilities()) == 0 {
		t.Fatal("expected capability hosts")
	}
	if _, ok := h.Capability("wasi:filesystem/types@0.2.0"); !ok {
		t.Error("expected filesystem namespace")
	}
	if _, ok := h.Capability("wasi:http/outgoing-handler@0.2.0"); !ok {
		t.Error("expected outgoing handler namespace")
	}
	if _, ok := h.Capability("agent:process/commands@0.1.0"); !ok {
		t.Error("expected command namespace")
	}
	if _, ok := h.Capability("nope"); ok {
		t.Error("expected lookup miss for unknown namespace")
	}
}

func TestNewSuspendMode(t *testing.T) {
	ctx := context.Background()
	h, err := New(ctx, Config{Mode: "suspend", Enrolled: []string{"*"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer h.Close(ctx)
	if h.Bridge().Mode() != bridge.ModeSuspend {
		t.Errorf("expected suspend mode, got %v", h.Bridge().Mode())
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(context.Background(), Config{Mode: "fibers"}); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, Config{WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("new a: %v", err)
	}
	defer a.Close(ctx)
	b, err := New(ctx, Config{WaitTimeout: time.Second})
	if err != nil {
		t.Fatalf("new b: %v", err)
	}
	defer b.Close(ctx)

	rootA, err := a.FS().Root(ctx)
	if err != nil {
		t.Fatalf("root a: %v", err)
	}
	if _, err := a.FS().OpenAt(ctx, rootA, "only-in-a", vfs.OpenFlags{Create: true}); err != nil {
		t.Fatalf("create: %v", err)
	}

	rootB, err := b.FS().Root(ctx)
	if err != nil {
		t.Fatalf("root b: %v", err)
	}
	if _, err := b.FS().StatAt(ctx, rootB, "only-in-a", true); vfs.CodeOf(err) != vfs.ErrorNoEntry {
		t.Errorf("expected instances isolated, got %v", err)
	}
	if a.Registry() == b.Registry() {
		t.Error("expected separate registries")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AGENTHOST_MODE", "suspend")
	t.Setenv("AGENTHOST_WAIT_TIMEOUT", "2s")
	t.Setenv("AGENTHOST_ENROLLED", "wasi:io/poll#*,wasi:http/outgoing-handler#handle")
	t.Setenv("AGENTHOST_HTTP_RETRIES", "5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Mode != "suspend" {
		t.Errorf("expected suspend, got %q", cfg.Mode)
	}
	if cfg.WaitTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.WaitTimeout)
	}
	if len(cfg.Enrolled) != 2 {
		t.Errorf("expected two enrollment patterns, got %v", cfg.Enrolled)
	}
	if cfg.HTTPRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.HTTPRetries)
	}
}
