package capability

import (
	"context"

	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

// PollHost exposes pollable readiness to the guest.
type PollHost struct {
	reg *registry.Registry
}

func NewPollHost(reg *registry.Registry) *PollHost {
	return &PollHost{reg: reg}
}

func (h *PollHost) Namespace() string {
	return "wasi:io/poll@0.2.0"
}

// Poll returns the indices of the ready pollables.
func (h *PollHost) Poll(_ context.Context, pollables []uint32) []uint32 {
	ready := make([]uint32, 0, len(pollables))
	for i, handle := range pollables {
		v, err := h.reg.GetTyped(registry.Handle(handle), registry.TypePollable)
		if err != nil {
			continue
		}
		if p, ok := v.(Pollable); ok && p.Ready() {
			ready = append(ready, uint32(i))
		}
	}
	return ready
}

func (h *PollHost) MethodPollableReady(_ context.Context, self uint32) bool {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypePollable)
	if err != nil {
		return false
	}
	p, ok := v.(Pollable)
	return ok && p.Ready()
}

func (h *PollHost) MethodPollableBlock(ctx context.Context, self uint32) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypePollable)
	if err != nil {
		return
	}
	if p, ok := v.(Pollable); ok {
		p.Block(ctx)
	}
}

func (h *PollHost) ResourceDropPollable(_ context.Context, self uint32) {
	h.reg.Drop(registry.Handle(self))
}

func (h *PollHost) Register() map[string]any {
	return map[string]any{
		"poll":                    h.Poll,
		"[method]pollable.ready":  h.MethodPollableReady,
		"[method]pollable.block":  h.MethodPollableBlock,
		"[resource-drop]pollable": h.ResourceDropPollable,
	}
}
