package capability

import (
	"context"
	"time"

	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

// ClockHost exposes the monotonic clock. Instants are nanoseconds
// since the host was constructed, so guests never see wall-clock
// jumps.
type ClockHost struct {
	reg   *registry.Registry
	epoch time.Time
}

func NewClockHost(reg *registry.Registry) *ClockHost {
	return &ClockHost{reg: reg, epoch: time.Now()}
}

func (h *ClockHost) Namespace() string {
	return "wasi:clocks/monotonic-clock@0.2.0"
}

// Now returns the current instant in nanoseconds.
func (h *ClockHost) Now(_ context.Context) uint64 {
	return uint64(time.Since(h.epoch))
}

// Resolution reports the finest observable tick.
func (h *ClockHost) Resolution(_ context.Context) uint64 {
	return 1
}

// SubscribeInstant returns a pollable firing at an absolute instant.
func (h *ClockHost) SubscribeInstant(_ context.Context, when uint64) uint32 {
	deadline := h.epoch.Add(time.Duration(when))
	p := NewDeadlinePollable(deadline)
	return uint32(h.reg.Register(registry.TypePollable, p))
}

// SubscribeDuration returns a pollable firing after a relative delay.
func (h *ClockHost) SubscribeDuration(_ context.Context, delay uint64) uint32 {
	p := NewDeadlinePollable(time.Now().Add(time.Duration(delay)))
	return uint32(h.reg.Register(registry.TypePollable, p))
}

func (h *ClockHost) Register() map[string]any {
	return map[string]any{
		"now":                h.Now,
		"resolution":         h.Resolution,
		"subscribe-instant":  h.SubscribeInstant,
		"subscribe-duration": h.SubscribeDuration,
	}
}
