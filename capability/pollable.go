package capability

import (
	"context"
	"time"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
)

// Pollable is anything a guest can poll for readiness. Block waits by
// the rules of whoever backs the pollable; it never spins.
type Pollable interface {
	Ready() bool
	Block(ctx context.Context)
}

// futurePollable makes a bridge future pollable. Readiness is the
// future having settled, in either direction.
type futurePollable struct {
	br bridge.Bridge
	f  *bridge.Future
}

// NewFuturePollable wraps f for guest polling.
func NewFuturePollable(br bridge.Bridge, f *bridge.Future) Pollable {
	return &futurePollable{br: br, f: f}
}

func (p *futurePollable) Ready() bool {
	return p.f.Ready()
}

func (p *futurePollable) Block(ctx context.Context) {
	p.br.Await(ctx, p.f)
}

// deadlinePollable becomes ready once a monotonic deadline passes.
type deadlinePollable struct {
	deadline time.Time
}

// NewDeadlinePollable returns a pollable that fires at deadline.
func NewDeadlinePollable(deadline time.Time) Pollable {
	return &deadlinePollable{deadline: deadline}
}

func (p *deadlinePollable) Ready() bool {
	return !time.Now().Before(p.deadline)
}

func (p *deadlinePollable) Block(ctx context.Context) {
	d := time.Until(p.deadline)
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// readyPollable is always ready.
type readyPollable struct{}

// NewReadyPollable returns a pollable that is ready from birth.
func NewReadyPollable() Pollable { return readyPollable{} }

func (readyPollable) Ready() bool { return true }

func (readyPollable) Block(ctx context.Context) {}
