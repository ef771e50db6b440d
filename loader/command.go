package loader

import (
	"context"
	"sync/atomic"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
)

// CommandHandle tracks one spawned command. There is no preemption: a
// canceled handle stops reporting, while any in-flight guest work runs
// out on its own.
type CommandHandle struct {
	name     string
	br       bridge.Bridge
	future   *bridge.Future
	canceled atomic.Bool
}

// ErrCanceled is returned by waits on a canceled handle.
type canceledError struct{}

func (canceledError) Error() string { return "loader: command handle canceled" }

// ErrCanceled is the terminal error of a canceled handle.
var ErrCanceled error = canceledError{}

func exitedHandle(br bridge.Bridge, name string, code uint32) *CommandHandle {
	f := bridge.NewFuture()
	f.Resolve(code)
	return &CommandHandle{name: name, br: br, future: f}
}

// Name returns the spawned command name.
func (h *CommandHandle) Name() string { return h.name }

// Poll reports the exit code without blocking. done is false while the
// command is still running or after the handle was canceled.
func (h *CommandHandle) Poll() (code uint32, done bool) {
	if h.canceled.Load() {
		return 0, false
	}
	v, err, ok := h.future.TryGet()
	if !ok || err != nil {
		return 0, false
	}
	return v.(uint32), true
}

// TryWait services the backing task and returns the exit code if the
// command finished. Unlike Poll it pumps the bridge, so a guest that
// only ever try-waits still gets its command run in suspend mode.
func (h *CommandHandle) TryWait() (code uint32, done bool, err error) {
	if h.canceled.Load() {
		return 0, false, ErrCanceled
	}
	if _, _, ok := h.future.TryGet(); !ok {
		h.br.Pump()
	}
	v, err, ok := h.future.TryGet()
	if !ok {
		return 0, false, nil
	}
	if err != nil {
		return 0, true, err
	}
	return v.(uint32), true, nil
}

// Wait blocks, by the bridge's rules, until the command exits.
func (h *CommandHandle) Wait(ctx context.Context) (uint32, error) {
	if h.canceled.Load() {
		return 0, ErrCanceled
	}
	aw, err := h.br.Await(ctx, h.future)
	if err != nil {
		return 0, err
	}
	if h.canceled.Load() {
		return 0, ErrCanceled
	}
	if aw.Err() != nil {
		return 0, aw.Err()
	}
	return aw.Value().(uint32), nil
}

// Future exposes the backing future for pollable wiring.
func (h *CommandHandle) Future() *bridge.Future { return h.future }

// Cancel stops further polling. The guest, if still running, runs out
// on its own; its eventual result is discarded.
func (h *CommandHandle) Cancel() {
	h.canceled.Store(true)
}

// Canceled reports whether Cancel was called.
func (h *CommandHandle) Canceled() bool {
	return h.canceled.Load()
}

// Close drops the handle. Safe in any state.
func (h *CommandHandle) Close() error {
	h.Cancel()
	return nil
}
