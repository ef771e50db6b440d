package capability

import (
	"bytes"
	"context"

	"github.com/tjfontaine/agent-in-a-browser-sub010/loader"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
)

// CommandHost lets guests spawn other guest modules as commands.
type CommandHost struct {
	reg *registry.Registry
	ldr *loader.Loader
}

func NewCommandHost(reg *registry.Registry, ldr *loader.Loader) *CommandHost {
	return &CommandHost{reg: reg, ldr: ldr}
}

func (h *CommandHost) Namespace() string {
	return "agent:process/commands@0.1.0"
}

// CommandResult is what a finished command leaves behind.
type CommandResult struct {
	ExitCode uint32
	Stdout   []byte
	Stderr   []byte
}

type runningCommand struct {
	handle *loader.CommandHandle
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// Spawn starts name with the given argv, env and stdin, capturing its
// output. Unknown names exit 127 through the same path as real
// commands.
func (h *CommandHost) Spawn(ctx context.Context, name string, args []string, env map[string]string, stdin []byte) (uint32, error) {
	var stdout, stderr bytes.Buffer
	ch, err := h.ldr.Spawn(ctx, name, loader.SpawnConfig{
		Args:   append([]string{name}, args...),
		Env:    env,
		Stdin:  bytes.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return 0, err
	}
	rc := &runningCommand{handle: ch, stdout: &stdout, stderr: &stderr}
	return uint32(h.reg.Register(registry.TypeCommand, rc)), nil
}

func (h *CommandHost) getCommand(self uint32) (*runningCommand, error) {
	v, err := h.reg.GetTyped(registry.Handle(self), registry.TypeCommand)
	if err != nil {
		return nil, ErrInvalidHandle
	}
	return v.(*runningCommand), nil
}

// MethodCommandPoll reports the exit code without blocking.
func (h *CommandHost) MethodCommandPoll(_ context.Context, self uint32) (uint32, bool, error) {
	rc, err := h.getCommand(self)
	if err != nil {
		return 0, false, err
	}
	code, done := rc.handle.Poll()
	return code, done, nil
}

// MethodCommandTryWait returns the result if the command has exited.
func (h *CommandHost) MethodCommandTryWait(_ context.Context, self uint32) (*CommandResult, error) {
	rc, err := h.getCommand(self)
	if err != nil {
		return nil, err
	}
	code, done, werr := rc.handle.TryWait()
	if werr != nil {
		return nil, werr
	}
	if !done {
		return nil, nil
	}
	return rc.result(code), nil
}

// MethodCommandWait blocks, by the bridge's rules, until exit.
func (h *CommandHost) MethodCommandWait(ctx context.Context, self uint32) (*CommandResult, error) {
	rc, err := h.getCommand(self)
	if err != nil {
		return nil, err
	}
	code, werr := rc.handle.Wait(ctx)
	if werr != nil {
		return nil, werr
	}
	return rc.result(code), nil
}

func (rc *runningCommand) result(code uint32) *CommandResult {
	return &CommandResult{
		ExitCode: code,
		Stdout:   rc.stdout.Bytes(),
		Stderr:   rc.stderr.Bytes(),
	}
}

// MethodCommandSubscribe returns a pollable over command completion.
func (h *CommandHost) MethodCommandSubscribe(_ context.Context, self uint32) (uint32, error) {
	rc, err := h.getCommand(self)
	if err != nil {
		return 0, err
	}
	p := NewFuturePollable(h.ldr.Bridge(), rc.handle.Future())
	return uint32(h.reg.Register(registry.TypePollable, p)), nil
}

// MethodCommandCancel stops further polling; in-flight work runs out.
func (h *CommandHost) MethodCommandCancel(_ context.Context, self uint32) error {
	rc, err := h.getCommand(self)
	if err != nil {
		return err
	}
	rc.handle.Cancel()
	return nil
}

func (h *CommandHost) ResourceDropCommand(_ context.Context, self uint32) {
	if rc, err := h.getCommand(self); err == nil {
		rc.handle.Close()
	}
	h.reg.Drop(registry.Handle(self))
}

// GetModule compiles name on first reference and returns a module
// handle over the cached compilation. Repeated gets hand out distinct
// handles; dropping one never evicts the compilation.
func (h *CommandHost) GetModule(ctx context.Context, name string) (uint32, error) {
	cm, err := h.ldr.GetModule(ctx, name)
	if err != nil {
		return 0, err
	}
	return uint32(h.reg.Register(registry.TypeModule, cm)), nil
}

func (h *CommandHost) ResourceDropModule(_ context.Context, self uint32) {
	h.reg.Drop(registry.Handle(self))
}

func (h *CommandHost) Register() map[string]any {
	return map[string]any{
		"spawn":                     h.Spawn,
		"get-module":                h.GetModule,
		"[method]command.poll":      h.MethodCommandPoll,
		"[method]command.try-wait":  h.MethodCommandTryWait,
		"[method]command.wait":      h.MethodCommandWait,
		"[method]command.subscribe": h.MethodCommandSubscribe,
		"[method]command.cancel":    h.MethodCommandCancel,
		"[resource-drop]command":    h.ResourceDropCommand,
		"[resource-drop]module":     h.ResourceDropModule,
	}
}
