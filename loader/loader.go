// Package loader compiles and runs guest modules on demand. Modules
// are compiled once per name no matter how many callers race the first
// reference; spawned commands surface as handles whose completion is
// serviced by the execution-mode bridge.
package loader

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
)

// ExitNoSuchCommand is the exit code of a spawn whose name resolved to
// nothing.
const ExitNoSuchCommand uint32 = 127

// Loader lazily compiles guest modules and spawns them as commands.
type Loader struct {
	rt  wazero.Runtime
	src Source
	br  bridge.Bridge
	log *zap.Logger

	mu      sync.Mutex
	modules map[string]wazero.CompiledModule
	group   singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// New builds a loader over its own wazero runtime with WASI preview1
// host functions instantiated.
func New(ctx context.Context, src Source, br bridge.Bridge, opts ...Option) *Loader {
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	l := &Loader{
		rt:      rt,
		src:     src,
		br:      br,
		log:     zap.NewNop(),
		modules: make(map[string]wazero.CompiledModule),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetModule returns the compiled module for name, loading and
// compiling it on first reference. Concurrent first references share
// one load.
func (l *Loader) GetModule(ctx context.Context, name string) (wazero.CompiledModule, error) {
	l.mu.Lock()
	if cm, ok := l.modules[name]; ok {
		l.mu.Unlock()
		return cm, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(name, func() (any, error) {
		data, err := l.src.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		cm, err := l.rt.CompileModule(ctx, data)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.modules[name] = cm
		l.mu.Unlock()
		l.log.Debug("module compiled", zap.String("name", name), zap.Int("bytes", len(data)))
		return cm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(wazero.CompiledModule), nil
}

// Bridge returns the bridge spawned commands run against.
func (l *Loader) Bridge() bridge.Bridge { return l.br }

// Loaded lists the names of compiled modules.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	return names
}

// SpawnConfig carries the process-like surface of a command.
type SpawnConfig struct {
	Args   []string
	Env    map[string]string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts name as a command. In block mode the command has run to
// completion by the time Spawn returns; in suspend mode it runs as a
// background task and the handle's waits go through the bridge. An
// unknown name yields an already-exited handle with code 127.
func (l *Loader) Spawn(ctx context.Context, name string, cfg SpawnConfig) (*CommandHandle, error) {
	cm, err := l.GetModule(ctx, name)
	if err != nil {
		if errors.Is(err, &NotFoundError{}) {
			l.log.Debug("spawn of unknown command", zap.String("name", name))
			return exitedHandle(l.br, name, ExitNoSuchCommand), nil
		}
		return nil, err
	}

	h := &CommandHandle{name: name, br: l.br}
	run := func(complete func(any, error)) {
		code, err := l.runCommand(ctx, cm, cfg)
		if err != nil {
			complete(nil, err)
			return
		}
		complete(code, nil)
	}
	if l.br.Mode() == bridge.ModeBlock {
		// The guest body gets its own worker; the dispatcher only sees
		// the completion and stays free for capability ops the command
		// issues while it runs.
		h.future = l.br.Go(func(complete func(any, error)) {
			go run(complete)
		})
		if _, err := l.br.Await(ctx, h.future); err != nil {
			return nil, err
		}
	} else {
		h.future = l.br.Go(run)
	}
	return h, nil
}

// runCommand instantiates the compiled module and runs it to
// completion. A clean return and an explicit exit(0) are equivalent.
func (l *Loader) runCommand(ctx context.Context, cm wazero.CompiledModule, cfg SpawnConfig) (uint32, error) {
	mc := wazero.NewModuleConfig().WithName("")
	if len(cfg.Args) > 0 {
		mc = mc.WithArgs(cfg.Args...)
	}
	for k, v := range cfg.Env {
		mc = mc.WithEnv(k, v)
	}
	if cfg.Stdin != nil {
		mc = mc.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		mc = mc.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mc = mc.WithStderr(cfg.Stderr)
	}

	mod, err := l.rt.InstantiateModule(ctx, cm, mc)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		var exit *sys.ExitError
		if errors.As(err, &exit) {
			return exit.ExitCode(), nil
		}
		return 0, err
	}
	return 0, nil
}

// Close releases the runtime and every compiled module.
func (l *Loader) Close(ctx context.Context) error {
	return l.rt.Close(ctx)
}
