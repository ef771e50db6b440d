// Package host assembles a complete runtime instance: registry,
// execution-mode bridge, filesystem, HTTP client and module loader,
// plus the capability hosts exported to the guest. Instances are
// independent; tests routinely run several side by side.
package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/capability"
	"github.com/tjfontaine/agent-in-a-browser-sub010/httpbridge"
	"github.com/tjfontaine/agent-in-a-browser-sub010/loader"
	"github.com/tjfontaine/agent-in-a-browser-sub010/registry"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs/memstore"
	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs/osstore"
)

// CapabilityHost is one namespace of guest-callable functions.
type CapabilityHost interface {
	Namespace() string
	Register() map[string]any
}

// Host is one fully wired runtime instance.
type Host struct {
	cfg Config
	log *zap.Logger

	reg    *registry.Registry
	br     bridge.Bridge
	fs     *vfs.FS
	client *httpbridge.Client
	ldr    *loader.Loader

	hosts []CapabilityHost
}

// Option adjusts construction.
type Option func(*options)

type options struct {
	log      *zap.Logger
	store    vfs.Store
	source   loader.Source
	dispatch httpbridge.Dispatcher
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithStore overrides the filesystem backend chosen by Config.
func WithStore(s vfs.Store) Option {
	return func(o *options) { o.store = s }
}

// WithSource overrides the module source chosen by Config.
func WithSource(s loader.Source) Option {
	return func(o *options) { o.source = s }
}

// WithDispatcher overrides the outgoing HTTP transport. Suspend-mode
// embedders inject their asynchronous fetch here.
func WithDispatcher(d httpbridge.Dispatcher) Option {
	return func(o *options) { o.dispatch = d }
}

// New builds a host from cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Host, error) {
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = Logger()
	}

	var br bridge.Bridge
	switch mode {
	case bridge.ModeSuspend:
		br = bridge.NewSuspendBridge(bridge.NewWITMatcher(cfg.Enrolled))
	default:
		br = bridge.NewBlockBridge(cfg.WaitTimeout)
	}

	store := o.store
	if store == nil {
		if cfg.Root != "" {
			store = osstore.New(cfg.Root)
		} else {
			store = memstore.New()
		}
	}
	fs := vfs.New(store, vfs.WithCacheSize(cfg.CacheSize))

	clientOpts := []httpbridge.ClientOption{httpbridge.WithRetries(cfg.HTTPRetries)}
	if o.dispatch != nil {
		clientOpts = append(clientOpts, httpbridge.WithDispatcher(o.dispatch))
	}
	client := httpbridge.NewClient(br, clientOpts...)

	source := o.source
	if source == nil {
		if cfg.ModuleDir != "" {
			source = loader.DirSource(cfg.ModuleDir)
		} else {
			source = loader.MapSource{}
		}
	}
	ldr := loader.New(ctx, source, br, loader.WithLogger(o.log))

	reg := registry.New()
	h := &Host{
		cfg:    cfg,
		log:    o.log,
		reg:    reg,
		br:     br,
		fs:     fs,
		client: client,
		ldr:    ldr,
	}
	h.hosts = []CapabilityHost{
		capability.NewPollHost(reg),
		capability.NewClockHost(reg),
		capability.NewStreamsHost(reg),
		capability.NewFilesystemHost(reg, fs),
		capability.NewHTTPTypesHost(reg, br),
		capability.NewOutgoingHandlerHost(reg, client),
		capability.NewCommandHost(reg, ldr),
	}
	h.log.Info("host ready",
		zap.String("mode", mode.String()),
		zap.Int("namespaces", len(h.hosts)))
	return h, nil
}

// Registry returns the resource registry.
func (h *Host) Registry() *registry.Registry { return h.reg }

// Bridge returns the execution-mode bridge.
func (h *Host) Bridge() bridge.Bridge { return h.br }

// FS returns the virtual filesystem.
func (h *Host) FS() *vfs.FS { return h.fs }

// HTTP returns the outgoing HTTP client.
func (h *Host) HTTP() *httpbridge.Client { return h.client }

// Loader returns the module loader.
func (h *Host) Loader() *loader.Loader { return h.ldr }

// Capabilities returns every namespace host, ready for linking.
func (h *Host) Capabilities() []CapabilityHost { return h.hosts }

// Capability looks a namespace host up by its exact namespace string.
func (h *Host) Capability(namespace string) (CapabilityHost, bool) {
	for _, ch := range h.hosts {
		if ch.Namespace() == namespace {
			return ch, true
		}
	}
	return nil, false
}

// Close tears the instance down. Live handles are dropped, pending
// futures fail, spawned work is not preempted.
func (h *Host) Close(ctx context.Context) error {
	err := h.ldr.Close(ctx)
	if berr := h.br.Close(); err == nil {
		err = berr
	}
	if rerr := h.reg.Close(); err == nil {
		err = rerr
	}
	h.log.Info("host closed")
	return err
}
