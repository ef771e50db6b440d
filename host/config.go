package host

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
)

// Config selects the execution mode and wires the storage and loader
// roots. Every field can come from the environment under the AGENTHOST
// prefix.
type Config struct {
	// Mode is "block" or "suspend".
	Mode string `envconfig:"MODE" default:"block"`

	// WaitTimeout bounds block-mode waits on host futures.
	WaitTimeout time.Duration `envconfig:"WAIT_TIMEOUT" default:"30s"`

	// Root, when set, backs the filesystem with a host directory
	// instead of memory.
	Root string `envconfig:"ROOT"`

	// ModuleDir, when set, resolves spawn names against a directory of
	// .wasm files.
	ModuleDir string `envconfig:"MODULE_DIR"`

	// CacheSize bounds the directory listing cache.
	CacheSize int `envconfig:"CACHE_SIZE" default:"256"`

	// HTTPRetries is how many times the block-mode HTTP transport
	// retries a failed transfer.
	HTTPRetries int `envconfig:"HTTP_RETRIES" default:"2"`

	// Enrolled lists suspension-point patterns for suspend mode.
	Enrolled []string `envconfig:"ENROLLED" default:"*"`
}

// FromEnv reads configuration from AGENTHOST_* variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("agenthost", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) mode() (bridge.Mode, error) {
	switch c.Mode {
	case "block", "":
		return bridge.ModeBlock, nil
	case "suspend":
		return bridge.ModeSuspend, nil
	default:
		return 0, fmt.Errorf("host: unknown mode %q", c.Mode)
	}
}
