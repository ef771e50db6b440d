// Package agenthost is the root of a portable host runtime for WebAssembly
// guest components.
//
// The runtime exposes a fixed set of capability namespaces (filesystem,
// HTTP, polling, clocks, command spawning) to sandboxed guests through
// opaque uint32 handles, and runs guest-visible async work under one of
// two execution modes: a cooperative suspend loop or a blocking
// dispatcher.
//
// # Architecture Overview
//
//	agenthost/
//	├── registry/    Opaque handle table with lifecycle observers
//	├── bridge/      Execution-mode core: futures, suspend and block bridges
//	├── vfs/         Descriptor semantics over a minimal Store backend
//	│   ├── memstore/  In-memory store with exclusive sync handles
//	│   └── osstore/   Store backed by a host directory
//	├── httpbridge/  Incoming delivery and outgoing dispatch
//	├── loader/      Module compilation cache and command spawning
//	├── capability/  Guest-facing namespace hosts over the above
//	├── host/        Wired runtime instance and configuration
//	└── cmd/agenthost/  CLI runner and interactive inspector
//
// # Quick Start
//
//	cfg, err := host.FromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h, err := host.New(ctx, cfg, host.WithSource(loader.MapSource{"tool": wasmBytes}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	handle, err := h.Loader().Spawn(ctx, "tool", loader.SpawnConfig{Args: []string{"tool"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	code, err := handle.Wait(ctx)
package agenthost
