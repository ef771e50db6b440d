package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/tjfontaine/agent-in-a-browser-sub010/host"
	"github.com/tjfontaine/agent-in-a-browser-sub010/loader"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to guest wasm file")
		mode        = flag.String("mode", "", "Execution mode: block or suspend (default from env)")
		rootDir     = flag.String("root", "", "Host directory backing the guest filesystem (default in-memory)")
		moduleDir   = flag.String("modules", "", "Directory of spawnable .wasm modules")
		envVars     = flag.String("env", "", "Environment variables (KEY=VAL,KEY2=VAL2)")
		cliArgs     = flag.String("argv", "", "Guest arguments (comma-separated)")
		stdinData   = flag.String("stdin", "", "Stdin data")
		interactive = flag.Bool("i", false, "Interactive inspector")
	)
	flag.Parse()

	if *wasmFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: agenthost -wasm <file.wasm> [-mode block|suspend] [-root dir] [-env K=V,...]")
		fmt.Fprintln(os.Stderr, "       agenthost -i [-wasm <file.wasm>] [-modules dir]  (interactive inspector)")
		os.Exit(1)
	}

	cfg, err := host.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *rootDir != "" {
		cfg.Root = *rootDir
	}
	if *moduleDir != "" {
		cfg.ModuleDir = *moduleDir
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(cfg, *wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	code, err := run(cfg, *wasmFile, *envVars, *cliArgs, *stdinData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(int(code))
}

func run(cfg host.Config, wasmFile, envStr, argvStr, stdinStr string) (uint32, error) {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(wasmFile), ".wasm")

	h, err := host.New(ctx, cfg, host.WithSource(loader.MapSource{name: data}))
	if err != nil {
		return 0, err
	}
	defer h.Close(ctx)

	spawn := loader.SpawnConfig{
		Args:   append([]string{name}, splitList(argvStr)...),
		Env:    parseEnv(envStr),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if stdinStr != "" {
		spawn.Stdin = strings.NewReader(stdinStr)
	} else {
		spawn.Stdin = os.Stdin
	}

	handle, err := h.Loader().Spawn(ctx, name, spawn)
	if err != nil {
		return 0, err
	}
	return handle.Wait(ctx)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseEnv(s string) map[string]string {
	if s == "" {
		return nil
	}
	env := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}
