package loader

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/agent-in-a-browser-sub010/bridge"
)

// emptyModule is the smallest valid module: no imports, no exports, no
// start function. Running it as a command exits 0.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// exit5Module exports a _start that calls proc_exit(5).
var exit5Module = func() []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)
	// type section: (i32)->() and ()->()
	b = append(b, 0x01, 0x08, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00)
	// import section: wasi_snapshot_preview1.proc_exit
	b = append(b, 0x02, 0x24, 0x01, 0x16)
	b = append(b, []byte("wasi_snapshot_preview1")...)
	b = append(b, 0x09)
	b = append(b, []byte("proc_exit")...)
	b = append(b, 0x00, 0x00)
	// function section: one function of type 1
	b = append(b, 0x03, 0x02, 0x01, 0x01)
	// export section: _start -> func 1
	b = append(b, 0x07, 0x0a, 0x01, 0x06)
	b = append(b, []byte("_start")...)
	b = append(b, 0x00, 0x01)
	// code section: i32.const 5; call 0; end
	b = append(b, 0x0a, 0x08, 0x01, 0x06, 0x00, 0x41, 0x05, 0x10, 0x00, 0x0b)
	return b
}()

// readStdinModule exports a _start that reads one byte from stdin via
// fd_read, so the command stays running as long as stdin blocks.
var readStdinModule = func() []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)
	// type section: (i32,i32,i32,i32)->(i32) and ()->()
	b = append(b, 0x01, 0x0c, 0x02, 0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00)
	// import section: wasi_snapshot_preview1.fd_read
	b = append(b, 0x02, 0x22, 0x01, 0x16)
	b = append(b, []byte("wasi_snapshot_preview1")...)
	b = append(b, 0x07)
	b = append(b, []byte("fd_read")...)
	b = append(b, 0x00, 0x00)
	// function section: one function of type 1
	b = append(b, 0x03, 0x02, 0x01, 0x01)
	// memory section: one memory, min 1 page
	b = append(b, 0x05, 0x03, 0x01, 0x00, 0x01)
	// export section: _start -> func 1, memory -> mem 0
	b = append(b, 0x07, 0x13, 0x02, 0x06)
	b = append(b, []byte("_start")...)
	b = append(b, 0x00, 0x01, 0x06)
	b = append(b, []byte("memory")...)
	b = append(b, 0x02, 0x00)
	// code section: store iovec {base:8,len:1} at 0; fd_read(0,0,1,16); drop
	b = append(b, 0x0a, 0x1d, 0x01, 0x1b, 0x00,
		0x41, 0x00, 0x41, 0x08, 0x36, 0x02, 0x00,
		0x41, 0x04, 0x41, 0x01, 0x36, 0x02, 0x00,
		0x41, 0x00, 0x41, 0x00, 0x41, 0x01, 0x41, 0x10, 0x10, 0x00, 0x1a,
		0x0b)
	return b
}()

type countingSource struct {
	inner Source
	loads atomic.Int32
}

func (s *countingSource) Load(ctx context.Context, name string) ([]byte, error) {
	s.loads.Add(1)
	return s.inner.Load(ctx, name)
}

func newBlockLoader(t *testing.T, src Source) *Loader {
	t.Helper()
	br := bridge.NewBlockBridge(5 * time.Second)
	l := New(context.Background(), src, br)
	t.Cleanup(func() {
		l.Close(context.Background())
		br.Close()
	})
	return l
}

func TestGetModuleLoadsOnce(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{inner: MapSource{"tool": emptyModule}}
	l := newBlockLoader(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.GetModule(ctx, "tool"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := src.loads.Load(); n != 1 {
		t.Errorf("expected one load for concurrent first use, got %d", n)
	}
	if _, err := l.GetModule(ctx, "tool"); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if n := src.loads.Load(); n != 1 {
		t.Errorf("expected cache hit, got %d loads", n)
	}
	if names := l.Loaded(); len(names) != 1 || names[0] != "tool" {
		t.Errorf("expected loaded [tool], got %v", names)
	}
}

func TestSpawnUnknownCommand(t *testing.T) {
	l := newBlockLoader(t, MapSource{})
	h, err := l.Spawn(context.Background(), "nope", SpawnConfig{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	code, done := h.Poll()
	if !done {
		t.Fatal("expected already-exited handle")
	}
	if code != ExitNoSuchCommand {
		t.Errorf("expected 127, got %d", code)
	}
}

func TestSpawnBlockModeResolvedOnReturn(t *testing.T) {
	l := newBlockLoader(t, MapSource{"noop": emptyModule})
	h, err := l.Spawn(context.Background(), "noop", SpawnConfig{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	code, done := h.Poll()
	if !done {
		t.Fatal("expected command finished before spawn returned")
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
}

func TestSpawnExitCode(t *testing.T) {
	l := newBlockLoader(t, MapSource{"five": exit5Module})
	h, err := l.Spawn(context.Background(), "five", SpawnConfig{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	code, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != 5 {
		t.Errorf("expected exit 5, got %d", code)
	}
}

func TestSpawnSuspendModeRunsInBackground(t *testing.T) {
	ctx := context.Background()
	br := bridge.NewSuspendBridge(bridge.NewWildcardMatcher([]string{"*"}))
	defer br.Close()
	l := New(ctx, MapSource{"noop": emptyModule}, br)
	defer l.Close(ctx)

	h, err := l.Spawn(ctx, "noop", SpawnConfig{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, done := h.Poll(); done {
		t.Error("expected command to wait for the task pump")
	}
	code, err := h.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
	if code, done, err := h.TryWait(); err != nil || !done || code != 0 {
		t.Errorf("expected settled try-wait, got %d %v %v", code, done, err)
	}
}

func TestTryWaitServicesSuspendTask(t *testing.T) {
	ctx := context.Background()
	br := bridge.NewSuspendBridge(bridge.NewWildcardMatcher([]string{"*"}))
	defer br.Close()
	l := New(ctx, MapSource{"five": exit5Module}, br)
	defer l.Close(ctx)

	h, err := l.Spawn(ctx, "five", SpawnConfig{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	var code uint32
	var done bool
	for i := 0; i < 50 && !done; i++ {
		code, done, err = h.TryWait()
		if err != nil {
			t.Fatalf("try-wait: %v", err)
		}
	}
	if !done {
		t.Fatal("expected try-wait alone to service the spawned task")
	}
	if code != 5 {
		t.Errorf("expected exit 5, got %d", code)
	}
}

type gatedReader struct {
	release chan struct{}
}

func (r *gatedReader) Read(p []byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

func TestSpawnLeavesDispatcherFree(t *testing.T) {
	ctx := context.Background()
	br := bridge.NewBlockBridge(5 * time.Second)
	defer br.Close()
	l := New(ctx, MapSource{"reader": readStdinModule}, br)
	defer l.Close(ctx)

	gate := &gatedReader{release: make(chan struct{})}
	type spawnResult struct {
		h   *CommandHandle
		err error
	}
	spawned := make(chan spawnResult, 1)
	go func() {
		h, err := l.Spawn(ctx, "reader", SpawnConfig{Stdin: gate})
		spawned <- spawnResult{h, err}
	}()

	// Let the command reach its blocking read.
	time.Sleep(100 * time.Millisecond)

	ictx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := br.Invoke(ictx, "test:ns", "instant", func(complete func(any, error)) {
		complete("ok", nil)
	})
	if err != nil {
		t.Fatalf("expected instant op serviced while a command runs, got %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %v", v)
	}

	close(gate.release)
	res := <-spawned
	if res.err != nil {
		t.Fatalf("spawn: %v", res.err)
	}
	if code, done := res.h.Poll(); !done || code != 0 {
		t.Errorf("expected exit 0, got done=%v code=%d", done, code)
	}
}

func TestCancelStopsPolling(t *testing.T) {
	l := newBlockLoader(t, MapSource{"noop": emptyModule})
	h, err := l.Spawn(context.Background(), "noop", SpawnConfig{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	h.Cancel()
	if _, done := h.Poll(); done {
		t.Error("expected canceled handle to stop reporting")
	}
	if _, err := h.Wait(context.Background()); err != ErrCanceled {
		t.Errorf("expected ErrCanceled, got %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestSpawnCompileError(t *testing.T) {
	l := newBlockLoader(t, MapSource{"bad": []byte("not wasm")})
	if _, err := l.Spawn(context.Background(), "bad", SpawnConfig{}); err == nil {
		t.Error("expected compile error for invalid module bytes")
	}
}
