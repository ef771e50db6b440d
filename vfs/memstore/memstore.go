// Package memstore is the in-memory reference backend for vfs. It
// mirrors the semantics of a browser origin-private store: directories
// hand out get-or-create child handles, file bytes move either as
// whole-file snapshots or through an exclusive sync access handle, and
// a second sync acquisition of a busy file fails rather than waits.
package memstore

import (
	"context"
	"sync"

	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
)

type node struct {
	name     string
	isDir    bool
	data     []byte
	children map[string]*node
	holder   *syncHandle
}

// Store is an in-memory vfs.Store. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	root *node
}

// New returns an empty store.
func New() *Store {
	return &Store{root: newDirNode("")}
}

func newDirNode(name string) *node {
	return &node{name: name, isDir: true, children: make(map[string]*node)}
}

func (s *Store) Root(ctx context.Context) (vfs.Dir, error) {
	return &dir{store: s, node: s.root, path: "/"}, nil
}

type dir struct {
	store *Store
	node  *node
	path  string
}

func (d *dir) child(name string) string {
	return vfs.Join(d.path, name)
}

func (d *dir) Directory(ctx context.Context, name string, create bool) (vfs.Dir, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	n, ok := d.node.children[name]
	if !ok {
		if !create {
			return nil, vfs.Err(vfs.ErrorNoEntry, d.child(name))
		}
		n = newDirNode(name)
		d.node.children[name] = n
	} else if !n.isDir {
		return nil, vfs.Err(vfs.ErrorNotDirectory, d.child(name))
	}
	return &dir{store: d.store, node: n, path: d.child(name)}, nil
}

func (d *dir) File(ctx context.Context, name string, create bool) (vfs.File, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	n, ok := d.node.children[name]
	if !ok {
		if !create {
			return nil, vfs.Err(vfs.ErrorNoEntry, d.child(name))
		}
		n = &node{name: name}
		d.node.children[name] = n
	} else if n.isDir {
		return nil, vfs.Err(vfs.ErrorIsDirectory, d.child(name))
	}
	return &file{store: d.store, node: n, path: d.child(name)}, nil
}

func (d *dir) Entries(ctx context.Context) ([]vfs.Entry, error) {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	entries := make([]vfs.Entry, 0, len(d.node.children))
	for _, n := range d.node.children {
		e := vfs.Entry{Name: n.name, Type: vfs.EntryTypeRegularFile, Size: uint64(len(n.data))}
		if n.isDir {
			e.Type = vfs.EntryTypeDirectory
			e.Size = 0
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (d *dir) Remove(ctx context.Context, name string) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	n, ok := d.node.children[name]
	if !ok {
		return vfs.Err(vfs.ErrorNoEntry, d.child(name))
	}
	if locked(n) {
		return vfs.Err(vfs.ErrorBusy, d.child(name))
	}
	delete(d.node.children, name)
	return nil
}

func (d *dir) Move(ctx context.Context, name string, dst vfs.Dir, newName string) error {
	dd, ok := dst.(*dir)
	if !ok || dd.store != d.store {
		return vfs.Err(vfs.ErrorCrossDevice, d.child(name))
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	n, ok := d.node.children[name]
	if !ok {
		return vfs.Err(vfs.ErrorNoEntry, d.child(name))
	}
	if locked(n) {
		return vfs.Err(vfs.ErrorBusy, d.child(name))
	}
	if existing, ok := dd.node.children[newName]; ok {
		if existing.isDir && len(existing.children) > 0 {
			return vfs.Err(vfs.ErrorNotEmpty, dd.child(newName))
		}
		if locked(existing) {
			return vfs.Err(vfs.ErrorBusy, dd.child(newName))
		}
	}
	delete(d.node.children, name)
	n.name = newName
	dd.node.children[newName] = n
	return nil
}

// locked reports whether n or any descendant has an open sync handle.
func locked(n *node) bool {
	if n.holder != nil {
		return true
	}
	for _, c := range n.children {
		if locked(c) {
			return true
		}
	}
	return false
}

type file struct {
	store  *Store
	node   *node
	path   string
	handle *syncHandle
}

func (f *file) Snapshot(ctx context.Context) ([]byte, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	out := make([]byte, len(f.node.data))
	copy(out, f.node.data)
	return out, nil
}

func (f *file) Replace(ctx context.Context, data []byte) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.node.holder != nil && f.node.holder != f.handle {
		return vfs.Err(vfs.ErrorBusy, f.path)
	}
	f.node.data = append([]byte(nil), data...)
	return nil
}

func (f *file) Size(ctx context.Context) (uint64, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return uint64(len(f.node.data)), nil
}

// AcquireSync hands out the file's exclusive sync handle. Re-acquiring
// through the same File returns the handle already held; any other
// holder makes the file busy.
func (f *file) AcquireSync(ctx context.Context) (vfs.SyncHandle, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.handle != nil && f.node.holder == f.handle {
		return f.handle, nil
	}
	if f.node.holder != nil {
		return nil, vfs.Err(vfs.ErrorBusy, f.path)
	}
	h := &syncHandle{store: f.store, node: f.node, path: f.path}
	f.node.holder = h
	f.handle = h
	return h, nil
}

type syncHandle struct {
	store    *Store
	node     *node
	path     string
	released bool
}

func (h *syncHandle) live() error {
	if h.released {
		return vfs.Err(vfs.ErrorBadDescriptor, h.path)
	}
	return nil
}

func (h *syncHandle) ReadAt(p []byte, off int64) (int, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if err := h.live(); err != nil {
		return 0, err
	}
	if off >= int64(len(h.node.data)) {
		return 0, nil
	}
	return copy(p, h.node.data[off:]), nil
}

func (h *syncHandle) WriteAt(p []byte, off int64) (int, error) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if err := h.live(); err != nil {
		return 0, err
	}
	end := off + int64(len(p))
	if end > int64(len(h.node.data)) {
		grown := make([]byte, end)
		copy(grown, h.node.data)
		h.node.data = grown
	}
	copy(h.node.data[off:], p)
	return len(p), nil
}

func (h *syncHandle) Size() int64 {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return int64(len(h.node.data))
}

func (h *syncHandle) Truncate(size int64) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if err := h.live(); err != nil {
		return err
	}
	if size <= int64(len(h.node.data)) {
		h.node.data = h.node.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, h.node.data)
	h.node.data = grown
	return nil
}

func (h *syncHandle) Flush() error {
	return h.live()
}

func (h *syncHandle) Release() error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if h.node.holder == h {
		h.node.holder = nil
	}
	return nil
}
