// Package osstore backs vfs with a directory on the local filesystem.
// Sync-handle exclusivity is enforced in-process; the store does not
// guard against other processes touching the same tree.
package osstore

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/tjfontaine/agent-in-a-browser-sub010/vfs"
)

// Store is a vfs.Store rooted at a host directory.
type Store struct {
	root string

	mu      sync.Mutex
	holders map[string]*syncHandle
}

// New returns a store rooted at dir. The directory must exist.
func New(dir string) *Store {
	return &Store{root: dir, holders: make(map[string]*syncHandle)}
}

func (s *Store) Root(ctx context.Context) (vfs.Dir, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, mapErr(err, "/")
	}
	if !info.IsDir() {
		return nil, vfs.Err(vfs.ErrorNotDirectory, "/")
	}
	return &dir{store: s, path: s.root, vpath: "/"}, nil
}

// mapErr converts an os error to a stable code.
func mapErr(err error, path string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, iofs.ErrNotExist):
		return vfs.Err(vfs.ErrorNoEntry, path)
	case errors.Is(err, iofs.ErrExist):
		return vfs.Err(vfs.ErrorExist, path)
	case errors.Is(err, iofs.ErrPermission):
		return vfs.Err(vfs.ErrorAccess, path)
	case errors.Is(err, syscall.ENOTDIR):
		return vfs.Err(vfs.ErrorNotDirectory, path)
	case errors.Is(err, syscall.EISDIR):
		return vfs.Err(vfs.ErrorIsDirectory, path)
	case errors.Is(err, syscall.ENOTEMPTY):
		return vfs.Err(vfs.ErrorNotEmpty, path)
	case errors.Is(err, syscall.ENOSPC):
		return vfs.Err(vfs.ErrorInsufficientSpace, path)
	case errors.Is(err, syscall.ENAMETOOLONG):
		return vfs.Err(vfs.ErrorNameTooLong, path)
	case errors.Is(err, syscall.ELOOP):
		return vfs.Err(vfs.ErrorLoop, path)
	case errors.Is(err, syscall.EXDEV):
		return vfs.Err(vfs.ErrorCrossDevice, path)
	case errors.Is(err, syscall.EROFS):
		return vfs.Err(vfs.ErrorReadOnly, path)
	case errors.Is(err, syscall.EBUSY):
		return vfs.Err(vfs.ErrorBusy, path)
	case errors.Is(err, syscall.EINVAL):
		return vfs.Err(vfs.ErrorInvalid, path)
	default:
		return vfs.Err(vfs.ErrorIo, path)
	}
}

type dir struct {
	store *Store
	path  string
	vpath string
}

func (d *dir) Directory(ctx context.Context, name string, create bool) (vfs.Dir, error) {
	p := filepath.Join(d.path, name)
	vp := vfs.Join(d.vpath, name)
	info, err := os.Stat(p)
	if err != nil {
		if !create || !errors.Is(err, iofs.ErrNotExist) {
			return nil, mapErr(err, vp)
		}
		if err := os.Mkdir(p, 0o755); err != nil {
			return nil, mapErr(err, vp)
		}
	} else if !info.IsDir() {
		return nil, vfs.Err(vfs.ErrorNotDirectory, vp)
	}
	return &dir{store: d.store, path: p, vpath: vp}, nil
}

func (d *dir) File(ctx context.Context, name string, create bool) (vfs.File, error) {
	p := filepath.Join(d.path, name)
	vp := vfs.Join(d.vpath, name)
	info, err := os.Stat(p)
	if err != nil {
		if !create || !errors.Is(err, iofs.ErrNotExist) {
			return nil, mapErr(err, vp)
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, mapErr(err, vp)
		}
		f.Close()
	} else if info.IsDir() {
		return nil, vfs.Err(vfs.ErrorIsDirectory, vp)
	}
	return &file{store: d.store, path: p, vpath: vp}, nil
}

func (d *dir) Entries(ctx context.Context) ([]vfs.Entry, error) {
	listing, err := os.ReadDir(d.path)
	if err != nil {
		return nil, mapErr(err, d.vpath)
	}
	entries := make([]vfs.Entry, 0, len(listing))
	for _, de := range listing {
		e := vfs.Entry{Name: de.Name(), Type: vfs.EntryTypeRegularFile}
		if de.IsDir() {
			e.Type = vfs.EntryTypeDirectory
		} else if info, err := de.Info(); err == nil {
			e.Size = uint64(info.Size())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (d *dir) Remove(ctx context.Context, name string) error {
	p := filepath.Join(d.path, name)
	vp := vfs.Join(d.vpath, name)
	if d.store.busy(p) {
		return vfs.Err(vfs.ErrorBusy, vp)
	}
	if err := os.Remove(p); err != nil {
		return mapErr(err, vp)
	}
	return nil
}

func (d *dir) Move(ctx context.Context, name string, dst vfs.Dir, newName string) error {
	dd, ok := dst.(*dir)
	if !ok || dd.store != d.store {
		return vfs.Err(vfs.ErrorCrossDevice, vfs.Join(d.vpath, name))
	}
	src := filepath.Join(d.path, name)
	if d.store.busy(src) {
		return vfs.Err(vfs.ErrorBusy, vfs.Join(d.vpath, name))
	}
	if err := os.Rename(src, filepath.Join(dd.path, newName)); err != nil {
		return mapErr(err, vfs.Join(d.vpath, name))
	}
	return nil
}

type file struct {
	store  *Store
	path   string
	vpath  string
	handle *syncHandle
}

func (f *file) Snapshot(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, mapErr(err, f.vpath)
	}
	return data, nil
}

func (f *file) Replace(ctx context.Context, data []byte) error {
	f.store.mu.Lock()
	h, held := f.store.holders[f.path]
	f.store.mu.Unlock()
	if held && h != f.handle {
		return vfs.Err(vfs.ErrorBusy, f.vpath)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return mapErr(err, f.vpath)
	}
	return nil
}

func (f *file) Size(ctx context.Context) (uint64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, mapErr(err, f.vpath)
	}
	return uint64(info.Size()), nil
}

func (f *file) AcquireSync(ctx context.Context) (vfs.SyncHandle, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if h, held := f.store.holders[f.path]; held {
		if h == f.handle {
			return h, nil
		}
		return nil, vfs.Err(vfs.ErrorBusy, f.vpath)
	}
	osf, err := os.OpenFile(f.path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, mapErr(err, f.vpath)
	}
	h := &syncHandle{store: f.store, f: osf, path: f.path, vpath: f.vpath}
	f.store.holders[f.path] = h
	f.handle = h
	return h, nil
}

// busy reports whether any open sync handle sits at or under p.
func (s *Store) busy(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := p + string(filepath.Separator)
	for held := range s.holders {
		if held == p || strings.HasPrefix(held, prefix) {
			return true
		}
	}
	return false
}

type syncHandle struct {
	store *Store
	f     *os.File
	path  string
	vpath string

	mu       sync.Mutex
	released bool
}

func (h *syncHandle) live() error {
	if h.released {
		return vfs.Err(vfs.ErrorBadDescriptor, h.vpath)
	}
	return nil
}

func (h *syncHandle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.live(); err != nil {
		return 0, err
	}
	n, err := h.f.ReadAt(p, off)
	if err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, mapErr(err, h.vpath)
	}
	return n, nil
}

func (h *syncHandle) WriteAt(p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.live(); err != nil {
		return 0, err
	}
	n, err := h.f.WriteAt(p, off)
	if err != nil {
		return n, mapErr(err, h.vpath)
	}
	return n, nil
}

func (h *syncHandle) Size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0
	}
	info, err := h.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (h *syncHandle) Truncate(size int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.live(); err != nil {
		return err
	}
	if err := h.f.Truncate(size); err != nil {
		return mapErr(err, h.vpath)
	}
	return nil
}

func (h *syncHandle) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.live(); err != nil {
		return err
	}
	if err := h.f.Sync(); err != nil {
		return mapErr(err, h.vpath)
	}
	return nil
}

func (h *syncHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	h.store.mu.Lock()
	if h.store.holders[h.path] == h {
		delete(h.store.holders, h.path)
	}
	h.store.mu.Unlock()
	return h.f.Close()
}
