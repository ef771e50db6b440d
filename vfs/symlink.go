package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// sideIndexName is the out-of-band file holding the symlink index. The
// storage primitive has no native symlinks, so targets live here and
// this layer resolves them; the file is hidden from listings.
const sideIndexName = ".symlinks.json"

// maxLinkDepth bounds symlink resolution before ErrorLoop.
const maxLinkDepth = 40

// symlinkIndex maps normalized link paths to their targets, persisted
// through the store itself.
type symlinkIndex struct {
	mu      sync.Mutex
	store   Store
	targets map[string]string
	loaded  bool
}

func newSymlinkIndex(store Store) *symlinkIndex {
	return &symlinkIndex{
		store:   store,
		targets: make(map[string]string),
	}
}

func (ix *symlinkIndex) ensure(ctx context.Context) error {
	if ix.loaded {
		return nil
	}
	root, err := ix.store.Root(ctx)
	if err != nil {
		return err
	}
	f, err := root.File(ctx, sideIndexName, false)
	if err != nil {
		if errors.Is(err, Err(ErrorNoEntry, "")) {
			ix.loaded = true
			return nil
		}
		return err
	}
	data, err := f.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ix.targets); err != nil {
			// A corrupt index loses links but must not brick the tree.
			ix.targets = make(map[string]string)
		}
	}
	ix.loaded = true
	return nil
}

func (ix *symlinkIndex) persist(ctx context.Context) error {
	data, err := json.Marshal(ix.targets)
	if err != nil {
		return Err(ErrorIo, sideIndexName)
	}
	root, err := ix.store.Root(ctx)
	if err != nil {
		return err
	}
	f, err := root.File(ctx, sideIndexName, true)
	if err != nil {
		return err
	}
	return f.Replace(ctx, data)
}

// lookup returns the target of path, if it is a link.
func (ix *symlinkIndex) lookup(ctx context.Context, path string) (string, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensure(ctx); err != nil {
		return "", false, err
	}
	t, ok := ix.targets[Normalize(path)]
	return t, ok, nil
}

// set records path -> target and persists the index.
func (ix *symlinkIndex) set(ctx context.Context, path, target string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensure(ctx); err != nil {
		return err
	}
	p := Normalize(path)
	if _, exists := ix.targets[p]; exists {
		return Err(ErrorExist, p)
	}
	ix.targets[p] = target
	return ix.persist(ctx)
}

// remove forgets path. Returns ok=false if path was not a link.
func (ix *symlinkIndex) remove(ctx context.Context, path string) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensure(ctx); err != nil {
		return false, err
	}
	p := Normalize(path)
	if _, ok := ix.targets[p]; !ok {
		return false, nil
	}
	delete(ix.targets, p)
	return true, ix.persist(ctx)
}

// removeUnder forgets every link at or under path (rename/rmdir).
func (ix *symlinkIndex) removeUnder(ctx context.Context, path string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensure(ctx); err != nil {
		return err
	}
	p := Normalize(path)
	changed := false
	for link := range ix.targets {
		if isUnder(link, p) {
			delete(ix.targets, link)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return ix.persist(ctx)
}

// under lists links directly inside dir as entries.
func (ix *symlinkIndex) under(ctx context.Context, dir string) ([]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.ensure(ctx); err != nil {
		return nil, err
	}
	d := Normalize(dir)
	var out []Entry
	for link := range ix.targets {
		parent, name := Split(link)
		if parent == d {
			out = append(out, Entry{Name: name, Type: EntryTypeSymlink})
		}
	}
	return out, nil
}
