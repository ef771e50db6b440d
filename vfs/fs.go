package vfs

import (
	"context"
	"strings"
	"sync"
)

// Stat describes a filesystem node.
type Stat struct {
	Type EntryType
	Size uint64
}

// OpenFlags control OpenAt behavior. Creation never materializes
// missing parent directories.
type OpenFlags struct {
	Create    bool
	Directory bool
	Exclusive bool
	Truncate  bool
}

// FS exposes a directory tree over a Store. Symlinks live in an
// out-of-band index and directory listings are cached per subtree; the
// same error codes surface regardless of backend.
type FS struct {
	store Store
	links *symlinkIndex
	cache *dirCache
}

// Option configures an FS.
type Option func(*FS)

// WithCacheSize overrides the listing cache capacity.
func WithCacheSize(n int) Option {
	return func(fs *FS) { fs.cache = newDirCache(n) }
}

// New builds an FS over store.
func New(store Store, opts ...Option) *FS {
	fs := &FS{
		store: store,
		links: newSymlinkIndex(store),
		cache: newDirCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Root opens a descriptor for the root directory.
func (fs *FS) Root(ctx context.Context) (*Descriptor, error) {
	if _, err := fs.store.Root(ctx); err != nil {
		return nil, err
	}
	return &Descriptor{fs: fs, path: "/", isDir: true}, nil
}

// walkDir walks a normalized absolute path to its Dir. Missing
// components surface as no-entry; files along the way surface as
// not-directory.
func (fs *FS) walkDir(ctx context.Context, p string) (Dir, error) {
	cur, err := fs.store.Root(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range Components(p) {
		next, err := cur.Directory(ctx, c, false)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// resolve expands symlinks in p. When followFinal is false the last
// component is left as-is so link-aware operations can see the link
// itself.
func (fs *FS) resolve(ctx context.Context, p string, followFinal bool) (string, error) {
	p = Normalize(p)
	for depth := 0; ; depth++ {
		if depth > maxLinkDepth {
			return "", Err(ErrorLoop, p)
		}
		comps := Components(p)
		cur := "/"
		expanded := false
		for i, c := range comps {
			cur = Join(cur, c)
			last := i == len(comps)-1
			if last && !followFinal {
				break
			}
			target, ok, err := fs.links.lookup(ctx, cur)
			if err != nil {
				return "", err
			}
			if !ok {
				continue
			}
			parent, _ := Split(cur)
			var resolved string
			if strings.HasPrefix(target, "/") {
				resolved = Normalize(target)
			} else {
				resolved = Join(parent, target)
			}
			for _, rest := range comps[i+1:] {
				resolved = Join(resolved, rest)
			}
			p = resolved
			expanded = true
			break
		}
		if !expanded {
			return p, nil
		}
	}
}

// childKind probes what occupies name inside dir.
func childKind(ctx context.Context, dir Dir, name string) (EntryType, error) {
	if _, err := dir.Directory(ctx, name, false); err == nil {
		return EntryTypeDirectory, nil
	} else if CodeOf(err) != ErrorNoEntry && CodeOf(err) != ErrorNotDirectory {
		return EntryTypeUnknown, err
	}
	if _, err := dir.File(ctx, name, false); err == nil {
		return EntryTypeRegularFile, nil
	} else if CodeOf(err) != ErrorNoEntry {
		return EntryTypeUnknown, err
	}
	return EntryTypeUnknown, Err(ErrorNoEntry, name)
}

// OpenAt opens rel against the directory descriptor d. Symlinks in the
// path are followed. Create applies only to the final component.
func (fs *FS) OpenAt(ctx context.Context, d *Descriptor, rel string, flags OpenFlags) (*Descriptor, error) {
	if !d.isDir {
		return nil, Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), true)
	if err != nil {
		return nil, err
	}
	if full == "/" {
		return fs.Root(ctx)
	}
	if fs.reserved(full) {
		return nil, Err(ErrorNoEntry, full)
	}
	parentPath, name := Split(full)
	parent, err := fs.walkDir(ctx, parentPath)
	if err != nil {
		return nil, err
	}

	if flags.Directory {
		if flags.Create && flags.Exclusive {
			if _, err := childKind(ctx, parent, name); err == nil {
				return nil, Err(ErrorExist, full)
			}
		}
		if _, err := parent.Directory(ctx, name, flags.Create); err != nil {
			return nil, err
		}
		if flags.Create {
			fs.cache.invalidate(full)
		}
		return &Descriptor{fs: fs, path: full, isDir: true}, nil
	}

	if flags.Create && flags.Exclusive {
		if _, err := childKind(ctx, parent, name); err == nil {
			return nil, Err(ErrorExist, full)
		}
	}
	f, err := parent.File(ctx, name, flags.Create)
	if err != nil {
		return nil, err
	}
	if flags.Truncate {
		if err := f.Replace(ctx, nil); err != nil {
			return nil, err
		}
	}
	if flags.Create || flags.Truncate {
		fs.cache.invalidate(full)
	}
	return &Descriptor{fs: fs, path: full, file: f}, nil
}

// StatAt stats rel against d, optionally following a final symlink.
func (fs *FS) StatAt(ctx context.Context, d *Descriptor, rel string, followLinks bool) (Stat, error) {
	if !d.isDir {
		return Stat{}, Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), followLinks)
	if err != nil {
		return Stat{}, err
	}
	if !followLinks {
		if _, ok, err := fs.links.lookup(ctx, full); err != nil {
			return Stat{}, err
		} else if ok {
			return Stat{Type: EntryTypeSymlink}, nil
		}
	}
	return fs.statPath(ctx, full)
}

func (fs *FS) statPath(ctx context.Context, full string) (Stat, error) {
	if full == "/" {
		return Stat{Type: EntryTypeDirectory}, nil
	}
	if fs.reserved(full) {
		return Stat{}, Err(ErrorNoEntry, full)
	}
	parentPath, name := Split(full)
	parent, err := fs.walkDir(ctx, parentPath)
	if err != nil {
		return Stat{}, err
	}
	kind, err := childKind(ctx, parent, name)
	if err != nil {
		return Stat{}, err
	}
	st := Stat{Type: kind}
	if kind == EntryTypeRegularFile {
		f, err := parent.File(ctx, name, false)
		if err != nil {
			return Stat{}, err
		}
		size, err := f.Size(ctx)
		if err != nil {
			return Stat{}, err
		}
		st.Size = size
	}
	return st, nil
}

// CreateDirectoryAt makes a single new directory. The parent must
// already exist and the name must be free.
func (fs *FS) CreateDirectoryAt(ctx context.Context, d *Descriptor, rel string) error {
	if !d.isDir {
		return Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), false)
	if err != nil {
		return err
	}
	if full == "/" || fs.reserved(full) {
		return Err(ErrorExist, full)
	}
	parentPath, name := Split(full)
	parent, err := fs.walkDir(ctx, parentPath)
	if err != nil {
		return err
	}
	if _, err := childKind(ctx, parent, name); err == nil {
		return Err(ErrorExist, full)
	} else if CodeOf(err) != ErrorNoEntry {
		return err
	}
	if ok, err := fs.isLink(ctx, full); err != nil {
		return err
	} else if ok {
		return Err(ErrorExist, full)
	}
	if _, err := parent.Directory(ctx, name, true); err != nil {
		return err
	}
	fs.cache.invalidate(full)
	return nil
}

// UnlinkFileAt removes a file or symlink. Directories are rejected
// with is-directory.
func (fs *FS) UnlinkFileAt(ctx context.Context, d *Descriptor, rel string) error {
	if !d.isDir {
		return Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), false)
	if err != nil {
		return err
	}
	if fs.reserved(full) {
		return Err(ErrorNoEntry, full)
	}
	if removed, err := fs.links.remove(ctx, full); err != nil {
		return err
	} else if removed {
		fs.cache.invalidate(full)
		return nil
	}
	parentPath, name := Split(full)
	parent, err := fs.walkDir(ctx, parentPath)
	if err != nil {
		return err
	}
	kind, err := childKind(ctx, parent, name)
	if err != nil {
		return err
	}
	if kind == EntryTypeDirectory {
		return Err(ErrorIsDirectory, full)
	}
	if err := parent.Remove(ctx, name); err != nil {
		return err
	}
	fs.cache.invalidate(full)
	return nil
}

// RemoveDirectoryAt removes an empty directory.
func (fs *FS) RemoveDirectoryAt(ctx context.Context, d *Descriptor, rel string) error {
	if !d.isDir {
		return Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), false)
	if err != nil {
		return err
	}
	if full == "/" {
		return Err(ErrorNotPermitted, full)
	}
	parentPath, name := Split(full)
	parent, err := fs.walkDir(ctx, parentPath)
	if err != nil {
		return err
	}
	kind, err := childKind(ctx, parent, name)
	if err != nil {
		return err
	}
	if kind != EntryTypeDirectory {
		return Err(ErrorNotDirectory, full)
	}
	entries, err := fs.listPath(ctx, full)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return Err(ErrorNotEmpty, full)
	}
	if err := parent.Remove(ctx, name); err != nil {
		return err
	}
	if err := fs.links.removeUnder(ctx, full); err != nil {
		return err
	}
	fs.cache.invalidate(full)
	return nil
}

// RenameAt moves oldRel under oldD to newRel under newD. Both
// descriptors must belong to the same FS.
func (fs *FS) RenameAt(ctx context.Context, oldD *Descriptor, oldRel string, newD *Descriptor, newRel string) error {
	if !oldD.isDir || !newD.isDir {
		return Err(ErrorNotDirectory, oldD.path)
	}
	if oldD.fs != newD.fs || oldD.fs != fs {
		return Err(ErrorCrossDevice, oldRel)
	}
	oldFull, err := fs.resolve(ctx, Join(oldD.path, oldRel), false)
	if err != nil {
		return err
	}
	newFull, err := fs.resolve(ctx, Join(newD.path, newRel), false)
	if err != nil {
		return err
	}
	if oldFull == "/" || newFull == "/" || fs.reserved(oldFull) || fs.reserved(newFull) {
		return Err(ErrorNotPermitted, oldFull)
	}
	if oldFull == newFull {
		return nil
	}
	if isUnder(newFull, oldFull) {
		return Err(ErrorInvalid, newFull)
	}

	// A symlink renames purely inside the index.
	if ok, err := fs.isLink(ctx, oldFull); err != nil {
		return err
	} else if ok {
		target, _, err := fs.links.lookup(ctx, oldFull)
		if err != nil {
			return err
		}
		if _, err := fs.links.remove(ctx, oldFull); err != nil {
			return err
		}
		if err := fs.links.set(ctx, newFull, target); err != nil {
			return err
		}
		fs.cache.invalidate(oldFull)
		fs.cache.invalidate(newFull)
		return nil
	}

	oldParentPath, oldName := Split(oldFull)
	newParentPath, newName := Split(newFull)
	oldParent, err := fs.walkDir(ctx, oldParentPath)
	if err != nil {
		return err
	}
	newParent, err := fs.walkDir(ctx, newParentPath)
	if err != nil {
		return err
	}
	if err := oldParent.Move(ctx, oldName, newParent, newName); err != nil {
		return err
	}
	if err := fs.rewriteLinks(ctx, oldFull, newFull); err != nil {
		return err
	}
	fs.cache.invalidate(oldFull)
	fs.cache.invalidate(newFull)
	return nil
}

// rewriteLinks moves index entries rooted at oldFull to newFull after a
// subtree rename.
func (fs *FS) rewriteLinks(ctx context.Context, oldFull, newFull string) error {
	fs.links.mu.Lock()
	defer fs.links.mu.Unlock()
	if err := fs.links.ensure(ctx); err != nil {
		return err
	}
	moved := make(map[string]string)
	for link, target := range fs.links.targets {
		if isUnder(link, oldFull) {
			moved[newFull+strings.TrimPrefix(link, oldFull)] = target
			delete(fs.links.targets, link)
		}
	}
	if len(moved) == 0 {
		return nil
	}
	for link, target := range moved {
		fs.links.targets[Normalize(link)] = target
	}
	return fs.links.persist(ctx)
}

// SymlinkAt records a symlink at rel pointing at target. The parent
// must exist and the name must be free.
func (fs *FS) SymlinkAt(ctx context.Context, d *Descriptor, target, rel string) error {
	if !d.isDir {
		return Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), false)
	if err != nil {
		return err
	}
	if full == "/" || fs.reserved(full) {
		return Err(ErrorExist, full)
	}
	parentPath, name := Split(full)
	parent, err := fs.walkDir(ctx, parentPath)
	if err != nil {
		return err
	}
	if _, err := childKind(ctx, parent, name); err == nil {
		return Err(ErrorExist, full)
	} else if CodeOf(err) != ErrorNoEntry {
		return err
	}
	if err := fs.links.set(ctx, full, target); err != nil {
		return err
	}
	fs.cache.invalidate(full)
	return nil
}

// ReadlinkAt returns the stored target of a symlink.
func (fs *FS) ReadlinkAt(ctx context.Context, d *Descriptor, rel string) (string, error) {
	if !d.isDir {
		return "", Err(ErrorNotDirectory, d.path)
	}
	full, err := fs.resolve(ctx, Join(d.path, rel), false)
	if err != nil {
		return "", err
	}
	target, ok, err := fs.links.lookup(ctx, full)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", Err(ErrorInvalid, full)
	}
	return target, nil
}

func (fs *FS) isLink(ctx context.Context, full string) (bool, error) {
	_, ok, err := fs.links.lookup(ctx, full)
	return ok, err
}

// reserved hides the symlink index file from every operation.
func (fs *FS) reserved(full string) bool {
	return full == "/"+sideIndexName
}

// listPath returns the merged listing of a directory: store entries
// plus index symlinks, minus the reserved index file.
func (fs *FS) listPath(ctx context.Context, full string) ([]Entry, error) {
	if cached, ok := fs.cache.get(full); ok {
		return cached, nil
	}
	dir, err := fs.walkDir(ctx, full)
	if err != nil {
		return nil, err
	}
	raw, err := dir.Entries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if full == "/" && e.Name == sideIndexName {
			continue
		}
		entries = append(entries, e)
	}
	linked, err := fs.links.under(ctx, full)
	if err != nil {
		return nil, err
	}
	entries = append(entries, linked...)
	fs.cache.put(full, entries)
	return entries, nil
}

// Descriptor is an open handle on a file or directory. File
// descriptors pre-bind their File; byte-range access additionally
// acquires the store's exclusive sync handle on first use.
type Descriptor struct {
	fs    *FS
	path  string
	isDir bool
	file  File

	mu   sync.Mutex
	sync SyncHandle
}

// Path returns the normalized absolute path the descriptor was opened
// at.
func (d *Descriptor) Path() string { return d.path }

// IsDirectory reports whether the descriptor names a directory.
func (d *Descriptor) IsDirectory() bool { return d.isDir }

// Stat describes the descriptor's node.
func (d *Descriptor) Stat(ctx context.Context) (Stat, error) {
	if d.isDir {
		return Stat{Type: EntryTypeDirectory}, nil
	}
	d.mu.Lock()
	h := d.sync
	d.mu.Unlock()
	if h != nil {
		return Stat{Type: EntryTypeRegularFile, Size: uint64(h.Size())}, nil
	}
	size, err := d.file.Size(ctx)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Type: EntryTypeRegularFile, Size: size}, nil
}

// Acquire obtains the exclusive sync handle for byte-range access.
// Calling it again on the same descriptor is a no-op.
func (d *Descriptor) Acquire(ctx context.Context) error {
	if d.isDir {
		return Err(ErrorIsDirectory, d.path)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sync != nil {
		return nil
	}
	h, err := d.file.AcquireSync(ctx)
	if err != nil {
		return err
	}
	d.sync = h
	return nil
}

// ReadAt reads at an absolute offset, acquiring the sync handle on
// first use. Reads past the end return a short count.
func (d *Descriptor) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := d.Acquire(ctx); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, Err(ErrorInvalidSeek, d.path)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sync.ReadAt(p, off)
}

// WriteAt writes at an absolute offset, extending the file as needed.
func (d *Descriptor) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := d.Acquire(ctx); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, Err(ErrorInvalidSeek, d.path)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.sync.WriteAt(p, off)
	if err == nil {
		d.fs.cache.invalidate(d.path)
	}
	return n, err
}

// SetSize truncates or extends the file.
func (d *Descriptor) SetSize(ctx context.Context, size uint64) error {
	if err := d.Acquire(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.sync.Truncate(int64(size)); err != nil {
		return err
	}
	d.fs.cache.invalidate(d.path)
	return nil
}

// Flush persists buffered writes.
func (d *Descriptor) Flush(ctx context.Context) error {
	d.mu.Lock()
	h := d.sync
	d.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Flush()
}

// Snapshot reads the whole file through the async path.
func (d *Descriptor) Snapshot(ctx context.Context) ([]byte, error) {
	if d.isDir {
		return nil, Err(ErrorIsDirectory, d.path)
	}
	d.mu.Lock()
	h := d.sync
	d.mu.Unlock()
	if h != nil {
		buf := make([]byte, h.Size())
		if _, err := h.ReadAt(buf, 0); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return d.file.Snapshot(ctx)
}

// Replace swaps the whole file contents through the async path.
func (d *Descriptor) Replace(ctx context.Context, data []byte) error {
	if d.isDir {
		return Err(ErrorIsDirectory, d.path)
	}
	d.mu.Lock()
	h := d.sync
	d.mu.Unlock()
	if h != nil {
		if err := h.Truncate(0); err != nil {
			return err
		}
		if _, err := h.WriteAt(data, 0); err != nil {
			return err
		}
	} else if err := d.file.Replace(ctx, data); err != nil {
		return err
	}
	d.fs.cache.invalidate(d.path)
	return nil
}

// ReadDirectory starts a one-shot listing stream. The listing is a
// point-in-time copy; the stream cannot be rewound.
func (d *Descriptor) ReadDirectory(ctx context.Context) (*DirectoryEntryStream, error) {
	if !d.isDir {
		return nil, Err(ErrorNotDirectory, d.path)
	}
	entries, err := d.fs.listPath(ctx, d.path)
	if err != nil {
		return nil, err
	}
	snap := make([]Entry, len(entries))
	copy(snap, entries)
	return &DirectoryEntryStream{entries: snap}, nil
}

// Close releases the sync handle if one was acquired. Closing twice is
// harmless.
func (d *Descriptor) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sync == nil {
		return nil
	}
	h := d.sync
	d.sync = nil
	return h.Release()
}

// DirectoryEntryStream yields directory entries one at a time.
type DirectoryEntryStream struct {
	mu      sync.Mutex
	entries []Entry
	pos     int
}

// Next returns the next entry, or ok=false once exhausted.
func (s *DirectoryEntryStream) Next() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.entries) {
		return Entry{}, false
	}
	e := s.entries[s.pos]
	s.pos++
	return e, true
}
