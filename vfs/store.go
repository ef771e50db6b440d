package vfs

import "context"

// EntryType classifies a directory entry or descriptor target.
type EntryType uint8

const (
	EntryTypeUnknown EntryType = iota
	EntryTypeDirectory
	EntryTypeRegularFile
	EntryTypeSymlink
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeDirectory:
		return "directory"
	case EntryTypeRegularFile:
		return "regular-file"
	case EntryTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry is one name in a directory listing.
type Entry struct {
	Name string
	Type EntryType
	Size uint64
}

// Store is the origin-scoped hierarchical storage primitive the
// filesystem layer is built over. Handle acquisition is asynchronous
// (context-bound); synchronous byte access requires the explicit
// acquisition step on File. The store knows nothing about symlinks.
type Store interface {
	// Root returns the root directory handle.
	Root(ctx context.Context) (Dir, error)
}

// Dir is an acquired directory handle.
type Dir interface {
	// Directory acquires (optionally creating) a child directory.
	// A missing child without create fails with ErrorNoEntry; a child
	// of the wrong kind fails with ErrorNotDirectory.
	Directory(ctx context.Context, name string, create bool) (Dir, error)

	// File acquires (optionally creating) a child regular file.
	File(ctx context.Context, name string, create bool) (File, error)

	// Entries enumerates the directory. One enumeration per call; the
	// filesystem layer caches per subtree.
	Entries(ctx context.Context) ([]Entry, error)

	// Remove deletes a child by name. Non-empty directories fail with
	// ErrorNotEmpty.
	Remove(ctx context.Context, name string) error

	// Move reparents a child under dst with a new name. dst must
	// belong to the same store; anything else fails ErrorCrossDevice.
	Move(ctx context.Context, name string, dst Dir, newName string) error
}

// File is an acquired regular-file handle.
type File interface {
	// Snapshot reads the whole file through the asynchronous path.
	Snapshot(ctx context.Context) ([]byte, error)

	// Replace writes the whole file through the asynchronous path.
	Replace(ctx context.Context, data []byte) error

	// Size reports the current size.
	Size(ctx context.Context) (uint64, error)

	// AcquireSync obtains the synchronous-access handle for this file.
	// Acquisition is idempotent for the same File; while one File holds
	// the handle, other holders fail with ErrorBusy. Offset I/O must go
	// through the acquired handle.
	AcquireSync(ctx context.Context) (SyncHandle, error)
}

// SyncHandle is the synchronous-capable access handle, usable only
// after an explicit AcquireSync from a worker context.
type SyncHandle interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	Truncate(size int64) error
	Flush() error
	Release() error
}
