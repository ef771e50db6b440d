package vfs

import (
	"context"
	"sync"
)

// InputStream reads file bytes from a point-in-time snapshot. The
// whole file is captured up front through the async path, so the
// stream never blocks after construction.
type InputStream struct {
	mu     sync.Mutex
	data   []byte
	pos    int
	closed bool
}

// ReadViaStream snapshots the file and returns a stream positioned at
// offset. Offsets past the end yield an immediately-exhausted stream.
func ReadViaStream(ctx context.Context, d *Descriptor, offset uint64) (*InputStream, error) {
	data, err := d.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	pos := int(offset)
	if pos > len(data) {
		pos = len(data)
	}
	return &InputStream{data: data, pos: pos}, nil
}

// NewInputStream wraps raw bytes in a stream.
func NewInputStream(data []byte) *InputStream {
	return &InputStream{data: data}
}

// Read returns up to max bytes. Exhaustion is reported with eof=true
// alongside the final (possibly empty) chunk.
func (s *InputStream) Read(max uint64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, true, Err(ErrorBadDescriptor, "")
	}
	if s.pos >= len(s.data) {
		return nil, true, nil
	}
	n := len(s.data) - s.pos
	if uint64(n) > max {
		n = int(max)
	}
	chunk := s.data[s.pos : s.pos+n]
	s.pos += n
	return chunk, s.pos >= len(s.data), nil
}

// Skip advances without copying.
func (s *InputStream) Skip(max uint64) (uint64, bool, error) {
	chunk, eof, err := s.Read(max)
	return uint64(len(chunk)), eof, err
}

func (s *InputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// OutputStream writes through to the file at a tracked offset. Each
// Write lands before it returns; there is no buffered tail to lose.
type OutputStream struct {
	mu     sync.Mutex
	d      *Descriptor
	off    int64
	closed bool
}

// WriteViaStream opens a write-through stream at offset.
func WriteViaStream(ctx context.Context, d *Descriptor, offset uint64) (*OutputStream, error) {
	if err := d.Acquire(ctx); err != nil {
		return nil, err
	}
	return &OutputStream{d: d, off: int64(offset)}, nil
}

// AppendViaStream opens a write-through stream positioned at the
// current end of the file.
func AppendViaStream(ctx context.Context, d *Descriptor) (*OutputStream, error) {
	if err := d.Acquire(ctx); err != nil {
		return nil, err
	}
	st, err := d.Stat(ctx)
	if err != nil {
		return nil, err
	}
	return &OutputStream{d: d, off: int64(st.Size)}, nil
}

// Write appends p at the stream offset and advances it.
func (s *OutputStream) Write(ctx context.Context, p []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, Err(ErrorBadDescriptor, s.d.Path())
	}
	n, err := s.d.WriteAt(ctx, p, s.off)
	s.off += int64(n)
	return uint64(n), err
}

// Flush persists buffered bytes in the underlying handle.
func (s *OutputStream) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Err(ErrorBadDescriptor, s.d.Path())
	}
	return s.d.Flush(ctx)
}

func (s *OutputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
