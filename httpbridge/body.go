package httpbridge

import (
	"sync"
)

// BodyBuffer accumulates an outgoing body as in-memory chunks. The
// whole body streams out as one unit once the writer finishes.
type BodyBuffer struct {
	mu       sync.Mutex
	chunks   [][]byte
	size     int
	finished bool
}

// NewBodyBuffer returns an empty body.
func NewBodyBuffer() *BodyBuffer {
	return &BodyBuffer{}
}

// Write appends a chunk. Writing after Finish is rejected.
func (b *BodyBuffer) Write(chunk []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return errBodyFinished
	}
	owned := make([]byte, len(chunk))
	copy(owned, chunk)
	b.chunks = append(b.chunks, owned)
	b.size += len(owned)
	return nil
}

// Finish marks the body complete. Calling it twice is harmless.
func (b *BodyBuffer) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finished = true
}

// Finished reports whether the writer is done.
func (b *BodyBuffer) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finished
}

// Bytes flattens the accumulated chunks.
func (b *BodyBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Len returns the accumulated size.
func (b *BodyBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

type bodyFinishedError struct{}

func (bodyFinishedError) Error() string { return "httpbridge: body already finished" }

var errBodyFinished error = bodyFinishedError{}
