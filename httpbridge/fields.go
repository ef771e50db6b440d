package httpbridge

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Fields is an ordered, case-insensitive header multimap. Response
// headers become immutable once attached to a sent response.
type Fields struct {
	mu        sync.Mutex
	entries   []Field
	immutable bool
}

// Field is a single header name/value pair.
type Field struct {
	Name  string
	Value []byte
}

// NewFields returns an empty mutable field set.
func NewFields() *Fields {
	return &Fields{}
}

// FieldsFromHeader copies a net/http header map, sorted by name for a
// stable order.
func FieldsFromHeader(h http.Header) *Fields {
	f := NewFields()
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range h[name] {
			f.entries = append(f.entries, Field{Name: name, Value: []byte(v)})
		}
	}
	return f
}

// ErrImmutable reports mutation of a frozen field set.
type immutableError struct{}

func (immutableError) Error() string { return "httpbridge: fields are immutable" }

// ErrImmutable is returned when a frozen field set is mutated.
var ErrImmutable error = immutableError{}

// Get returns every value for name.
func (f *Fields) Get(name string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, e := range f.entries {
		if strings.EqualFold(e.Name, name) {
			out = append(out, e.Value)
		}
	}
	return out
}

// Has reports whether name has at least one value.
func (f *Fields) Has(name string) bool {
	return len(f.Get(name)) > 0
}

// Set replaces all values for name.
func (f *Fields) Set(name string, values [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.immutable {
		return ErrImmutable
	}
	f.deleteLocked(name)
	for _, v := range values {
		f.entries = append(f.entries, Field{Name: name, Value: v})
	}
	return nil
}

// Append adds one value for name, keeping existing values.
func (f *Fields) Append(name string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.immutable {
		return ErrImmutable
	}
	f.entries = append(f.entries, Field{Name: name, Value: value})
	return nil
}

// Delete removes all values for name.
func (f *Fields) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.immutable {
		return ErrImmutable
	}
	f.deleteLocked(name)
	return nil
}

func (f *Fields) deleteLocked(name string) {
	kept := f.entries[:0]
	for _, e := range f.entries {
		if !strings.EqualFold(e.Name, name) {
			kept = append(kept, e)
		}
	}
	f.entries = kept
}

// Entries returns a copy of every pair in order.
func (f *Fields) Entries() []Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Field, len(f.entries))
	copy(out, f.entries)
	return out
}

// Clone returns a mutable copy.
func (f *Fields) Clone() *Fields {
	return &Fields{entries: f.Entries()}
}

// Freeze makes the field set immutable.
func (f *Fields) Freeze() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.immutable = true
}

// Header converts to a net/http header map.
func (f *Fields) Header() http.Header {
	h := make(http.Header)
	for _, e := range f.Entries() {
		h.Add(e.Name, string(e.Value))
	}
	return h
}
