package registry

import (
	"sync"
)

type entry struct {
	value  any
	typeID TypeID
}

// Registry allocates and tracks opaque handles standing in for host-side
// objects. It exclusively owns the handle -> object mapping; a referenced
// object's lifetime may outlive eviction if retained elsewhere (a body
// kept alive by a stream after its handle is dropped, for example).
//
// All methods are safe for concurrent use from the worker and the
// dispatcher goroutines.
type Registry struct {
	mu        sync.RWMutex
	entries   map[Handle]entry
	next      Handle
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
}

// New creates an empty registry. The first allocated handle is 1.
func New() *Registry {
	return &Registry{
		entries: make(map[Handle]entry),
	}
}

// Register stores a value and returns a fresh handle. Handles increase
// monotonically; a live handle is never handed out twice.
func (r *Registry) Register(typeID TypeID, value any) Handle {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0
	}
	r.next++
	h := r.next
	r.entries[h] = entry{value: value, typeID: typeID}
	r.mu.Unlock()

	r.notify(Event{Kind: EventRegistered, Handle: h, Type: typeID, Value: value})
	return h
}

// Get retrieves the value for a handle.
func (r *Registry) Get(h Handle) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[h]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Handle: h}
	}
	return e.value, nil
}

// GetTyped retrieves the value for a handle, requiring a matching type tag.
func (r *Registry) GetTyped(h Handle, typeID TypeID) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[h]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Handle: h}
	}
	if e.typeID != typeID {
		return nil, &TypeMismatchError{Handle: h, Want: typeID, Got: e.typeID}
	}
	return e.value, nil
}

// Type returns the type tag for a handle.
func (r *Registry) Type(h Handle) (TypeID, error) {
	r.mu.RLock()
	e, ok := r.entries[h]
	r.mu.RUnlock()
	if !ok {
		return TypeUnknown, &NotFoundError{Handle: h}
	}
	return e.typeID, nil
}

// Drop removes a handle. It is idempotent: dropping an unknown or
// already-dropped handle is a no-op, since guest cleanup may run against
// already-torn-down state during error unwinding. Values implementing
// Dropper are released exactly once.
func (r *Registry) Drop(h Handle) {
	r.mu.Lock()
	e, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	r.notify(Event{Kind: EventDropped, Handle: h, Type: e.typeID, Value: e.value})
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Each iterates over all live handles. The callback must not mutate the
// registry; return false to stop early.
func (r *Registry) Each(fn func(Handle, TypeID, any) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for h, e := range r.entries {
		if !fn(h, e.typeID, e.value) {
			return
		}
	}
}

// Clear drops all live handles.
func (r *Registry) Clear() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		r.Drop(h)
	}
}

// Close drops all handles and rejects further registrations.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Clear()
	return nil
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnResourceEvent(e)
	}
}
