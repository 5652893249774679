package shmring

import "sync"

// Handle names a registered ring across module boundaries, where a *Ring
// cannot travel inside a bus payload. The zero Handle is invalid.
type Handle uint32

var registry = struct {
	sync.RWMutex
	rings map[Handle]*Ring
	next  Handle
}{rings: map[Handle]*Ring{}, next: 1}

// Register adds r to the registry and returns its new Handle.
func Register(r *Ring) Handle {
	if r == nil {
		return 0
	}
	registry.Lock()
	h := registry.next
	registry.next++
	registry.rings[h] = r
	registry.Unlock()
	return h
}

// NewRegistered allocates a ring as New does and registers it in one step.
func NewRegistered(size int) (Handle, *Ring) {
	r := New(size)
	return Register(r), r
}

// Get resolves a Handle, returning nil for zero or unknown handles.
func Get(h Handle) *Ring {
	if h == 0 {
		return nil
	}
	registry.RLock()
	r := registry.rings[h]
	registry.RUnlock()
	return r
}

// Close drops h from the registry. The ring itself is untouched; holders of
// a *Ring keep a working reference.
func Close(h Handle) {
	registry.Lock()
	delete(registry.rings, h)
	registry.Unlock()
}
