package bus

import (
	"sync"
)

// Registry maps MountKey to Mount instances and handles creation and
// teardown. A Mount is created lazily on first relay attach or first
// subscriber request, whichever happens first, and removed once both
// its publisher and subscriber set are empty.
type Registry struct {
	mu     sync.RWMutex
	mounts map[MountKey]*Mount
}

// NewRegistry creates an empty mount registry.
func NewRegistry() *Registry {
	return &Registry{
		mounts: make(map[MountKey]*Mount),
	}
}

// GetOrCreate retrieves the mount for key, creating it if absent.
// Returns the mount and true if it was newly created.
func (r *Registry) GetOrCreate(key MountKey) (*Mount, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, exists := r.mounts[key]; exists {
		return m, false
	}

	m := NewMount(key)
	r.mounts[key] = m
	return m, true
}

// Get retrieves a mount by key, returning nil if not found.
func (r *Registry) Get(key MountKey) *Mount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mounts[key]
}

// Remove removes a mount from the registry. It refuses (returns false)
// unless the mount is empty, so an in-flight publisher or subscriber
// is never orphaned mid-stream.
func (r *Registry) Remove(key MountKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.mounts[key]
	if !exists {
		return false
	}
	if !m.IsEmpty() {
		return false
	}

	delete(r.mounts, key)
	return true
}

// RemoveIfEmpty is an alias for Remove kept for call-site clarity at
// sweep/reconcile sites that only intend a conditional cleanup.
func (r *Registry) RemoveIfEmpty(key MountKey) bool {
	return r.Remove(key)
}

// Count returns the number of mounts currently tracked, empty or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mounts)
}

// List returns all mount keys in the registry.
func (r *Registry) List() []MountKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]MountKey, 0, len(r.mounts))
	for key := range r.mounts {
		keys = append(keys, key)
	}
	return keys
}

// Sweep calls fn for every mount currently tracked. The mount list is
// copied under r.mu and fn runs after the lock is released, so fn may
// call back into the registry.
func (r *Registry) Sweep(fn func(*Mount)) {
	r.mu.RLock()
	mounts := make([]*Mount, 0, len(r.mounts))
	for _, m := range r.mounts {
		mounts = append(mounts, m)
	}
	r.mu.RUnlock()

	for _, m := range mounts {
		fn(m)
	}
}
