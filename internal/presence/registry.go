// Package presence tracks which principals currently hold a live connection.
//
// The registry is process-scoped: it is not shared between server instances,
// so running more than one realtime gateway needs a shared backing store.
package presence

import (
	"sort"
	"sync"
)

// Mirror receives presence changes for out-of-process observers.
// Implementations must not block.
type Mirror interface {
	SetOnline(userID string)
	SetOffline(userID string)
}

// Registry maps a principal id to its current connection handle.
// At most one handle is kept per principal: the latest registration wins.
type Registry[H comparable] struct {
	mu      sync.RWMutex
	handles map[string]H
	mirror  Mirror
}

func NewRegistry[H comparable](mirror Mirror) *Registry[H] {
	return &Registry[H]{
		handles: make(map[string]H),
		mirror:  mirror,
	}
}

// Register records h as the connection of userID. If another handle was
// registered it is returned with replaced=true so the caller can close it.
func (r *Registry[H]) Register(userID string, h H) (previous H, replaced bool) {
	r.mu.Lock()
	previous, replaced = r.handles[userID]
	r.handles[userID] = h
	r.mu.Unlock()

	if replaced && previous == h {
		var zero H
		return zero, false
	}
	if !replaced && r.mirror != nil {
		r.mirror.SetOnline(userID)
	}
	return previous, replaced
}

// Unregister removes the entry for userID only while h is still the current
// handle, so a late disconnect of a replaced connection cannot evict its successor.
func (r *Registry[H]) Unregister(userID string, h H) bool {
	r.mu.Lock()
	current, ok := r.handles[userID]
	if !ok || current != h {
		r.mu.Unlock()
		return false
	}
	delete(r.handles, userID)
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.SetOffline(userID)
	}
	return true
}

// Lookup returns the current handle of userID.
func (r *Registry[H]) Lookup(userID string) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[userID]
	return h, ok
}

// IsCurrent reports whether h is the registered handle of userID.
func (r *Registry[H]) IsCurrent(userID string, h H) bool {
	current, ok := r.Lookup(userID)
	return ok && current == h
}

// Snapshot returns the online principal ids in ascending order.
func (r *Registry[H]) Snapshot() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Handles returns every registered handle.
func (r *Registry[H]) Handles() []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]H, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
