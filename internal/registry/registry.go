// Package registry holds the metadata of every extension the fetcher has
// acquired, keyed by extension ID.
package registry

import (
	"errors"
	"sync"

	"github.com/open-edge-platform/cx-fetcher/internal/ospackage"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrEmptyKey is returned by Put for an empty extension ID.
var ErrEmptyKey = errors.New("registry key must not be empty")

// Registry maps extension IDs to their metadata. Values are copied in and
// out, callers never hold a reference into registry storage.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]ospackage.PackageInfo
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]ospackage.PackageInfo)}
}

// Get returns the metadata recorded for id.
func (r *Registry) Get(id string) (ospackage.PackageInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.entries[id]
	return info, ok
}

// Put records info under id, overwriting any previous entry.
func (r *Registry) Put(id string, info ospackage.PackageInfo) error {
	if id == "" {
		return ErrEmptyKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = info
	return nil
}

// Delete removes id and reports whether it was present.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// Snapshot returns a copy of all entries at call time.
func (r *Registry) Snapshot() map[string]ospackage.PackageInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.entries)
}

// Keys returns the registered IDs in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := maps.Keys(r.entries)
	r.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Replace swaps the whole content for entries. Entries with an empty key are
// rejected before anything is changed.
func (r *Registry) Replace(entries map[string]ospackage.PackageInfo) error {
	if _, ok := entries[""]; ok {
		return ErrEmptyKey
	}
	next := maps.Clone(entries)
	if next == nil {
		next = make(map[string]ospackage.PackageInfo)
	}
	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()
	return nil
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entries = make(map[string]ospackage.PackageInfo)
	r.mu.Unlock()
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
