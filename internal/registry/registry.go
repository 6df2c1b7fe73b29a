// Package registry caches synthesized types per (service, name, kind) so
// each type is built at most once and relation resolution has a single
// place to find sibling types.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Key identifies one cached type
type Key struct {
	Service string
	Name    string
	Kind    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Service, k.Kind, k.Name)
}

// flightKey quotes each part so names containing the separator cannot
// share a flight
func (k Key) flightKey() string {
	return fmt.Sprintf("%q/%q/%q", k.Service, k.Kind, k.Name)
}

// Registry holds built values of type V
type Registry[V any] struct {
	mu       sync.RWMutex
	entries  map[Key]V
	group    singleflight.Group
	builds   int64
	inflight map[Key]bool

	// Invalidation bumps these so a build that started earlier is not stored
	epoch       uint64
	generations map[Key]uint64
	services    map[string]uint64
}

type stamp struct {
	epoch, key, service uint64
}

// New creates an empty registry
func New[V any]() *Registry[V] {
	return &Registry[V]{
		entries:     make(map[Key]V),
		inflight:    make(map[Key]bool),
		generations: make(map[Key]uint64),
		services:    make(map[string]uint64),
	}
}

// Get returns the cached value for key, if present
func (r *Registry[V]) Get(key Key) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[key]
	return v, ok
}

func (r *Registry[V]) stampLocked(key Key) stamp {
	return stamp{epoch: r.epoch, key: r.generations[key], service: r.services[key.Service]}
}

// GetOrBuild returns the cached value for key, calling build on a miss.
// Concurrent callers for the same key share one build; failed builds are not
// cached so a later call may retry. A build overtaken by an invalidation of
// its key is handed to the callers waiting on it but not cached.
func (r *Registry[V]) GetOrBuild(key Key, build func() (V, error)) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}

	res, err, _ := r.group.Do(key.flightKey(), func() (interface{}, error) {
		r.mu.Lock()
		// Another flight may have stored the value between our read and Do
		if v, ok := r.entries[key]; ok {
			r.mu.Unlock()
			return v, nil
		}
		started := r.stampLocked(key)
		r.inflight[key] = true
		r.mu.Unlock()

		v, err := build()

		r.mu.Lock()
		defer r.mu.Unlock()
		if started == r.stampLocked(key) {
			delete(r.inflight, key)
			if err == nil {
				r.entries[key] = v
				r.builds++
			}
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return res.(V), nil
}

// Set stores value under key, replacing any previous entry
func (r *Registry[V]) Set(key Key, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// Invalidate removes key. Removing an absent key is not an error.
func (r *Registry[V]) Invalidate(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	r.generations[key]++
	r.forgetLocked(key)
}

// InvalidateService removes every entry belonging to service and reports how
// many were removed
func (r *Registry[V]) InvalidateService(service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key := range r.entries {
		if key.Service == service {
			delete(r.entries, key)
			removed++
		}
	}
	r.services[service]++
	for key := range r.inflight {
		if key.Service == service {
			r.forgetLocked(key)
		}
	}
	return removed
}

// forgetLocked detaches a running build of key so later callers start over
func (r *Registry[V]) forgetLocked(key Key) {
	if r.inflight[key] {
		delete(r.inflight, key)
		r.group.Forget(key.flightKey())
	}
}

// Len returns the number of cached entries
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Builds returns how many values have been built and stored by GetOrBuild
func (r *Registry[V]) Builds() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builds
}

// Keys returns the cached keys in a stable order
func (r *Registry[V]) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]Key, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Clear removes all entries (useful for testing)
func (r *Registry[V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[Key]V)
	r.epoch++
	for key := range r.inflight {
		r.forgetLocked(key)
	}
}
