// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package ctxstore

import (
	"fmt"
	"sort"
	"sync"
)

// Store is one namespace of mutable entries.
//
// Values are untyped. String values may contain ${name} templates which are
// resolved on read unless the raw accessors are used.
type Store struct {
	namespace string
	registry  *Registry
	entries   map[string]any
	mu        sync.RWMutex
}

func newStore(namespace string, r *Registry) *Store {
	return &Store{
		namespace: namespace,
		registry:  r,
		entries:   make(map[string]any),
	}
}

// New creates a standalone store with no registry. Its main fallback is
// itself only when namespace is MainNamespace.
func New(namespace string) *Store {
	return newStore(namespace, nil)
}

// Namespace returns the store's namespace.
func (s *Store) Namespace() string {
	return s.namespace
}

// Get returns the resolved value for key, or nil.
func (s *Store) Get(key string) any {
	return s.GetOr(key, nil)
}

// GetOr returns the resolved value for key, or def when absent.
func (s *Store) GetOr(key string, def any) any {
	v, ok := s.Raw(key)
	if !ok {
		v = def
	}
	return s.Reword(v, nil)
}

// Lookup returns the resolved value and whether key was present.
func (s *Store) Lookup(key string) (any, bool) {
	v, ok := s.Raw(key)
	if !ok {
		return nil, false
	}
	return s.Reword(v, nil), true
}

// String returns the resolved value for key formatted as a string.
// Missing keys yield "".
func (s *Store) String(key string) string {
	v, ok := s.Lookup(key)
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprint(v)
}

// Raw returns the stored value without template resolution.
func (s *Store) Raw(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// SetDefault stores value only if key is absent and returns the stored value.
func (s *Store) SetDefault(key string, value any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		return existing
	}
	s.entries[key] = value
	return value
}

// Remove deletes key. Removing a missing key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Update merges m onto the store. Existing keys are overwritten.
func (s *Store) Update(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.entries[k] = v
	}
}

// Merge copies every entry of other onto the store.
func (s *Store) Merge(other *Store) {
	if other == nil || other == s {
		return
	}
	s.Update(other.Items())
}

// Keys returns the stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Items returns a shallow copy of the raw entries.
func (s *Store) Items() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Main returns the registry's main store, or nil for standalone stores.
func (s *Store) Main() *Store {
	if s.registry == nil {
		return nil
	}
	return s.registry.Main()
}
