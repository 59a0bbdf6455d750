// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package ctxstore provides namespaced, template-resolving key/value stores.
//
// A Registry owns one Store per namespace. Stores are created lazily on first
// access and live as long as the Registry. The "main" namespace is the global
// fallback consulted by every other store during template resolution.
package ctxstore

import (
	"os"
	"sort"
	"strings"
	"sync"
)

// MainNamespace is the namespace used when none is given.
const MainNamespace = "main"

// EnvLookup resolves an environment variable.
type EnvLookup func(key string) (string, bool)

// Registry maps namespaces to stores.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	env    EnvLookup
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnv replaces the environment lookup used during resolution.
func WithEnv(lookup EnvLookup) Option {
	return func(r *Registry) {
		r.env = lookup
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		stores: make(map[string]*Store),
		env:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Namespace returns the store for name, creating it on first access.
// An empty name selects the main namespace.
func (r *Registry) Namespace(name string) *Store {
	if name == "" {
		name = MainNamespace
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[name]; ok {
		return s
	}
	s := newStore(name, r)
	r.stores[name] = s
	return s
}

// Main returns the main namespace.
func (r *Registry) Main() *Store {
	return r.Namespace(MainNamespace)
}

// Detached creates a store that is not registered under its namespace.
// It still falls back to the registry's main store when resolving.
func (r *Registry) Detached(name string) *Store {
	return newStore(name, r)
}

// Namespaces returns the registered namespaces starting with prefix, sorted.
func (r *Registry) Namespaces(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookupEnv(key string) (string, bool) {
	if r == nil || r.env == nil {
		return os.LookupEnv(key)
	}
	return r.env(key)
}
