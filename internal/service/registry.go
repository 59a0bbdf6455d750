// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
)

// Namespace is the store namespace holding registered services.
const Namespace = "collection.services"

// Registry is a catalogue of services kept in a context store namespace.
//
// Keys are dotted: a service registered with a scope is stored under
// "scope.name". Scoped sub-registries live in "collection.services.<scope>".
type Registry struct {
	stores *ctxstore.Registry
	store  *ctxstore.Store
	scope  string

	mu     sync.Mutex
	shared map[string]*Registry
}

// NewRegistry creates the root registry backed by stores.
func NewRegistry(stores *ctxstore.Registry) *Registry {
	return newRegistry(stores, "")
}

func newRegistry(stores *ctxstore.Registry, scope string) *Registry {
	ns := Namespace
	if scope != "" {
		ns += "." + scope
	}
	return &Registry{
		stores: stores,
		store:  stores.Namespace(ns),
		scope:  scope,
		shared: make(map[string]*Registry),
	}
}

// Scope returns the registry scope, empty for the root.
func (r *Registry) Scope() string { return r.scope }

// Shared returns the sub-registry for scope, creating it on first use.
func (r *Registry) Shared(scope string) *Registry {
	if scope == "" {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.shared[scope]; ok {
		return sub
	}
	full := scope
	if r.scope != "" {
		full = r.scope + "." + scope
	}
	sub := newRegistry(r.stores, full)
	r.shared[scope] = sub
	return sub
}

// Add stores svc under name, defaulting to the service name.
func (r *Registry) Add(svc *Service, name string) string {
	return r.Register(svc, name, "")
}

// Register stores svc under "scope.name", or name when scope is empty.
// An existing entry with the same key is replaced.
func (r *Registry) Register(svc *Service, name, scope string) string {
	if name == "" {
		name = svc.Name()
	}
	key := name
	if scope != "" {
		key = scope + "." + name
	}
	r.store.Set(key, svc)

	logScope := r.scope
	if logScope == "" {
		logScope = "application"
	}
	slog.Info("added service", "registry", logScope, "key", key)
	return key
}

// Get returns the service stored under name.
func (r *Registry) Get(name string) (*Service, error) {
	if raw, ok := r.store.Raw(name); ok {
		if svc, ok := raw.(*Service); ok {
			return svc, nil
		}
	}
	return nil, oops.In("service").
		Code("SERVICE_NOT_FOUND").
		With("service", name).
		With("scope", r.scope).
		With("available", r.Names()).
		Errorf("service %q not found", name)
}

// Names returns the registered keys, sorted.
func (r *Registry) Names() []string {
	var names []string
	for _, key := range r.store.Keys() {
		if _, ok := r.lookup(key); ok {
			names = append(names, key)
		}
	}
	return names
}

// Registered returns the services whose key starts with prefix, sorted by
// key. An empty prefix lists every service.
func (r *Registry) Registered(prefix string) []*Service {
	var out []*Service
	for _, key := range r.store.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if svc, ok := r.lookup(key); ok {
			out = append(out, svc)
		}
	}
	return out
}

// Match returns the services whose key matches a glob pattern. '*' matches
// one dotted segment and '**' any number of them.
func (r *Registry) Match(pattern string) ([]*Service, error) {
	g, err := glob.Compile(pattern, '.')
	if err != nil {
		return nil, oops.In("service").
			Code("ARGUMENT_INVALID").
			With("pattern", pattern).
			Wrapf(err, "compile service pattern")
	}
	var out []*Service
	for _, key := range r.store.Keys() {
		if !g.Match(key) {
			continue
		}
		if svc, ok := r.lookup(key); ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

// Items returns a snapshot of key to service.
func (r *Registry) Items() map[string]*Service {
	out := make(map[string]*Service)
	for key, raw := range r.store.Items() {
		if svc, ok := raw.(*Service); ok {
			out[key] = svc
		}
	}
	return out
}

// Remove deletes the entry stored under name.
func (r *Registry) Remove(name string) {
	r.store.Remove(name)
}

func (r *Registry) lookup(key string) (*Service, bool) {
	raw, ok := r.store.Raw(key)
	if !ok {
		return nil, false
	}
	svc, ok := raw.(*Service)
	return svc, ok
}
