// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/gradyzhuo/plank/internal/ctxstore"
)

// Section is a typed reader over one top-level document section.
//
// Keys may be given bare ("workspace") or qualified ("path.workspace").
type Section interface {
	Namespace() string
	Get(key string) any
	GetOr(key string, def any) any
	Raw(key string) (any, bool)
	Set(key string, value any)
	Keys() []string
	Values() map[string]any
	Store() *ctxstore.Store
}

// SectionFactory builds a typed section around its base.
type SectionFactory func(base *BaseSection) (Section, error)

// BaseSection holds the flattened keys of a section and mirrors them into
// the program store. Built-in sections embed it.
type BaseSection struct {
	namespace string
	store     *ctxstore.Store
	values    map[string]any
	mu        sync.RWMutex
}

// NewBaseSection creates a section and writes every key into store.
func NewBaseSection(namespace string, values map[string]any, store *ctxstore.Store) *BaseSection {
	if store == nil {
		store = ctxstore.New(namespace)
	}
	b := &BaseSection{
		namespace: namespace,
		store:     store,
		values:    make(map[string]any, len(values)),
	}
	for k, v := range values {
		key := b.qualify(k)
		b.values[key] = v
		store.Set(key, v)
	}
	return b
}

func (b *BaseSection) qualify(key string) string {
	if key == b.namespace || strings.HasPrefix(key, b.namespace+keyDelim) {
		return key
	}
	return b.namespace + keyDelim + key
}

// Namespace returns the section name.
func (b *BaseSection) Namespace() string { return b.namespace }

// Store returns the program store the section writes into.
func (b *BaseSection) Store() *ctxstore.Store { return b.store }

// Raw returns the unresolved value for key.
func (b *BaseSection) Raw(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[b.qualify(key)]
	return v, ok
}

// Get returns the resolved value for key, or nil.
func (b *BaseSection) Get(key string) any {
	return b.GetOr(key, nil)
}

// GetOr returns the resolved value for key, or def.
func (b *BaseSection) GetOr(key string, def any) any {
	v, ok := b.Raw(key)
	if !ok {
		v = def
	}
	return b.store.Reword(v, nil)
}

// Set writes value to the section and to the program store.
func (b *BaseSection) Set(key string, value any) {
	key = b.qualify(key)
	b.mu.Lock()
	b.values[key] = value
	b.mu.Unlock()
	b.store.Set(key, value)
}

// Remove deletes key from the section and from the program store.
func (b *BaseSection) Remove(key string) {
	key = b.qualify(key)
	b.mu.Lock()
	delete(b.values, key)
	b.mu.Unlock()
	b.store.Remove(key)
}

// Keys returns the qualified keys of the section, sorted.
func (b *BaseSection) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the raw qualified values.
func (b *BaseSection) Values() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// String returns the resolved value for key as a string.
func (b *BaseSection) String(key string) string {
	return asString(b.Get(key))
}

// Sections maps section names to factories.
type Sections struct {
	mu        sync.RWMutex
	factories map[string]SectionFactory
}

// NewSections creates an empty section registry.
func NewSections() *Sections {
	return &Sections{factories: make(map[string]SectionFactory)}
}

// DefaultSections returns a registry with the built-in sections.
func DefaultSections() *Sections {
	s := NewSections()
	s.Register(SectionApp, newAppSection)
	s.Register(SectionLogger, newLoggerSection)
	s.Register(SectionPath, newPathSection)
	s.Register(SectionPlugin, newPluginSection)
	s.Register(SectionService, newServiceSection)
	s.Register(SectionExtra, newExtraSection)
	return s
}

// Register installs factory for name, replacing any previous one.
func (s *Sections) Register(name string, factory SectionFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[name] = factory
}

// Factory returns the factory registered for name.
func (s *Sections) Factory(name string) (SectionFactory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.factories[name]
	return f, ok
}

// Names returns the registered section names, sorted.
func (s *Sections) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generic returns a factory for sections with no typed accessors.
func Generic() SectionFactory {
	return func(base *BaseSection) (Section, error) {
		return base, nil
	}
}
