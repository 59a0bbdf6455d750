// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service

import (
	"maps"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// SchemeHelper adapts an action to one transport protocol.
//
// Copies made for another action share the attribute map but not the
// action reference.
type SchemeHelper interface {
	Protocol() string
	Action() *Action
	Attributes() map[string]any
	Set(key string, value any)
	Get(key string, def any) any
	Copy(action *Action) SchemeHelper
}

// SchemeFactory creates the helper of a protocol for an action.
type SchemeFactory func(*Action) SchemeHelper

// NamedHelper pairs an action name with one of its helpers.
type NamedHelper struct {
	Name   string
	Helper SchemeHelper
}

type attributes struct {
	mu     sync.RWMutex
	values map[string]any
}

// Helper is the base SchemeHelper. Protocol-specific helpers embed it and
// override Copy to keep their own type.
type Helper struct {
	protocol string
	action   *Action
	attrs    *attributes
}

var _ SchemeHelper = (*Helper)(nil)

// NewHelper creates a helper for protocol bound to action.
func NewHelper(protocol string, action *Action) *Helper {
	return &Helper{
		protocol: protocol,
		action:   action,
		attrs:    &attributes{values: map[string]any{}},
	}
}

// Factory returns a SchemeFactory creating plain helpers for protocol.
func Factory(protocol string) SchemeFactory {
	return func(a *Action) SchemeHelper { return NewHelper(protocol, a) }
}

// Protocol returns the protocol name.
func (h *Helper) Protocol() string { return h.protocol }

// Action returns the decorated action.
func (h *Helper) Action() *Action { return h.action }

// Attributes returns a snapshot of the attributes.
func (h *Helper) Attributes() map[string]any {
	h.attrs.mu.RLock()
	defer h.attrs.mu.RUnlock()
	return maps.Clone(h.attrs.values)
}

// Set stores an attribute. Copies of h see the change.
func (h *Helper) Set(key string, value any) {
	h.attrs.mu.Lock()
	defer h.attrs.mu.Unlock()
	h.attrs.values[key] = value
}

// Get returns an attribute or def.
func (h *Helper) Get(key string, def any) any {
	h.attrs.mu.RLock()
	defer h.attrs.mu.RUnlock()
	if v, ok := h.attrs.values[key]; ok {
		return v
	}
	return def
}

// Copy returns a helper for action sharing h's attributes.
func (h *Helper) Copy(action *Action) SchemeHelper {
	return h.CopyHelper(action)
}

// CopyHelper is Copy with a concrete result, for embedding types.
func (h *Helper) CopyHelper(action *Action) *Helper {
	return &Helper{protocol: h.protocol, action: action, attrs: h.attrs}
}

// SchemeManager maps protocol names to helper factories.
//
// SchemeManager is safe for concurrent use.
type SchemeManager struct {
	mu        sync.RWMutex
	factories map[string]SchemeFactory
}

// NewSchemeManager creates an empty scheme manager.
func NewSchemeManager() *SchemeManager {
	return &SchemeManager{factories: make(map[string]SchemeFactory)}
}

// Register sets the factory for protocol, replacing any previous one.
func (m *SchemeManager) Register(protocol string, factory SchemeFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[protocol] = factory
}

// Get returns the factory registered for protocol.
func (m *SchemeManager) Get(protocol string) (SchemeFactory, error) {
	m.mu.RLock()
	factory, ok := m.factories[protocol]
	m.mu.RUnlock()
	if !ok {
		return nil, oops.In("service").
			Code("PROTOCOL_NOT_REGISTERED").
			With("protocol", protocol).
			With("available", m.Protocols()).
			Hint("register a scheme factory for the protocol before resolving it").
			Errorf("protocol %q not registered", protocol)
	}
	return factory, nil
}

// Contains reports whether protocol has a factory.
func (m *SchemeManager) Contains(protocol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.factories[protocol]
	return ok
}

// Protocols returns the registered protocol names, sorted.
func (m *SchemeManager) Protocols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.factories))
	for name := range m.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
