// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package service provides services, their actions and the protocol
// bindings that expose actions over transports.
package service

import (
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Owner is the plugin a service belongs to.
type Owner interface {
	Name() string
}

// Resolver rewords templates in the serving path.
type Resolver interface {
	Reword(v any, overrides map[string]any) any
}

// Service is a named group of actions.
type Service struct {
	name        string
	servingPath string
	resolver    Resolver

	mu      sync.RWMutex
	owner   Owner
	actions map[string]*Action
}

// Option configures a Service.
type Option func(*Service)

// WithServingPath sets the path prefix of every action.
func WithServingPath(path string) Option {
	return func(s *Service) { s.servingPath = path }
}

// WithResolver sets the resolver used for the serving path.
func WithResolver(r Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// New creates a service.
func New(name string, opts ...Option) *Service {
	s := &Service{
		name:    name,
		actions: make(map[string]*Action),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// ServingPath returns the serving path with templates resolved.
func (s *Service) ServingPath() string {
	if s.resolver == nil || s.servingPath == "" {
		return s.servingPath
	}
	if v, ok := s.resolver.Reword(s.servingPath, nil).(string); ok {
		return v
	}
	return s.servingPath
}

// Owner returns the owning plugin, or nil.
func (s *Service) Owner() Owner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// SetOwner sets the owner once. Later calls return false.
func (s *Service) SetOwner(owner Owner) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != nil || owner == nil {
		return false
	}
	s.owner = owner
	return true
}

// Handle declares an action at path served by fn.
func (s *Service) Handle(path string, fn any, opts ...ActionOption) (*Action, error) {
	o := actionOptions{name: path}
	for _, opt := range opts {
		opt(&o)
	}

	endpoint, err := NewEndpoint(fn, o.params...)
	if err != nil {
		return nil, oops.In("service").
			With("service", s.name).
			With("action", o.name).
			Wrap(err)
	}

	a := &Action{
		name:     o.name,
		path:     path,
		service:  s,
		endpoint: endpoint,
		helpers:  make(map[string]SchemeHelper),
		meta:     make(map[string]any, len(o.meta)),
	}
	for k, v := range o.meta {
		a.meta[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[o.name]; exists {
		return nil, oops.In("service").
			Code("ENDPOINT_INVALID").
			With("service", s.name).
			With("action", o.name).
			Errorf("action %q already declared", o.name)
	}
	s.actions[o.name] = a
	return a, nil
}

// Action returns the named action.
func (s *Service) Action(name string) (*Action, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[name]
	return a, ok
}

// Actions returns every action sorted by routing path.
func (s *Service) Actions() []*Action {
	s.mu.RLock()
	actions := make([]*Action, 0, len(s.actions))
	for _, a := range s.actions {
		actions = append(actions, a)
	}
	s.mu.RUnlock()

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].RoutingPath() < actions[j].RoutingPath()
	})
	return actions
}

// ActionsSupporting returns the actions bound to protocol.
func (s *Service) ActionsSupporting(protocol string) []*Action {
	var out []*Action
	for _, a := range s.Actions() {
		if a.Supports(protocol) {
			out = append(out, a)
		}
	}
	return out
}

// SchemeHelpers returns the protocol helpers of the actions that support it.
// Transport bindings use it to pull in only the operations they can serve.
func (s *Service) SchemeHelpers(protocol string) []NamedHelper {
	var out []NamedHelper
	for _, a := range s.ActionsSupporting(protocol) {
		if h, ok := a.GetProtocol(protocol); ok {
			out = append(out, NamedHelper{Name: a.Name(), Helper: h})
		}
	}
	return out
}

// Clone returns an unowned copy of s. Actions are re-created and their
// helpers copied, sharing attributes with the originals.
func (s *Service) Clone() *Service {
	c := New(s.name, WithServingPath(s.servingPath), WithResolver(s.resolver))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, a := range s.actions {
		c.actions[name] = a.clone(c)
	}
	return c
}
