// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package server holds routing tables of actions and dispatches requests to
// them in process.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/internal/service"
)

// PathPrefixKey is the main store key holding the server path prefix.
// Serving paths may refer to it as ${path_prefix}.
const PathPrefixKey = "path_prefix"

// Lifecycle is notified when a server starts up and shuts down.
type Lifecycle interface {
	ServerDidStartup(ctx context.Context, s *Server) error
	ServerDidShutdown(ctx context.Context, s *Server) error
}

// BaseDelegate is a Lifecycle that does nothing.
type BaseDelegate struct{}

// ServerDidStartup implements Lifecycle.
func (BaseDelegate) ServerDidStartup(context.Context, *Server) error { return nil }

// ServerDidShutdown implements Lifecycle.
func (BaseDelegate) ServerDidShutdown(context.Context, *Server) error { return nil }

// Server is a routing table of actions keyed by routing path.
type Server struct {
	delegate   Lifecycle
	lifecycle  Lifecycle
	pathPrefix string

	mu      sync.RWMutex
	actions map[string]*service.Action
	address *BindAddress
}

// Option configures a Server.
type Option func(*options)

type options struct {
	delegate   Lifecycle
	lifecycle  Lifecycle
	pathPrefix string
	store      *ctxstore.Store
}

// WithDelegate sets the server delegate.
func WithDelegate(d Lifecycle) Option {
	return func(o *options) { o.delegate = d }
}

// WithLifecycle sets the application notified before the delegate.
func WithLifecycle(l Lifecycle) Option {
	return func(o *options) { o.lifecycle = l }
}

// WithPathPrefix sets the prefix published as path_prefix.
func WithPathPrefix(prefix string) Option {
	return func(o *options) { o.pathPrefix = prefix }
}

// WithStore sets the store path_prefix is published to, normally the main
// store. A server without a prefix leaves the published value alone.
func WithStore(s *ctxstore.Store) Option {
	return func(o *options) { o.store = s }
}

// New creates a server.
func New(opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.delegate == nil {
		o.delegate = BaseDelegate{}
	}
	if o.store != nil && o.pathPrefix != "" {
		o.store.Set(PathPrefixKey, o.pathPrefix)
	}
	return &Server{
		delegate:   o.delegate,
		lifecycle:  o.lifecycle,
		pathPrefix: o.pathPrefix,
		actions:    make(map[string]*service.Action),
	}
}

// PathPrefix returns the configured path prefix.
func (s *Server) PathPrefix() string { return s.pathPrefix }

// Delegate returns the server delegate.
func (s *Server) Delegate() Lifecycle { return s.delegate }

// AddAction routes a's routing path to a, replacing any previous action.
func (s *Server) AddAction(a *service.Action) {
	path := a.RoutingPath()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.actions[path]; ok && prev != a {
		slog.Warn("routing path reassigned", "path", path, "action", a.Name())
	}
	s.actions[path] = a
}

// AddActions routes every action.
func (s *Server) AddActions(actions ...*service.Action) {
	for _, a := range actions {
		s.AddAction(a)
	}
}

// RemoveAction removes and returns the action routed at path.
func (s *Server) RemoveAction(path string) (*service.Action, error) {
	key := service.Join(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[key]
	if !ok {
		return nil, s.notFound(key)
	}
	delete(s.actions, key)
	return a, nil
}

// Action returns the action routed at path. Separators are normalised.
func (s *Server) Action(path string) (*service.Action, error) {
	key := service.Join(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[key]
	if !ok {
		return nil, s.notFound(key)
	}
	return a, nil
}

// notFound must be called with s.mu held.
func (s *Server) notFound(path string) error {
	return oops.In("server").
		Code("ACTION_NOT_FOUND").
		With("path", path).
		With("available", s.paths()).
		Errorf("no action routed at %q", path)
}

// Actions returns a snapshot of routing path to action.
func (s *Server) Actions() map[string]*service.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*service.Action, len(s.actions))
	for k, v := range s.actions {
		out[k] = v
	}
	return out
}

// Paths returns the routing paths, sorted.
func (s *Server) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths()
}

func (s *Server) paths() []string {
	paths := make([]string, 0, len(s.actions))
	for p := range s.actions {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Mount routes the actions of svc that support protocol and returns them.
func (s *Server) Mount(svc *service.Service, protocol string) []*service.Action {
	var mounted []*service.Action
	for _, h := range svc.SchemeHelpers(protocol) {
		a := h.Helper.Action()
		s.AddAction(a)
		mounted = append(mounted, a)
	}
	slog.Debug("mounted service",
		"service", svc.Name(),
		"protocol", protocol,
		"actions", len(mounted))
	return mounted
}

// Listen records the address the server is bound to.
func (s *Server) Listen(addr BindAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = &addr
}

// Address returns the bound address, if listening.
func (s *Server) Address() (BindAddress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.address == nil {
		return BindAddress{}, false
	}
	return *s.address, true
}

func (s *Server) unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = nil
}

// DidStartup notifies the application and then the delegate. The delegate
// is skipped when the application fails.
func (s *Server) DidStartup(ctx context.Context) error {
	if s.lifecycle != nil {
		if err := s.lifecycle.ServerDidStartup(ctx, s); err != nil {
			return oops.In("server").With("hook", "ServerDidStartup").Wrap(err)
		}
	}
	if err := s.delegate.ServerDidStartup(ctx, s); err != nil {
		return oops.In("server").With("hook", "ServerDidStartup").Wrap(err)
	}
	return nil
}

// DidShutdown notifies the application and then the delegate. Both run
// even if one fails.
func (s *Server) DidShutdown(ctx context.Context) error {
	var errs []error
	if s.lifecycle != nil {
		if err := s.lifecycle.ServerDidShutdown(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.delegate.ServerDidShutdown(ctx, s); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return oops.In("server").With("hook", "ServerDidShutdown").Wrap(err)
	}
	return nil
}
