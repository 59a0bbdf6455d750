// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Join joins routing segments with a single "/". Leading, trailing and
// repeated separators are dropped.
func Join(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		for _, seg := range strings.Split(part, "/") {
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}
	return strings.Join(segments, "/")
}

// Action is one callable operation of a service.
type Action struct {
	name     string
	path     string
	service  *Service
	endpoint *Endpoint

	mu      sync.RWMutex
	helpers map[string]SchemeHelper
	meta    map[string]any
}

// ActionOption configures an action declared with Service.Handle.
type ActionOption func(*actionOptions)

type actionOptions struct {
	name   string
	params []string
	meta   map[string]any
}

// Params names the endpoint parameters in declaration order.
func Params(names ...string) ActionOption {
	return func(o *actionOptions) { o.params = names }
}

// Named sets the action name. Defaults to the declared path.
func Named(name string) ActionOption {
	return func(o *actionOptions) { o.name = name }
}

// Meta sets a metadata entry on the action.
func Meta(key string, value any) ActionOption {
	return func(o *actionOptions) {
		if o.meta == nil {
			o.meta = map[string]any{}
		}
		o.meta[key] = value
	}
}

// Name returns the action name.
func (a *Action) Name() string { return a.name }

// Path returns the path segment the action was declared with.
func (a *Action) Path() string { return a.path }

// Service returns the service owning the action.
func (a *Action) Service() *Service { return a.service }

// Endpoint returns the wrapped endpoint.
func (a *Action) Endpoint() *Endpoint { return a.endpoint }

// RoutingPath joins the service serving path and the action path.
func (a *Action) RoutingPath() string {
	if a.service == nil {
		return Join(a.path)
	}
	return Join(a.service.ServingPath(), a.path)
}

// BindProtocol attaches the helper built by factory. Binding a protocol
// the action already supports is ignored with a warning and returns false.
func (a *Action) BindProtocol(protocol string, factory SchemeFactory) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.helpers[protocol]; ok {
		slog.Warn("protocol already bound to action, ignoring",
			"protocol", protocol,
			"action", a.name)
		return false
	}
	a.helpers[protocol] = factory(a)
	return true
}

// Supports reports whether protocol is bound.
func (a *Action) Supports(protocol string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.helpers[protocol]
	return ok
}

// GetProtocol returns the helper bound for protocol.
func (a *Action) GetProtocol(protocol string) (SchemeHelper, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.helpers[protocol]
	return h, ok
}

// Protocol returns the helper for protocol, binding one from schemes when
// the action does not support it yet.
func (a *Action) Protocol(protocol string, schemes *SchemeManager) (SchemeHelper, error) {
	if h, ok := a.GetProtocol(protocol); ok {
		return h, nil
	}
	if schemes == nil {
		return nil, oops.In("service").
			Code("PROTOCOL_NOT_REGISTERED").
			With("protocol", protocol).
			With("action", a.name).
			Errorf("protocol %q not registered", protocol)
	}
	factory, err := schemes.Get(protocol)
	if err != nil {
		return nil, oops.In("service").With("action", a.name).Wrap(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.helpers[protocol]; ok {
		return h, nil
	}
	h := factory(a)
	a.helpers[protocol] = h
	return h, nil
}

// Protocols returns the bound protocol names, sorted.
func (a *Action) Protocols() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.helpers))
	for name := range a.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetMeta stores a metadata entry. The last write for a key wins.
func (a *Action) SetMeta(key string, value any) *Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meta[key] = value
	return a
}

// Meta returns a metadata entry.
func (a *Action) Meta(key string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.meta[key]
	return v, ok
}

// MetaKeys returns the metadata keys, sorted.
func (a *Action) MetaKeys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.meta))
	for k := range a.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Call invokes the endpoint with args.
func (a *Action) Call(ctx context.Context, args map[string]any) (any, error) {
	v, err := a.endpoint.Invoke(ctx, args)
	if err != nil {
		return nil, oops.In("service").
			With("action", a.name).
			With("routing_path", a.RoutingPath()).
			Wrap(err)
	}
	return v, nil
}

// Receive dispatches req to the endpoint and wraps the result.
func (a *Action) Receive(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		req = NewRequest(nil)
	}
	slog.DebugContext(ctx, "action received request",
		"action", a.name,
		"request_id", req.ID.String())

	v, err := a.Call(ctx, req.Arguments)
	if err != nil {
		return nil, oops.With("request_id", req.ID.String()).Wrap(err)
	}
	return &Response{RequestID: req.ID, Value: v}, nil
}

// clone copies the action onto service. Helpers are copied so they share
// attributes with the originals.
func (a *Action) clone(service *Service) *Action {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c := &Action{
		name:     a.name,
		path:     a.path,
		service:  service,
		endpoint: a.endpoint,
		helpers:  make(map[string]SchemeHelper, len(a.helpers)),
		meta:     make(map[string]any, len(a.meta)),
	}
	for protocol, h := range a.helpers {
		c.helpers[protocol] = h.Copy(c)
	}
	for k, v := range a.meta {
		c.meta[k] = v
	}
	return c
}
