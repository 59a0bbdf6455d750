// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package server

import (
	"context"
	"net/url"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/service"
)

// Connector sends requests to the action a URL addresses.
type Connector interface {
	Send(ctx context.Context, req *service.Request) (*service.Response, error)
}

// ConnectorFactory builds a connector for a parsed URL.
type ConnectorFactory func(u *url.URL) (Connector, error)

// Connectors maps URL schemes to connector factories.
//
// Connectors is safe for concurrent use.
type Connectors struct {
	mu        sync.RWMutex
	factories map[string]ConnectorFactory
}

// NewConnectors creates an empty connector registry.
func NewConnectors() *Connectors {
	return &Connectors{factories: make(map[string]ConnectorFactory)}
}

// Register sets the factory for scheme, replacing any previous one.
func (c *Connectors) Register(scheme string, factory ConnectorFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[scheme] = factory
}

// Connect builds a connector for rawURL from the factory of its scheme.
func (c *Connectors) Connect(rawURL string) (Connector, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, oops.In("server").
			Code("CONNECTOR_URL_INVALID").
			With("url", rawURL).
			Wrap(err)
	}
	if u.Scheme == "" {
		return nil, oops.In("server").
			Code("CONNECTOR_URL_INVALID").
			With("url", rawURL).
			Hint(`use "scheme://host[:port]/path"`).
			Errorf("url %q has no scheme", rawURL)
	}

	c.mu.RLock()
	factory, ok := c.factories[u.Scheme]
	c.mu.RUnlock()
	if !ok {
		return nil, oops.In("server").
			Code("CONNECTOR_NOT_REGISTERED").
			With("scheme", u.Scheme).
			With("available", c.Schemes()).
			Errorf("no connector for scheme %q", u.Scheme)
	}
	conn, err := factory(u)
	if err != nil {
		return nil, oops.In("server").With("url", rawURL).Wrap(err)
	}
	return conn, nil
}

// Schemes returns the registered schemes, sorted.
func (c *Connectors) Schemes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.factories))
	for scheme := range c.factories {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}
