// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package server

import (
	"log/slog"
	"sort"
	"sync"
)

// Listeners indexes in-process servers by bind address. Inline connectors
// resolve servers through it.
//
// Listeners is safe for concurrent use.
type Listeners struct {
	mu      sync.RWMutex
	servers map[string]*Server
}

// NewListeners creates an empty listener registry.
func NewListeners() *Listeners {
	return &Listeners{servers: make(map[string]*Server)}
}

// Listen binds s to addr and registers it. A server already listening on
// addr is replaced. A server moving from another address stops routing
// there.
func (l *Listeners) Listen(s *Server, addr BindAddress) {
	old, wasBound := s.Address()
	s.Listen(addr)
	key := addr.Description()

	l.mu.Lock()
	if wasBound {
		if oldKey := old.Description(); oldKey != key && l.servers[oldKey] == s {
			delete(l.servers, oldKey)
		}
	}
	prev, replaced := l.servers[key]
	l.servers[key] = s
	l.mu.Unlock()

	if replaced && prev != s {
		prev.unbind()
		slog.Warn("inline address reassigned", "address", key)
	}
	slog.Info("inline server listening", "address", key, "actions", len(s.Paths()))
}

// Lookup returns the server listening on addr.
func (l *Listeners) Lookup(addr BindAddress) (*Server, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.servers[addr.Description()]
	return s, ok
}

// Close stops routing addr and returns the server that listened there.
func (l *Listeners) Close(addr BindAddress) (*Server, bool) {
	key := addr.Description()
	l.mu.Lock()
	s, ok := l.servers[key]
	delete(l.servers, key)
	l.mu.Unlock()
	if ok {
		s.unbind()
	}
	return s, ok
}

// Addresses returns the listening addresses, sorted.
func (l *Listeners) Addresses() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.servers))
	for key := range l.servers {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
