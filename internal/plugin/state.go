// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package plugin

import "github.com/samber/oops"

// State is a plugin lifecycle state.
type State int

// Lifecycle states, in order. Unloaded is terminal.
const (
	StateDiscovered State = iota
	StateInstalled
	StateLoaded
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateInstalled:
		return "installed"
	case StateLoaded:
		return "loaded"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// next returns the only state reachable from s.
func (s State) next() (State, bool) {
	switch s {
	case StateDiscovered:
		return StateInstalled, true
	case StateInstalled:
		return StateLoaded, true
	case StateLoaded:
		return StateUnloaded, true
	default:
		return s, false
	}
}

// CanTransition reports whether s may move to to.
func (s State) CanTransition(to State) bool {
	next, ok := s.next()
	return ok && next == to
}

func transitionError(name string, from, to State) error {
	return oops.In("plugin").
		Code("PLUGIN_INVALID_TRANSITION").
		With("plugin", name).
		With("from", from.String()).
		With("to", to.String()).
		Errorf("plugin %q cannot move from %s to %s", name, from, to)
}
