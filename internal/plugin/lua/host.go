// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package lua

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/plugin"
)

// Compile-time interface check.
var _ plugin.ScriptHost = (*Host)(nil)

// Host builds Lua delegates for plugins whose manifest names a "lua:" entry.
type Host struct {
	factory *StateFactory
}

// NewHost creates a Lua script host.
func NewHost() *Host {
	return &Host{factory: NewStateFactory()}
}

// NewDelegate reads entry from the plugin directory and checks that it
// compiles. The script runs in a fresh sandbox on every hook.
func (h *Host) NewDelegate(ctx context.Context, p *plugin.Plugin, entry string) (plugin.Delegate, error) {
	path := filepath.Join(p.Dir(), filepath.Clean(entry))
	if !strings.HasPrefix(path, filepath.Clean(p.Dir())+string(filepath.Separator)) {
		return nil, oops.In("lua").
			With("plugin", p.Name()).
			With("entry", entry).
			Errorf("entry must stay inside the plugin directory")
	}

	code, err := os.ReadFile(path) //nolint:gosec // confined to the plugin directory above
	if err != nil {
		return nil, oops.In("lua").
			With("plugin", p.Name()).
			With("path", path).
			Hint("failed to read entry file").
			Wrap(err)
	}

	L, err := h.factory.NewState(ctx)
	if err != nil {
		return nil, oops.In("lua").With("plugin", p.Name()).Hint("failed to create validation state").Wrap(err)
	}
	defer L.Close()

	if _, err := L.LoadString(string(code)); err != nil {
		return nil, oops.In("lua").
			With("plugin", p.Name()).
			With("entry", entry).
			Hint("syntax error").
			Wrap(err)
	}

	return &Delegate{
		factory: h.factory,
		entry:   entry,
		code:    string(code),
	}, nil
}
