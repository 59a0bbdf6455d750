// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package plugin

import (
	"context"
	"log/slog"

	"github.com/gradyzhuo/plank/internal/logging"
)

type pluginKey struct{}

// WithPlugin returns a context carrying p as the current plugin. Log
// records written with the context carry the plugin name.
func WithPlugin(ctx context.Context, p *Plugin) context.Context {
	ctx = context.WithValue(ctx, pluginKey{}, p)
	return logging.WithPlugin(ctx, p.Name())
}

// FromContext returns the plugin carried by ctx.
func FromContext(ctx context.Context) (*Plugin, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(pluginKey{}).(*Plugin)
	return p, ok && p != nil
}

// Logger returns the default logger, tagged with the current plugin when
// ctx carries one.
func Logger(ctx context.Context) *slog.Logger {
	if p, ok := FromContext(ctx); ok {
		return slog.Default().With("plugin", p.Name(), "package", p.Package())
	}
	return slog.Default()
}
