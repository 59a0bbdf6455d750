// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package logging provides structured logging with plugin identity and
// OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type pluginKey struct{}

// WithPlugin returns a context whose log records carry the plugin name.
func WithPlugin(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pluginKey{}, name)
}

// PluginFromContext returns the plugin name carried by ctx.
func PluginFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	name, ok := ctx.Value(pluginKey{}).(string)
	return name, ok && name != ""
}

// contextHandler wraps a slog.Handler to add service, plugin and trace
// attributes.
type contextHandler struct {
	handler slog.Handler
	service string
	version string
	// hasPlugin is set once a "plugin" attribute was attached with WithAttrs.
	hasPlugin bool
}

// Handle adds context attributes to the log record.
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	if name, ok := PluginFromContext(ctx); ok && !h.hasPlugin {
		r.AddAttrs(slog.String("plugin", name))
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled returns true if the level is enabled.
func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hasPlugin := h.hasPlugin
	for _, a := range attrs {
		if a.Key == "plugin" {
			hasPlugin = true
		}
	}
	return &contextHandler{
		handler:   h.handler.WithAttrs(attrs),
		service:   h.service,
		version:   h.version,
		hasPlugin: hasPlugin,
	}
}

// WithGroup returns a new handler with the given group.
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		handler:   h.handler.WithGroup(name),
		service:   h.service,
		version:   h.version,
		hasPlugin: h.hasPlugin,
	}
}

// ParseLevel maps a configured level name to a slog.Level.
// Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup creates a configured slog.Logger.
// format: "json" or "text" (defaults to "json" if empty)
// If w is nil, writes to os.Stderr.
func Setup(service, version, format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&contextHandler{
		handler: base,
		service: service,
		version: version,
	})
}

// SetDefault sets up and configures the default logger.
func SetDefault(service, version, format string, level slog.Level) {
	slog.SetDefault(Setup(service, version, format, level, nil))
}
