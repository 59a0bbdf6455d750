// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "json", slog.LevelInfo, &buf)

	logger.Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "plank", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time", "time field missing")
	assert.Contains(t, entry, "level", "level field missing")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "text", slog.LevelInfo, &buf)

	logger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "service=plank")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("plank", "1.0.0", "", slog.LevelInfo, &buf).Info("test message")
	decode(t, &buf)
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "json", slog.LevelWarn, &buf)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestHandler_PluginContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "json", slog.LevelInfo, &buf)

	ctx := WithPlugin(context.Background(), "echo")
	logger.InfoContext(ctx, "from plugin")

	assert.Equal(t, "echo", decode(t, &buf)["plugin"])

	name, ok := PluginFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "echo", name)

	_, ok = PluginFromContext(context.Background())
	assert.False(t, ok)
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "json", slog.LevelInfo, &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.NotContains(t, entry, "plugin")
}

func TestHandler_WithAttrsKeepsContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "json", slog.LevelInfo, &buf).With("component", "manager")

	logger.InfoContext(WithPlugin(context.Background(), "echo"), "grouped")

	entry := decode(t, &buf)
	assert.Equal(t, "manager", entry["component"])
	assert.Equal(t, "echo", entry["plugin"])
}

func TestHandler_PluginAttributeNotDuplicated(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("plank", "1.0.0", "json", slog.LevelInfo, &buf).With("plugin", "echo")

	logger.InfoContext(WithPlugin(context.Background(), "echo"), "once")

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"plugin"`)))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	SetDefault("test-service", "2.0.0", "json", slog.LevelInfo)

	assert.NotEqual(t, original, slog.Default(), "SetDefault did not change the default logger")
}
