// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradyzhuo/plank/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("PLUGIN_HOOK_FAILED").
		With("plugin", "echo").
		Hint("check the plugin delegate").
		Errorf("hook failed")

	errutil.LogError(logger, "launch failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "launch failed", entry["msg"])
	assert.Equal(t, "PLUGIN_HOOK_FAILED", entry["code"])
	assert.Equal(t, "check the plugin delegate", entry["hint"])
	assert.Equal(t, map[string]any{"plugin": "echo"}, entry["context"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}

func TestCode(t *testing.T) {
	err := oops.Code("SERVICE_NOT_FOUND").Errorf("missing")
	assert.Equal(t, "SERVICE_NOT_FOUND", errutil.Code(err))
	assert.Equal(t, "SERVICE_NOT_FOUND", errutil.Code(fmt.Errorf("wrapped: %w", err)))
	assert.Empty(t, errutil.Code(errors.New("plain")))
}
