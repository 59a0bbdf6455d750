// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluginsListCmd(t *testing.T) {
	plugins, err := filepath.Abs(filepath.Join("..", "..", "plugins"))
	require.NoError(t, err)
	path := writeDocument(t, "[app]\nversion = \"1.0.0\"\n\n[plugin]\nprefix = \"plank-\"\n")

	out, err := execute(t, "--config", path, "plugins", "list", "--plugins-dir", plugins)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Equal(t, []string{"echo", "1.0.0", "plank-echo", filepath.Join(plugins, "plank-echo")}, strings.Fields(lines[1]))
}

func TestPluginsListCmd_PrefixFlag(t *testing.T) {
	plugins, err := filepath.Abs(filepath.Join("..", "..", "plugins"))
	require.NoError(t, err)
	path := writeDocument(t, "[app]\nversion = \"1.0.0\"\n")

	out, err := execute(t, "--config", path, "plugins", "list", "--plugins-dir", plugins, "--prefix", "ext-")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"), "only the header is printed")
}
