// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/pkg/errutil"
)

const sampleTOML = `
[app]
name = "Bar"
version = "1.2.0"
debug = false

[path]
workspace = "/a"
data = "${path.workspace}/data"
plugin = "${path.data}/${PLUGIN}"

[plugin]
prefix = "plank_"

[service.users]
class = "users:Service"

[service.users.remote]
scheme = "inline"
host = "local"
port = 80
path = "users"

[unknown]
dropped = true

[program.prod.path]
workspace = "/b"

[program.prod.app]
debug = true
`

func noEnv(string) (string, bool) { return "", false }

func envOf(vars map[string]string) ctxstore.EnvLookup {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func buildSample(t *testing.T, opts ...config.BuildOption) *config.Pool {
	t.Helper()
	doc, err := config.ParseDocument([]byte(sampleTOML), config.FormatTOML)
	require.NoError(t, err)
	pool, err := config.BuildPool(doc, opts...)
	require.NoError(t, err)
	return pool
}

func TestBuildPool_BaseProgramAlwaysExists(t *testing.T) {
	pool := buildSample(t, config.WithEnv(noEnv))
	assert.Equal(t, []string{"base", "prod"}, pool.Names())

	doc := map[string]any{"app": map[string]any{"name": "x"}}
	bare, err := config.BuildPool(doc, config.WithEnv(noEnv))
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, bare.Names())
}

func TestBuildPool_ProgramLayering(t *testing.T) {
	pool := buildSample(t, config.WithEnv(noEnv))

	prod, err := pool.Get("prod")
	require.NoError(t, err)
	base, err := pool.Get("base")
	require.NoError(t, err)

	assert.Equal(t, "/b", prod.Path().Workspace())
	assert.Equal(t, "/a", base.Path().Workspace())

	assert.True(t, prod.App().Debug())
	assert.False(t, base.App().Debug())

	// Siblings not mentioned by the override keep their defaults.
	assert.Equal(t, "Bar", prod.App().Name())
	assert.Equal(t, "/b/data", prod.Path().String("data"))
}

func TestBuildPool_EnvironmentOverride(t *testing.T) {
	pool := buildSample(t, config.WithEnv(envOf(map[string]string{
		"PL_APP_NAME":  "Foo",
		"PL_APP_DEBUG": "true",
	})))

	base, err := pool.Get("base")
	require.NoError(t, err)
	assert.Equal(t, "Foo", base.App().Name())

	raw, ok := base.App().Raw("debug")
	require.True(t, ok)
	assert.Equal(t, true, raw, "bool document values are decoded as JSON")
}

func TestBuildPool_EnvironmentPrefixFromDocument(t *testing.T) {
	doc := map[string]any{
		"app": map[string]any{
			"name": "Bar",
			"env":  map[string]any{"prefix": "MYAPP"},
		},
	}
	pool, err := config.BuildPool(doc, config.WithEnv(envOf(map[string]string{
		"PL_APP_NAME":    "ignored",
		"MYAPP_APP_NAME": "Baz",
	})))
	require.NoError(t, err)

	base, err := pool.Get("base")
	require.NoError(t, err)
	assert.Equal(t, "Baz", base.App().Name())
	assert.Equal(t, "MYAPP", base.App().EnvPrefix())
}

func TestBuildPool_InvalidStructuredEnvironment(t *testing.T) {
	doc := map[string]any{"plugin": map[string]any{"prefix": []any{"a_"}}}
	_, err := config.BuildPool(doc, config.WithEnv(envOf(map[string]string{
		"PL_PLUGIN_PREFIX": "not json",
	})))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_ENV_INVALID")
}

func TestBuildPool_UnregisteredSectionsAreDropped(t *testing.T) {
	pool := buildSample(t, config.WithEnv(noEnv))
	base, err := pool.Get("base")
	require.NoError(t, err)

	assert.NotContains(t, base.SectionNames(), "unknown")
	assert.NotContains(t, base.SectionNames(), "program")
	// Registered sections exist even when the document omits them.
	assert.Contains(t, base.SectionNames(), "logger")
	assert.Contains(t, base.SectionNames(), "extra")
}

func TestBuildPool_CustomSection(t *testing.T) {
	sections := config.DefaultSections()
	sections.Register("unknown", config.Generic())

	pool := buildSample(t, config.WithEnv(noEnv), config.WithSections(sections))
	base, err := pool.Get("base")
	require.NoError(t, err)

	v, err := base.Get("unknown.dropped", nil)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestBuildPool_ProgramStoresAreSeeded(t *testing.T) {
	stores := ctxstore.NewRegistry(ctxstore.WithEnv(noEnv))
	pool := buildSample(t,
		config.WithEnv(noEnv),
		config.WithStores(stores),
		config.WithExtra(map[string]any{"build": "42"}))

	prod, err := pool.Get("prod")
	require.NoError(t, err)
	assert.Equal(t, "program.prod", prod.Store().Namespace())
	assert.Equal(t, "42", prod.Store().Get("build"))
	assert.Equal(t, "/b", prod.Store().Get("path.workspace"))
	assert.NotContains(t, stores.Namespaces(""), "program.prod")
}

func TestBuildPool_InvalidProgramTable(t *testing.T) {
	_, err := config.BuildPool(map[string]any{"program": "nope"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_DOCUMENT_INVALID")

	_, err = config.BuildPool(map[string]any{"program": map[string]any{"prod": 1}})
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "program", "prod")
}

func TestPool_GetUnknownProgram(t *testing.T) {
	pool := buildSample(t, config.WithEnv(noEnv))
	_, err := pool.Get("staging")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "PROGRAM_NOT_FOUND")
	errutil.AssertErrorContext(t, err, "available", []string{"base", "prod"})

	c, ok := pool.Remove("prod")
	require.True(t, ok)
	assert.Equal(t, "prod", c.Name())
	assert.Equal(t, []string{"base"}, pool.Names())
}

func TestLoadPool_Formats(t *testing.T) {
	t.Run("toml", func(t *testing.T) {
		pool, err := config.LoadPool(writeDoc(t, "plank.toml", sampleTOML), config.WithEnv(noEnv))
		require.NoError(t, err)
		assert.Equal(t, []string{"base", "prod"}, pool.Names())
	})

	t.Run("yaml", func(t *testing.T) {
		doc := "app:\n  name: Bar\nprogram:\n  debug:\n    app:\n      debug: true\n"
		pool, err := config.LoadPool(writeDoc(t, "plank.yaml", doc), config.WithEnv(noEnv))
		require.NoError(t, err)

		debug, err := pool.Get("debug")
		require.NoError(t, err)
		assert.True(t, debug.App().Debug())
		assert.Equal(t, "Bar", debug.App().Name())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := config.LoadPool(writeDoc(t, "plank.ini", "a=b"))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_DOCUMENT_INVALID")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := config.LoadPool(writeDoc(t, "plank.toml", "[app\nname="))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_DOCUMENT_INVALID")
	})
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "PL_APP_NAME", config.EnvKey("PL", "app.name"))
	assert.Equal(t, "X_SERVICE_USERS_REMOTE_HOST", config.EnvKey("X", "service.users.remote.host"))
}

func TestApplyEnv_DecodesStructuredValues(t *testing.T) {
	flat := map[string]any{
		"plugin.prefix": []any{"a_"},
		"app.port":      int64(80),
		"app.name":      "x",
	}
	err := config.ApplyEnv(flat, "PL", envOf(map[string]string{
		"PL_PLUGIN_PREFIX": `["b_", "c_"]`,
		"PL_APP_PORT":      "8080",
		"PL_APP_NAME":      "[1]",
	}))
	require.NoError(t, err)

	assert.Equal(t, []any{"b_", "c_"}, flat["plugin.prefix"])
	assert.Equal(t, float64(8080), flat["app.port"])
	assert.Equal(t, "[1]", flat["app.name"], "string values are taken verbatim")
}
