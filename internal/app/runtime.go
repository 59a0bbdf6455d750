// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package app composes configuration, plugins and services into a running
// application.
package app

import (
	"sync"

	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/internal/observability"
	"github.com/gradyzhuo/plank/internal/plugin"
	pluginlua "github.com/gradyzhuo/plank/internal/plugin/lua"
	"github.com/gradyzhuo/plank/internal/server"
	"github.com/gradyzhuo/plank/internal/service"
)

// PluginsNamespace is the store namespace recording installed plugins by
// name.
const PluginsNamespace = "collection.plugins"

// Runtime holds the registries an application is composed from. Tests
// build their own; commands share Default.
type Runtime struct {
	Stores     *ctxstore.Registry
	Sections   *config.Sections
	Config     *config.Holder
	Schemes    *service.SchemeManager
	Services   *service.Registry
	Delegates  *plugin.Delegates
	Scripts    plugin.ScriptHost
	Listeners  *server.Listeners
	Connectors *server.Connectors
	Metrics    *observability.Metrics
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	env     ctxstore.EnvLookup
	metrics *observability.Metrics
	inline  []server.InlineOption
}

// WithEnv replaces the environment lookup of the stores.
func WithEnv(lookup ctxstore.EnvLookup) RuntimeOption {
	return func(o *runtimeOptions) { o.env = lookup }
}

// WithMetrics records dispatch and plugin metrics.
func WithMetrics(m *observability.Metrics) RuntimeOption {
	return func(o *runtimeOptions) { o.metrics = m }
}

// WithInlineOptions configures the inline connector.
func WithInlineOptions(opts ...server.InlineOption) RuntimeOption {
	return func(o *runtimeOptions) { o.inline = append(o.inline, opts...) }
}

// NewRuntime creates a runtime with the inline scheme and connector
// registered.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	var o runtimeOptions
	for _, opt := range opts {
		opt(&o)
	}

	var storeOpts []ctxstore.Option
	if o.env != nil {
		storeOpts = append(storeOpts, ctxstore.WithEnv(o.env))
	}
	stores := ctxstore.NewRegistry(storeOpts...)

	rt := &Runtime{
		Stores:     stores,
		Sections:   config.DefaultSections(),
		Config:     config.NewHolder(),
		Schemes:    service.NewSchemeManager(),
		Services:   service.NewRegistry(stores),
		Delegates:  plugin.NewDelegates(),
		Scripts:    pluginlua.NewHost(),
		Listeners:  server.NewListeners(),
		Connectors: server.NewConnectors(),
		Metrics:    o.metrics,
	}

	rt.Schemes.Register(server.InlineScheme, server.NewInlineHelper)
	inline := append([]server.InlineOption{server.WithMetrics(rt.Metrics)}, o.inline...)
	rt.Connectors.Register(server.InlineScheme, server.InlineFactory(rt.Listeners, inline...))
	return rt
}

var (
	defaultOnce    sync.Once
	defaultRuntime *Runtime
)

// Default returns the process runtime, creating it on first use.
func Default() *Runtime {
	defaultOnce.Do(func() {
		defaultRuntime = NewRuntime()
	})
	return defaultRuntime
}

// BuildOptions returns the config build options binding documents to the
// runtime stores and sections.
func (rt *Runtime) BuildOptions(extra ...config.BuildOption) []config.BuildOption {
	return append([]config.BuildOption{
		config.WithSections(rt.Sections),
		config.WithStores(rt.Stores),
	}, extra...)
}

// LoadPool loads the configuration document at path into the runtime.
func (rt *Runtime) LoadPool(path string, extra ...config.BuildOption) (*config.Pool, error) {
	return config.LoadPool(path, rt.BuildOptions(extra...)...)
}

// NewPluginManager creates a plugin manager for cfg. Plugin data
// directories come from the path.plugin template with PLUGIN set to the
// plugin name. opts are applied last.
func (rt *Runtime) NewPluginManager(cfg *config.Configuration, opts ...plugin.ManagerOption) *plugin.Manager {
	base := []plugin.ManagerOption{
		plugin.WithStores(rt.Stores),
		plugin.WithDelegates(rt.Delegates),
		plugin.WithScriptHost(rt.Scripts),
		plugin.WithMetrics(rt.Metrics),
		plugin.WithSearchPaths(cfg.Plugin().SearchPaths()...),
		plugin.WithHostVersion(cfg.App().Version()),
		plugin.WithDataDir(func(name string) string {
			return cfg.Path().Path("plugin", map[string]any{"PLUGIN": name})
		}),
	}
	return plugin.NewManager(append(base, opts...)...)
}
