// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package app

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/internal/plugin"
	"github.com/gradyzhuo/plank/internal/server"
	"github.com/gradyzhuo/plank/internal/service"
)

// Application drives one configuration through launch: plugins are
// discovered, installed and loaded, and their services registered.
type Application struct {
	rt        *Runtime
	cfg       *config.Configuration
	delegate  Delegate
	installed *ctxstore.Store
	pluginOps []plugin.ManagerOption

	mu         sync.Mutex
	loaded     bool
	manager    *plugin.Manager
	lifecycles map[*plugin.Plugin]plugin.Lifecycle
}

var _ server.Lifecycle = (*Application)(nil)

// Option configures an Application.
type Option func(*Application)

// WithPluginOptions adds options to the default plugin manager.
func WithPluginOptions(opts ...plugin.ManagerOption) Option {
	return func(a *Application) { a.pluginOps = append(a.pluginOps, opts...) }
}

// New creates an application. A nil delegate selects BaseDelegate.
func New(rt *Runtime, cfg *config.Configuration, delegate Delegate, opts ...Option) *Application {
	if delegate == nil {
		delegate = BaseDelegate{}
	}
	a := &Application{
		rt:         rt,
		cfg:        cfg,
		delegate:   delegate,
		installed:  rt.Stores.Namespace(PluginsNamespace),
		lifecycles: make(map[*plugin.Plugin]plugin.Lifecycle),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns app.name.
func (a *Application) Name() string { return a.cfg.App().Name() }

// Version returns app.version.
func (a *Application) Version() string { return a.cfg.App().Version() }

// BuildVersion returns app.build_version.
func (a *Application) BuildVersion() string { return a.cfg.App().BuildVersion() }

// Workspace returns the workspace directory.
func (a *Application) Workspace() string { return a.cfg.Path().Workspace() }

// Debug reports app.debug.
func (a *Application) Debug() bool { return a.cfg.App().Debug() }

// Configuration returns the launched configuration.
func (a *Application) Configuration() *config.Configuration { return a.cfg }

// Delegate returns the application delegate.
func (a *Application) Delegate() Delegate { return a.delegate }

// Runtime returns the runtime the application is composed in.
func (a *Application) Runtime() *Runtime { return a.rt }

// Services returns the root service registry.
func (a *Application) Services() *service.Registry { return a.rt.Services }

// Loaded reports whether Launch has completed.
func (a *Application) Loaded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loaded
}

// Plugins returns the installed plugins sorted by name.
func (a *Application) Plugins() []*plugin.Plugin {
	var out []*plugin.Plugin
	for _, raw := range a.installed.Items() {
		if p, ok := raw.(*plugin.Plugin); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Plugin returns the installed plugin called name.
func (a *Application) Plugin(name string) (*plugin.Plugin, error) {
	if raw, ok := a.installed.Raw(name); ok {
		if p, ok := raw.(*plugin.Plugin); ok {
			return p, nil
		}
	}
	names := make([]string, 0)
	for _, p := range a.Plugins() {
		names = append(names, p.Name())
	}
	return nil, oops.In("app").
		Code("PLUGIN_NOT_FOUND").
		With("plugin", name).
		With("available", names).
		Errorf("plugin %q not installed", name)
}

// Manager returns the default plugin manager, creating it on first use.
func (a *Application) Manager() *plugin.Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.manager == nil {
		a.manager = a.rt.NewPluginManager(a.cfg, a.pluginOps...)
	}
	return a.manager
}

// Launch makes the configuration the default, publishes options and the
// configuration to the main store and processes plugins. The first plugin
// error stops the launch. Launching a loaded application does nothing.
func (a *Application) Launch(ctx context.Context, options map[string]any) error {
	if a.Loaded() {
		return nil
	}

	a.rt.Config.SetDefault(a.cfg)

	if err := a.delegate.ApplicationWillLaunch(ctx, a, options); err != nil {
		return oops.In("app").With("hook", "ApplicationWillLaunch").Wrap(err)
	}

	main := a.rt.Stores.Main()
	main.Update(options)
	main.Merge(a.cfg.Store())

	if err := a.delegate.ApplicationDidLaunch(ctx, a); err != nil {
		return oops.In("app").With("hook", "ApplicationDidLaunch").Wrap(err)
	}

	if err := a.processPlugins(ctx); err != nil {
		return err
	}

	for _, p := range a.Plugins() {
		if err := plugin.CallHook(ctx, p, "ApplicationDidLaunch", func(ctx context.Context, d plugin.Delegate) error {
			return d.ApplicationDidLaunch(ctx, p, options)
		}); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.loaded = true
	a.mu.Unlock()

	slog.InfoContext(ctx, "application launched",
		"app", a.Name(),
		"program", a.cfg.Name(),
		"plugins", len(a.Plugins()))
	return nil
}

func (a *Application) lifecycle(prefix string) plugin.Lifecycle {
	if lc := a.delegate.ApplicationUsingLifecycle(a, prefix); lc != nil {
		return lc
	}
	return a.Manager()
}

func (a *Application) processPlugins(ctx context.Context) error {
	var discovered []*plugin.Plugin
	for _, prefix := range a.cfg.Plugin().Prefixes() {
		lc := a.lifecycle(prefix)
		plugins, err := lc.Discover(ctx, prefix)
		if err != nil {
			return oops.In("app").With("prefix", prefix).Wrap(err)
		}
		a.mu.Lock()
		for _, p := range plugins {
			a.lifecycles[p] = lc
		}
		a.mu.Unlock()
		discovered = append(discovered, plugins...)
	}

	if len(discovered) > 0 {
		if err := a.delegate.ApplicationDidDiscoverPlugins(ctx, a, discovered); err != nil {
			return oops.In("app").With("hook", "ApplicationDidDiscoverPlugins").Wrap(err)
		}
	}

	for _, p := range discovered {
		pctx := plugin.WithPlugin(ctx, p)
		if err := a.processPlugin(pctx, p); err != nil {
			slog.ErrorContext(pctx, "failed to process plugin", "error", err)
			return err
		}
	}
	return nil
}

func (a *Application) processPlugin(ctx context.Context, p *plugin.Plugin) error {
	if !a.delegate.ApplicationShouldInstallPlugin(ctx, a, p) {
		slog.DebugContext(ctx, "plugin install declined")
		return nil
	}

	lc := a.lifecycleOf(p)
	if err := lc.Install(ctx, p); err != nil {
		return err
	}
	a.installed.Set(p.Name(), p)
	if err := a.delegate.ApplicationDidInstallPlugin(ctx, a, p); err != nil {
		return oops.In("app").With("plugin", p.Name()).With("hook", "ApplicationDidInstallPlugin").Wrap(err)
	}

	if a.delegate.ApplicationShouldLoadPlugin(ctx, a, p) {
		if err := lc.Load(ctx, p); err != nil {
			return err
		}
		if err := a.delegate.ApplicationDidLoadPlugin(ctx, a, p); err != nil {
			return oops.In("app").With("plugin", p.Name()).With("hook", "ApplicationDidLoadPlugin").Wrap(err)
		}
	}

	for _, svc := range p.Services() {
		svc.SetOwner(p)
		a.rt.Services.Register(svc, svc.Name(), p.Name())
		a.rt.Services.Shared(p.Name()).Add(svc, svc.Name())
	}
	return nil
}

func (a *Application) lifecycleOf(p *plugin.Plugin) plugin.Lifecycle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if lc, ok := a.lifecycles[p]; ok {
		return lc
	}
	return a.manager
}

// Unload unloads every loaded plugin, best-effort, and marks the
// application not loaded.
func (a *Application) Unload(ctx context.Context) error {
	var errs []error
	for _, p := range a.Plugins() {
		if p.State() != plugin.StateLoaded {
			continue
		}
		if err := a.lifecycleOf(p).Unload(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}

	a.mu.Lock()
	a.loaded = false
	a.mu.Unlock()
	return errors.Join(errs...)
}

// Connect builds a connector to the remote of the named service
// configuration.
func (a *Application) Connect(name string) (server.Connector, error) {
	cfg, ok := a.cfg.Service().Config(name)
	if !ok || cfg.Remote == nil {
		return nil, oops.In("app").
			Code("SERVICE_NOT_FOUND").
			With("service", name).
			With("available", a.cfg.Service().Names()).
			Hint("configure service.<name>.remote").
			Errorf("no remote configured for service %q", name)
	}
	conn, err := a.rt.Connectors.Connect(cfg.Remote.BaseURL())
	if err != nil {
		return nil, oops.In("app").With("service", name).Wrap(err)
	}
	return conn, nil
}

// ServerDidStartup implements server.Lifecycle.
func (a *Application) ServerDidStartup(ctx context.Context, s *server.Server) error {
	if addr, ok := s.Address(); ok {
		slog.InfoContext(ctx, "server started", "app", a.Name(), "address", addr.Description())
	}
	return a.delegate.ServerDidStartup(ctx, a, s)
}

// ServerDidShutdown implements server.Lifecycle.
func (a *Application) ServerDidShutdown(ctx context.Context, s *server.Server) error {
	slog.InfoContext(ctx, "server stopped", "app", a.Name())
	return a.delegate.ServerDidShutdown(ctx, a, s)
}

// NewServer creates a server bound to the application lifecycle that
// publishes its path prefix to the main store.
func (a *Application) NewServer(opts ...server.Option) *server.Server {
	base := []server.Option{
		server.WithLifecycle(a),
		server.WithStore(a.rt.Stores.Main()),
	}
	return server.New(append(base, opts...)...)
}
