// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/internal/observability"
	"github.com/gradyzhuo/plank/internal/xdg"
)

// Lifecycle drives plugins through discover, install, load and unload.
type Lifecycle interface {
	Discover(ctx context.Context, prefix string) ([]*Plugin, error)
	Install(ctx context.Context, p *Plugin) error
	Load(ctx context.Context, p *Plugin) error
	Unload(ctx context.Context, p *Plugin) error
}

// DataDirFunc maps a plugin name to its data directory. An empty result
// selects the default under the XDG state directory.
type DataDirFunc func(name string) string

// Manager discovers plugins and manages their lifecycle.
//
// Installation and loading are expected to run once, sequentially, at
// start-up. Lookups are safe for concurrent use.
type Manager struct {
	workingDir  string
	searchPaths []string
	stores      *ctxstore.Registry
	delegates   *Delegates
	scripts     ScriptHost
	dataDir     DataDirFunc
	hostVersion string
	metrics     *observability.Metrics

	mu        sync.RWMutex
	installed map[string]*Plugin
}

var _ Lifecycle = (*Manager)(nil)

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithWorkingDir sets the first discovery root. Defaults to ".".
func WithWorkingDir(dir string) ManagerOption {
	return func(m *Manager) { m.workingDir = dir }
}

// WithSearchPaths appends discovery roots scanned after the working
// directory. A later root overrides an earlier one for the same identity.
func WithSearchPaths(paths ...string) ManagerOption {
	return func(m *Manager) { m.searchPaths = append(m.searchPaths, paths...) }
}

// WithStores sets the store registry plugin stores are created in.
func WithStores(r *ctxstore.Registry) ManagerOption {
	return func(m *Manager) { m.stores = r }
}

// WithDelegates sets the compiled-in delegate factories.
func WithDelegates(d *Delegates) ManagerOption {
	return func(m *Manager) { m.delegates = d }
}

// WithScriptHost sets the host building "lua:" delegates.
func WithScriptHost(h ScriptHost) ManagerOption {
	return func(m *Manager) { m.scripts = h }
}

// WithDataDir sets how plugin data directories are computed.
func WithDataDir(fn DataDirFunc) ManagerOption {
	return func(m *Manager) { m.dataDir = fn }
}

// WithHostVersion sets the version checked against manifest requires.
func WithHostVersion(v string) ManagerOption {
	return func(m *Manager) { m.hostVersion = v }
}

// WithMetrics records state transitions.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a plugin manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		workingDir: ".",
		installed:  make(map[string]*Plugin),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.stores == nil {
		m.stores = ctxstore.NewRegistry()
	}
	if m.delegates == nil {
		m.delegates = NewDelegates()
	}
	return m
}

// Discover finds plugins whose directory name starts with prefix under the
// working directory and the search paths. Invalid and incompatible
// manifests are logged and skipped; an unresolvable delegate fails.
//
// Discovery is not deduplicated across calls: rediscovering the same
// plugin creates a second instance.
func (m *Manager) Discover(ctx context.Context, prefix string) ([]*Plugin, error) {
	candidates := make(map[string]string)
	roots := append([]string{m.workingDir}, m.searchPaths...)
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, oops.In("plugin").With("root", root).Wrapf(err, "read plugin root")
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
				slog.Debug("ignoring directory without manifest", "dir", dir)
				continue
			}
			if prev, ok := candidates[entry.Name()]; ok {
				slog.Debug("plugin overridden by later search path",
					"package", entry.Name(),
					"previous", prev,
					"dir", dir)
			}
			candidates[entry.Name()] = dir
		}
	}

	pkgs := make([]string, 0, len(candidates))
	for pkg := range candidates {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var plugins []*Plugin
	for _, pkg := range pkgs {
		p, err := m.discover(ctx, pkg, candidates[pkg])
		if err != nil {
			return nil, err
		}
		if p != nil {
			plugins = append(plugins, p)
		}
	}
	return plugins, nil
}

// discover builds one plugin. A nil plugin with a nil error means skipped.
func (m *Manager) discover(ctx context.Context, pkg, dir string) (*Plugin, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile)) //nolint:gosec // dir comes from ReadDir entries
	if err != nil {
		slog.Warn("skipping plugin with unreadable manifest", "dir", dir, "error", err)
		return nil, nil
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		slog.Warn("skipping plugin with invalid manifest",
			"dir", dir,
			"error", FormatSchemaError(err))
		return nil, nil
	}

	ok, err := manifest.Compatible(m.hostVersion)
	if err != nil || !ok {
		slog.Warn("skipping incompatible plugin",
			"plugin", manifest.Name,
			"requires", manifest.Requires,
			"host_version", m.hostVersion,
			"error", err)
		return nil, nil
	}

	dataDir := ""
	if m.dataDir != nil {
		dataDir = m.dataDir(manifest.Name)
	}
	if dataDir == "" {
		dataDir = filepath.Join(xdg.StateDir(), "plugins", manifest.Name)
	}

	p := newPlugin(pkg, dir, manifest, m.stores.Namespace(StoreNamespacePrefix+pkg), dataDir)
	delegate, err := m.resolveDelegate(ctx, p)
	if err != nil {
		return nil, err
	}
	p.setDelegate(delegate)
	m.metrics.RecordTransition(StateDiscovered.String())

	slog.InfoContext(WithPlugin(ctx, p), "discovered plugin",
		"package", pkg,
		"version", manifest.Version,
		"dir", dir)

	if err := CallHook(ctx, p, "PluginDidDiscover", func(ctx context.Context, d Delegate) error {
		return d.PluginDidDiscover(ctx, p)
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) resolveDelegate(ctx context.Context, p *Plugin) (Delegate, error) {
	ref := p.Manifest().Delegate
	if ref == "" {
		return BaseDelegate{}, nil
	}

	if entry, ok := p.Manifest().ScriptEntry(); ok {
		if m.scripts == nil {
			return nil, oops.In("plugin").
				Code("PLUGIN_DELEGATE_NOT_FOUND").
				With("plugin", p.Name()).
				With("delegate", ref).
				Hint("configure a script host to run lua delegates").
				Errorf("no script host for delegate %q", ref)
		}
		d, err := m.scripts.NewDelegate(ctx, p, entry)
		if err != nil {
			return nil, oops.In("plugin").With("plugin", p.Name()).With("delegate", ref).Wrap(err)
		}
		return d, nil
	}

	factory, err := m.delegates.Resolve(ref)
	if err != nil {
		return nil, oops.In("plugin").With("plugin", p.Name()).Wrap(err)
	}
	d, err := factory(p)
	if err != nil {
		return nil, oops.In("plugin").With("plugin", p.Name()).With("delegate", ref).Wrap(err)
	}
	return d, nil
}

// Install indexes p by its package identity and runs PluginDidInstall.
//
// A later install for the same identity replaces the earlier entry. The
// shadowing is logged, not rejected.
func (m *Manager) Install(ctx context.Context, p *Plugin) error {
	if err := p.advance(StateInstalled); err != nil {
		return err
	}

	m.mu.Lock()
	if prev, ok := m.installed[p.Package()]; ok && prev != p {
		slog.Warn("plugin identity shadowed by later install",
			"package", p.Package(),
			"previous", prev.Dir(),
			"dir", p.Dir())
	}
	m.installed[p.Package()] = p
	m.mu.Unlock()

	m.metrics.RecordTransition(StateInstalled.String())
	return CallHook(ctx, p, "PluginDidInstall", func(ctx context.Context, d Delegate) error {
		return d.PluginDidInstall(ctx, p)
	})
}

// Load runs PluginWillLoad, marks p loaded and runs PluginDidLoad.
func (m *Manager) Load(ctx context.Context, p *Plugin) error {
	if from := p.State(); !from.CanTransition(StateLoaded) {
		return transitionError(p.Name(), from, StateLoaded)
	}
	if err := CallHook(ctx, p, "PluginWillLoad", func(ctx context.Context, d Delegate) error {
		return d.PluginWillLoad(ctx, p)
	}); err != nil {
		return err
	}
	if err := p.advance(StateLoaded); err != nil {
		return err
	}
	m.metrics.RecordTransition(StateLoaded.String())

	if err := CallHook(ctx, p, "PluginDidLoad", func(ctx context.Context, d Delegate) error {
		return d.PluginDidLoad(ctx, p)
	}); err != nil {
		return err
	}
	slog.InfoContext(WithPlugin(ctx, p), "loaded plugin", "version", p.Version())
	return nil
}

// Unload marks p unloaded and runs PluginDidUnload. The state changes even
// when the hook fails.
func (m *Manager) Unload(ctx context.Context, p *Plugin) error {
	if err := p.advance(StateUnloaded); err != nil {
		return err
	}
	m.metrics.RecordTransition(StateUnloaded.String())
	return CallHook(ctx, p, "PluginDidUnload", func(ctx context.Context, d Delegate) error {
		return d.PluginDidUnload(ctx, p)
	})
}

// Lookup returns the installed plugin with package identity pkg.
func (m *Manager) Lookup(pkg string) (*Plugin, error) {
	m.mu.RLock()
	p, ok := m.installed[pkg]
	m.mu.RUnlock()
	if !ok {
		return nil, oops.In("plugin").
			Code("PLUGIN_NOT_FOUND").
			With("package", pkg).
			With("available", m.packages()).
			Errorf("plugin %q not installed", pkg)
	}
	return p, nil
}

// Plugins returns the installed plugins sorted by identity.
func (m *Manager) Plugins() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Plugin, 0, len(m.installed))
	for _, p := range m.installed {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Package() < out[j].Package() })
	return out
}

func (m *Manager) packages() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.installed))
	for name := range m.installed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close unloads every loaded plugin, best-effort.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, p := range m.Plugins() {
		if p.State() != StateLoaded {
			continue
		}
		if err := m.Unload(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CallHook runs fn with p's delegate and p's identity in ctx. A failure is
// logged and wrapped as PLUGIN_HOOK_FAILED.
func CallHook(ctx context.Context, p *Plugin, hook string, fn func(context.Context, Delegate) error) error {
	ctx = WithPlugin(ctx, p)
	if err := fn(ctx, p.Delegate()); err != nil {
		slog.ErrorContext(ctx, "plugin hook failed", "hook", hook, "error", err)
		return oops.In("plugin").
			Code("PLUGIN_HOOK_FAILED").
			With("plugin", p.Name()).
			With("hook", hook).
			Wrap(err)
	}
	return nil
}
