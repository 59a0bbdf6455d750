// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package plugin

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
	"github.com/gradyzhuo/plank/internal/service"
)

// StoreNamespacePrefix prefixes the store namespace of every plugin.
const StoreNamespacePrefix = "plugin.config."

// Plugin is a discovered unit contributing services.
type Plugin struct {
	pkg      string
	dir      string
	manifest *Manifest
	store    *ctxstore.Store
	dataDir  string

	mu       sync.RWMutex
	delegate Delegate
	state    State
	services map[string]*service.Service
}

// newPlugin creates a discovered plugin. pkg is its identity, the
// directory name that matched the discovery prefix.
func newPlugin(pkg, dir string, m *Manifest, store *ctxstore.Store, dataDir string) *Plugin {
	store.Set("plugin", m.Name)
	return &Plugin{
		pkg:      pkg,
		dir:      dir,
		manifest: m,
		store:    store,
		dataDir:  dataDir,
		delegate: BaseDelegate{},
		state:    StateDiscovered,
		services: make(map[string]*service.Service),
	}
}

// Name returns the manifest name.
func (p *Plugin) Name() string { return p.manifest.Name }

// Package returns the plugin identity.
func (p *Plugin) Package() string { return p.pkg }

// Dir returns the plugin directory.
func (p *Plugin) Dir() string { return p.dir }

// Manifest returns the parsed manifest.
func (p *Plugin) Manifest() *Manifest { return p.manifest }

// Version returns the manifest version.
func (p *Plugin) Version() string { return p.manifest.Version }

// Store returns the plugin's context store, "plugin.config.<package>".
func (p *Plugin) Store() *ctxstore.Store { return p.store }

// DataDir returns the plugin data directory.
func (p *Plugin) DataDir() string { return p.dataDir }

// Delegate returns the lifecycle delegate.
func (p *Plugin) Delegate() Delegate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.delegate
}

// State returns the lifecycle state.
func (p *Plugin) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Plugin) setDelegate(d Delegate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delegate = d
}

// advance moves p to the next state, failing if to is not it.
func (p *Plugin) advance(to State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.CanTransition(to) {
		return transitionError(p.manifest.Name, p.state, to)
	}
	p.state = to
	return nil
}

// AddService attaches svc to p and makes p its owner unless it already
// has one.
func (p *Plugin) AddService(svc *service.Service) {
	svc.SetOwner(p)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services[svc.Name()] = svc
}

// Service returns the named service.
func (p *Plugin) Service(name string) (*service.Service, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	svc, ok := p.services[name]
	return svc, ok
}

// Services returns the plugin services sorted by name.
func (p *Plugin) Services() []*service.Service {
	p.mu.RLock()
	out := make([]*service.Service, 0, len(p.services))
	for _, svc := range p.services {
		out = append(out, svc)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// NamedAsset is an asset with its manifest key and resolved path.
type NamedAsset struct {
	Name string
	Type string
	Path string
}

// Asset returns the named asset with its path resolved against Dir.
func (p *Plugin) Asset(name string) (NamedAsset, error) {
	a, ok := p.manifest.Assets[name]
	if !ok {
		names := make([]string, 0, len(p.manifest.Assets))
		for n := range p.manifest.Assets {
			names = append(names, n)
		}
		sort.Strings(names)
		return NamedAsset{}, oops.In("plugin").
			Code("PLUGIN_ASSET_NOT_FOUND").
			With("plugin", p.Name()).
			With("asset", name).
			With("available", names).
			Errorf("asset %q not found in plugin %q", name, p.Name())
	}
	return p.resolve(name, a), nil
}

// AssetsByType returns the assets of type t sorted by name.
func (p *Plugin) AssetsByType(t string) []NamedAsset {
	var out []NamedAsset
	for name, a := range p.manifest.Assets {
		if a.Type == t {
			out = append(out, p.resolve(name, a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *Plugin) resolve(name string, a Asset) NamedAsset {
	path := a.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, path)
	}
	return NamedAsset{Name: name, Type: a.Type, Path: path}
}
