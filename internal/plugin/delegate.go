// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/oops"
)

// Delegate receives a plugin's lifecycle hooks. Every hook runs with the
// plugin identity in ctx; see FromContext.
type Delegate interface {
	PluginDidDiscover(ctx context.Context, p *Plugin) error
	PluginDidInstall(ctx context.Context, p *Plugin) error
	PluginWillLoad(ctx context.Context, p *Plugin) error
	PluginDidLoad(ctx context.Context, p *Plugin) error
	PluginDidUnload(ctx context.Context, p *Plugin) error
	ApplicationDidLaunch(ctx context.Context, p *Plugin, options map[string]any) error
}

// BaseDelegate implements every hook as a no-op. Embed it to override only
// the hooks a plugin needs.
type BaseDelegate struct{}

var _ Delegate = BaseDelegate{}

// PluginDidDiscover implements Delegate.
func (BaseDelegate) PluginDidDiscover(context.Context, *Plugin) error { return nil }

// PluginDidInstall implements Delegate.
func (BaseDelegate) PluginDidInstall(context.Context, *Plugin) error { return nil }

// PluginWillLoad implements Delegate.
func (BaseDelegate) PluginWillLoad(context.Context, *Plugin) error { return nil }

// PluginDidLoad implements Delegate.
func (BaseDelegate) PluginDidLoad(context.Context, *Plugin) error { return nil }

// PluginDidUnload implements Delegate.
func (BaseDelegate) PluginDidUnload(context.Context, *Plugin) error { return nil }

// ApplicationDidLaunch implements Delegate.
func (BaseDelegate) ApplicationDidLaunch(context.Context, *Plugin, map[string]any) error { return nil }

// DelegateFactory builds the delegate of a discovered plugin.
type DelegateFactory func(p *Plugin) (Delegate, error)

// ScriptHost builds delegates from script entry files.
type ScriptHost interface {
	NewDelegate(ctx context.Context, p *Plugin, entry string) (Delegate, error)
}

// Delegates maps manifest delegate references ("package:Name") to
// factories compiled into the host.
//
// Delegates is safe for concurrent use.
type Delegates struct {
	mu        sync.RWMutex
	factories map[string]DelegateFactory
}

// NewDelegates creates an empty delegate registry.
func NewDelegates() *Delegates {
	return &Delegates{factories: make(map[string]DelegateFactory)}
}

// Register sets the factory for ref, replacing any previous one.
func (d *Delegates) Register(ref string, factory DelegateFactory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[ref] = factory
}

// Resolve returns the factory registered for ref.
func (d *Delegates) Resolve(ref string) (DelegateFactory, error) {
	d.mu.RLock()
	factory, ok := d.factories[ref]
	d.mu.RUnlock()
	if !ok {
		return nil, oops.In("plugin").
			Code("PLUGIN_DELEGATE_NOT_FOUND").
			With("delegate", ref).
			With("available", d.Refs()).
			Hint("register the delegate factory before discovery").
			Errorf("delegate %q not registered", ref)
	}
	return factory, nil
}

// Refs returns the registered references, sorted.
func (d *Delegates) Refs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	refs := make([]string, 0, len(d.factories))
	for ref := range d.factories {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
