// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package app

import (
	"context"

	"github.com/gradyzhuo/plank/internal/plugin"
	"github.com/gradyzhuo/plank/internal/server"
)

// Delegate customises an application launch.
type Delegate interface {
	ApplicationWillLaunch(ctx context.Context, app *Application, options map[string]any) error
	ApplicationDidLaunch(ctx context.Context, app *Application) error

	// ApplicationUsingLifecycle picks the lifecycle for plugins discovered
	// under prefix. Nil selects the default plugin manager.
	ApplicationUsingLifecycle(app *Application, prefix string) plugin.Lifecycle

	ApplicationDidDiscoverPlugins(ctx context.Context, app *Application, plugins []*plugin.Plugin) error
	ApplicationShouldInstallPlugin(ctx context.Context, app *Application, p *plugin.Plugin) bool
	ApplicationDidInstallPlugin(ctx context.Context, app *Application, p *plugin.Plugin) error
	ApplicationShouldLoadPlugin(ctx context.Context, app *Application, p *plugin.Plugin) bool
	ApplicationDidLoadPlugin(ctx context.Context, app *Application, p *plugin.Plugin) error

	ServerDidStartup(ctx context.Context, app *Application, s *server.Server) error
	ServerDidShutdown(ctx context.Context, app *Application, s *server.Server) error
}

// BaseDelegate installs and loads every plugin and otherwise does nothing.
// Embed it to override single hooks.
type BaseDelegate struct{}

var _ Delegate = BaseDelegate{}

// ApplicationWillLaunch implements Delegate.
func (BaseDelegate) ApplicationWillLaunch(context.Context, *Application, map[string]any) error {
	return nil
}

// ApplicationDidLaunch implements Delegate.
func (BaseDelegate) ApplicationDidLaunch(context.Context, *Application) error { return nil }

// ApplicationUsingLifecycle implements Delegate.
func (BaseDelegate) ApplicationUsingLifecycle(*Application, string) plugin.Lifecycle { return nil }

// ApplicationDidDiscoverPlugins implements Delegate.
func (BaseDelegate) ApplicationDidDiscoverPlugins(context.Context, *Application, []*plugin.Plugin) error {
	return nil
}

// ApplicationShouldInstallPlugin implements Delegate.
func (BaseDelegate) ApplicationShouldInstallPlugin(context.Context, *Application, *plugin.Plugin) bool {
	return true
}

// ApplicationDidInstallPlugin implements Delegate.
func (BaseDelegate) ApplicationDidInstallPlugin(context.Context, *Application, *plugin.Plugin) error {
	return nil
}

// ApplicationShouldLoadPlugin implements Delegate.
func (BaseDelegate) ApplicationShouldLoadPlugin(context.Context, *Application, *plugin.Plugin) bool {
	return true
}

// ApplicationDidLoadPlugin implements Delegate.
func (BaseDelegate) ApplicationDidLoadPlugin(context.Context, *Application, *plugin.Plugin) error {
	return nil
}

// ServerDidStartup implements Delegate.
func (BaseDelegate) ServerDidStartup(context.Context, *Application, *server.Server) error {
	return nil
}

// ServerDidShutdown implements Delegate.
func (BaseDelegate) ServerDidShutdown(context.Context, *Application, *server.Server) error {
	return nil
}
