// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package lua

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/gradyzhuo/plank/internal/logging"
	"github.com/gradyzhuo/plank/internal/plugin"
)

// Hook function names a script may define. All are optional.
const (
	HookDidDiscover  = "plugin_did_discover"
	HookDidInstall   = "plugin_did_install"
	HookWillLoad     = "plugin_will_load"
	HookDidLoad      = "plugin_did_load"
	HookDidUnload    = "plugin_did_unload"
	HookDidLaunchApp = "application_did_launch"
)

// Delegate runs plugin hooks defined in a Lua script.
type Delegate struct {
	factory *StateFactory
	entry   string
	code    string
}

var _ plugin.Delegate = (*Delegate)(nil)

// PluginDidDiscover implements plugin.Delegate.
func (d *Delegate) PluginDidDiscover(ctx context.Context, p *plugin.Plugin) error {
	return d.call(ctx, p, HookDidDiscover)
}

// PluginDidInstall implements plugin.Delegate.
func (d *Delegate) PluginDidInstall(ctx context.Context, p *plugin.Plugin) error {
	return d.call(ctx, p, HookDidInstall)
}

// PluginWillLoad implements plugin.Delegate.
func (d *Delegate) PluginWillLoad(ctx context.Context, p *plugin.Plugin) error {
	return d.call(ctx, p, HookWillLoad)
}

// PluginDidLoad implements plugin.Delegate.
func (d *Delegate) PluginDidLoad(ctx context.Context, p *plugin.Plugin) error {
	return d.call(ctx, p, HookDidLoad)
}

// PluginDidUnload implements plugin.Delegate.
func (d *Delegate) PluginDidUnload(ctx context.Context, p *plugin.Plugin) error {
	return d.call(ctx, p, HookDidUnload)
}

// ApplicationDidLaunch implements plugin.Delegate.
func (d *Delegate) ApplicationDidLaunch(ctx context.Context, p *plugin.Plugin, options map[string]any) error {
	return d.call(ctx, p, HookDidLaunchApp, options)
}

// call runs the script in a fresh state and invokes hook with a plugin
// table, plus options when given. A missing hook is not an error.
func (d *Delegate) call(ctx context.Context, p *plugin.Plugin, hook string, options ...map[string]any) error {
	L, err := d.factory.NewState(ctx)
	if err != nil {
		return oops.In("lua").With("plugin", p.Name()).With("hook", hook).Wrap(err)
	}
	defer L.Close()

	register(L, p)

	if err := L.DoString(d.code); err != nil {
		return oops.In("lua").
			With("plugin", p.Name()).
			With("entry", d.entry).
			Hint("failed to load code").
			Wrap(err)
	}

	fn := L.GetGlobal(hook)
	if fn.Type() == lua.LTNil {
		slog.DebugContext(ctx, "script defines no hook", "hook", hook)
		return nil
	}

	args := []lua.LValue{pluginTable(L, p)}
	for _, opts := range options {
		args = append(args, toLua(L, opts))
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		return oops.In("lua").With("plugin", p.Name()).With("hook", hook).Wrap(err)
	}
	return nil
}

func pluginTable(L *lua.LState, p *plugin.Plugin) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "name", lua.LString(p.Name()))
	L.SetField(t, "package", lua.LString(p.Package()))
	L.SetField(t, "version", lua.LString(p.Version()))
	L.SetField(t, "dir", lua.LString(p.Dir()))
	L.SetField(t, "data_dir", lua.LString(p.DataDir()))
	L.SetField(t, "state", lua.LString(p.State().String()))
	return t
}

// register installs the plank module bound to the plugin store.
func register(L *lua.LState, p *plugin.Plugin) {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(getFn(p)))
	L.SetField(mod, "set", L.NewFunction(setFn(p)))
	L.SetField(mod, "log", L.NewFunction(logFn))
	L.SetGlobal("plank", mod)
}

// getFn returns the resolved store value for a key, or nil.
func getFn(p *plugin.Plugin) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		v, ok := p.Store().Lookup(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(toLua(L, v))
		return 1
	}
}

func setFn(p *plugin.Plugin) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		p.Store().Set(key, fromLua(L.CheckAny(2)))
		return 0
	}
}

// logFn logs through slog with the hook context, so records carry the
// plugin name.
func logFn(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	slog.Default().Log(ctx, logging.ParseLevel(level), message)
	return 0
}
