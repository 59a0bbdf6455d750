// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/maps"

	"github.com/gradyzhuo/plank/internal/xdg"
)

// Built-in section names.
const (
	SectionApp     = "app"
	SectionLogger  = "logger"
	SectionPath    = "path"
	SectionPlugin  = "plugin"
	SectionService = "service"
	SectionExtra   = "extra"
)

// AppSection reads the app section.
type AppSection struct {
	*BaseSection
}

func newAppSection(base *BaseSection) (Section, error) {
	return &AppSection{BaseSection: base}, nil
}

// Debug reports app.debug.
func (s *AppSection) Debug() bool { return asBool(s.Get("debug")) }

// Name returns app.name.
func (s *AppSection) Name() string { return s.String("name") }

// Version returns app.version.
func (s *AppSection) Version() string { return s.String("version") }

// BuildVersion returns app.build_version.
func (s *AppSection) BuildVersion() string { return s.String("build_version") }

// Delegate returns the app.delegate reference.
func (s *AppSection) Delegate() string { return s.String("delegate") }

// EnvPrefix returns app.env.prefix or DefaultEnvPrefix.
func (s *AppSection) EnvPrefix() string {
	if p := s.String("env.prefix"); p != "" {
		return p
	}
	return DefaultEnvPrefix
}

// LoggerSection reads the logger section.
type LoggerSection struct {
	*BaseSection
}

func newLoggerSection(base *BaseSection) (Section, error) {
	return &LoggerSection{BaseSection: base}, nil
}

// Level returns logger.level, "info" when unset.
func (s *LoggerSection) Level() string {
	if l := s.String("level"); l != "" {
		return l
	}
	return "info"
}

// Format returns logger.format, "json" when unset.
func (s *LoggerSection) Format() string {
	if f := s.String("format"); f != "" {
		return f
	}
	return "json"
}

// PathSection reads the path section.
type PathSection struct {
	*BaseSection
}

func newPathSection(base *BaseSection) (Section, error) {
	return &PathSection{BaseSection: base}, nil
}

// Workspace returns path.workspace, or the XDG data directory when unset.
func (s *PathSection) Workspace() string {
	if w := s.String("workspace"); w != "" {
		return w
	}
	return xdg.DataDir()
}

// Path resolves the named path template.
//
// Items of the main store are offered as template variables, with overrides
// taking precedence over them. The result is "" when name is not configured.
func (s *PathSection) Path(name string, overrides map[string]any) string {
	raw, ok := s.Raw(name)
	if !ok {
		return ""
	}
	vars := make(map[string]any)
	if m := s.Store().Main(); m != nil {
		for k, v := range m.Items() {
			vars[k] = v
		}
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return asString(s.Store().Reword(raw, vars))
}

// SetPath stores a path template under name.
func (s *PathSection) SetPath(name, path string) {
	s.Set(name, path)
}

// RemovePath deletes the named path.
func (s *PathSection) RemovePath(name string) {
	s.Remove(name)
}

// PluginSection reads the plugin section.
type PluginSection struct {
	*BaseSection
}

func newPluginSection(base *BaseSection) (Section, error) {
	return &PluginSection{BaseSection: base}, nil
}

// Prefixes returns plugin.prefix as a list. A single string is accepted.
func (s *PluginSection) Prefixes() []string {
	return s.list("prefix")
}

// SearchPaths returns plugin.paths, the extra discovery roots.
func (s *PluginSection) SearchPaths() []string {
	return s.list("paths")
}

func (s *PluginSection) list(key string) []string {
	raw, ok := s.Raw(key)
	if !ok || raw == nil {
		return nil
	}
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, item := range v {
			items = append(items, item)
		}
	default:
		items = []any{v}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, s.Store().RewordString(asString(item), nil))
	}
	return out
}

// ExtraSection exposes free-form collections under extra.
type ExtraSection struct {
	*BaseSection
}

func newExtraSection(base *BaseSection) (Section, error) {
	return &ExtraSection{BaseSection: base}, nil
}

// Collections returns the extra section as nested maps keyed by collection.
func (s *ExtraSection) Collections() map[string]any {
	prefix := s.Namespace() + keyDelim
	stripped := make(map[string]any)
	for k, v := range s.Values() {
		stripped[strings.TrimPrefix(k, prefix)] = v
	}
	return maps.Unflatten(stripped, keyDelim)
}

// Collection returns one named collection.
func (s *ExtraSection) Collection(name string) (any, bool) {
	v, ok := s.Collections()[name]
	return v, ok
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, _ := strconv.ParseBool(val)
		return b
	default:
		return false
	}
}

func asInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(val)
		return n, err == nil
	default:
		return 0, false
	}
}
