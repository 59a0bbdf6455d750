// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gradyzhuo/plank/internal/ctxstore"
)

// RemoteConfig describes where a service is reachable.
type RemoteConfig struct {
	values map[string]any
	store  *ctxstore.Store
}

// Scheme returns the remote scheme, "http" when unset.
func (r *RemoteConfig) Scheme() string {
	if s := asString(r.values["scheme"]); s != "" {
		return s
	}
	return "http"
}

// Host returns the remote host.
func (r *RemoteConfig) Host() string { return asString(r.values["host"]) }

// Port returns the remote port and whether one is configured.
func (r *RemoteConfig) Port() (int, bool) {
	return asInt(r.values["port"])
}

// Path returns the resolved remote path.
func (r *RemoteConfig) Path() string {
	return r.store.RewordString(asString(r.values["path"]), nil)
}

// BaseURL joins scheme, host, port and path into a URL.
func (r *RemoteConfig) BaseURL() string {
	var b strings.Builder
	b.WriteString(r.Scheme())
	b.WriteString("://")
	b.WriteString(r.Host())
	if port, ok := r.Port(); ok {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(port))
	}
	if p := r.Path(); p != "" {
		if !strings.HasPrefix(p, "/") {
			b.WriteString("/")
		}
		b.WriteString(p)
	}
	return r.store.RewordString(b.String(), nil)
}

// ServiceConfig is one service.<name> block.
type ServiceConfig struct {
	Name   string
	Values map[string]any
	// Class is a "package:Name" reference, from either a string or a
	// {from, import} table.
	Class  string
	Remote *RemoteConfig
}

// ServiceSection groups service.<name>.* keys into ServiceConfigs.
type ServiceSection struct {
	*BaseSection
	configs map[string]*ServiceConfig
}

func newServiceSection(base *BaseSection) (Section, error) {
	s := &ServiceSection{
		BaseSection: base,
		configs:     make(map[string]*ServiceConfig),
	}

	grouped := make(map[string]map[string]any)
	for key, value := range base.Values() {
		parts := strings.Split(key, keyDelim)
		if len(parts) < 3 {
			continue
		}
		name := parts[1]
		node, ok := grouped[name]
		if !ok {
			node = make(map[string]any)
			grouped[name] = node
		}
		for _, seg := range parts[2 : len(parts)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}

	for name, values := range grouped {
		cfg := &ServiceConfig{
			Name:   name,
			Values: values,
			Class:  classRef(values["class"]),
		}
		if remote, ok := values["remote"].(map[string]any); ok {
			cfg.Remote = &RemoteConfig{values: remote, store: base.Store()}
		}
		s.configs[name] = cfg
	}
	return s, nil
}

func classRef(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		from, imp := asString(val["from"]), asString(val["import"])
		if from == "" || imp == "" {
			return ""
		}
		return from + ":" + imp
	default:
		return ""
	}
}

// Config returns the configuration of the named service.
func (s *ServiceSection) Config(name string) (*ServiceConfig, bool) {
	cfg, ok := s.configs[name]
	return cfg, ok
}

// Exists reports whether a service is configured.
func (s *ServiceSection) Exists(name string) bool {
	_, ok := s.configs[name]
	return ok
}

// Names returns the configured service names, sorted.
func (s *ServiceSection) Names() []string {
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
