// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package plugin discovers plugins and drives them through their lifecycle.
package plugin

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest every plugin directory carries.
const ManifestFile = "plugin.yaml"

// ScriptScheme prefixes delegate references that name a Lua entry file.
const ScriptScheme = "lua"

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name        string           `yaml:"name" jsonschema:"pattern=^[a-z]([a-z0-9_-]*[a-z0-9])?$,maxLength=64"`
	Version     string           `yaml:"version"`
	Description string           `yaml:"description,omitempty"`
	Delegate    string           `yaml:"delegate,omitempty"`
	Requires    string           `yaml:"requires,omitempty"`
	Assets      map[string]Asset `yaml:"assets,omitempty"`
}

// Asset is a file shipped with a plugin.
type Asset struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with lowercase letter,
// followed by lowercase letters, digits, underscores or hyphens.
// Cannot end with a separator. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9_-]*[a-z0-9])?$`)

// ParseManifest validates data against the manifest schema, decodes it and
// checks the remaining constraints.
func ParseManifest(data []byte) (*Manifest, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.In("plugin").
			Code("PLUGIN_MANIFEST_INVALID").
			Wrapf(err, "invalid YAML")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	invalid := oops.In("plugin").Code("PLUGIN_MANIFEST_INVALID").With("name", m.Name)

	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return invalid.Errorf("name %q must start with a-z, contain only a-z, 0-9, '_' or '-', and not end with a separator", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return invalid.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return invalid.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return invalid.With("version", m.Version).Wrapf(err, "version must be semver")
	}

	if m.Requires != "" {
		if _, err := semver.NewConstraint(m.Requires); err != nil {
			return invalid.With("requires", m.Requires).Wrapf(err, "requires must be a semver constraint")
		}
	}

	if m.Delegate != "" {
		scheme, ref, ok := strings.Cut(m.Delegate, ":")
		if !ok || scheme == "" || ref == "" {
			return invalid.With("delegate", m.Delegate).
				Hint(`use "package:Name" or "lua:entry.lua"`).
				Errorf("delegate %q must be a qualified reference", m.Delegate)
		}
	}

	for name, asset := range m.Assets {
		if asset.Path == "" {
			return invalid.With("asset", name).Errorf("asset %q has no path", name)
		}
	}
	return nil
}

// ScriptEntry returns the Lua entry file when the delegate is a script.
func (m *Manifest) ScriptEntry() (string, bool) {
	scheme, ref, ok := strings.Cut(m.Delegate, ":")
	if !ok || scheme != ScriptScheme {
		return "", false
	}
	return ref, true
}

// Compatible reports whether hostVersion satisfies Requires. An empty
// Requires or hostVersion always matches.
func (m *Manifest) Compatible(hostVersion string) (bool, error) {
	if m.Requires == "" || hostVersion == "" {
		return true, nil
	}
	constraint, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return false, oops.In("plugin").
			Code("PLUGIN_MANIFEST_INVALID").
			With("requires", m.Requires).
			Wrap(err)
	}
	v, err := semver.NewVersion(hostVersion)
	if err != nil {
		return false, oops.In("plugin").
			Code("PLUGIN_INCOMPATIBLE").
			With("host_version", hostVersion).
			Wrapf(err, "host version must be semver")
	}
	return constraint.Check(v), nil
}
