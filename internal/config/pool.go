// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"sort"
	"sync"

	"github.com/knadh/koanf/maps"
	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
)

// BaseProgram always exists and carries the document defaults unchanged.
const BaseProgram = "base"

// programKey is the reserved table of per-program overrides.
const programKey = "program"

type buildOptions struct {
	sections *Sections
	stores   *ctxstore.Registry
	env      ctxstore.EnvLookup
	extra    map[string]any
}

// BuildOption configures pool construction.
type BuildOption func(*buildOptions)

// WithSections sets the section registry. Defaults to DefaultSections.
func WithSections(s *Sections) BuildOption {
	return func(o *buildOptions) { o.sections = s }
}

// WithStores sets the store registry program stores fall back to.
func WithStores(r *ctxstore.Registry) BuildOption {
	return func(o *buildOptions) { o.stores = r }
}

// WithEnv sets the environment lookup used for overrides.
func WithEnv(lookup ctxstore.EnvLookup) BuildOption {
	return func(o *buildOptions) { o.env = lookup }
}

// WithExtra seeds every program store with extra values.
func WithExtra(extra map[string]any) BuildOption {
	return func(o *buildOptions) { o.extra = extra }
}

// Pool holds one Configuration per program.
type Pool struct {
	mu       sync.RWMutex
	programs map[string]*Configuration
}

// NewPool creates a pool holding configs.
func NewPool(configs ...*Configuration) *Pool {
	p := &Pool{programs: make(map[string]*Configuration)}
	for _, c := range configs {
		p.Add(c)
	}
	return p
}

// LoadPool reads the document at path and builds its programs.
func LoadPool(path string, opts ...BuildOption) (*Pool, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return BuildPool(doc, opts...)
}

// BuildPool builds one Configuration per program declared in doc.
//
// Defaults are the document minus its program table, flattened to dotted
// keys and overridden from the environment. Each program deep-copies the
// defaults and merges its own flattened overrides key by key, so siblings it
// does not mention keep their default values.
func BuildPool(doc map[string]any, opts ...BuildOption) (*Pool, error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sections == nil {
		o.sections = DefaultSections()
	}
	if o.stores == nil {
		o.stores = ctxstore.NewRegistry()
	}

	defaults := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != programKey {
			defaults[k] = v
		}
	}

	flat := Flatten(defaults, "")
	if err := ApplyEnv(flat, envPrefix(flat), o.env); err != nil {
		return nil, err
	}

	grouped := make(map[string]map[string]any)
	for key, value := range flat {
		ns := topLevel(key)
		if grouped[ns] == nil {
			grouped[ns] = make(map[string]any)
		}
		grouped[ns][key] = value
	}
	for _, name := range o.sections.Names() {
		if grouped[name] == nil {
			grouped[name] = make(map[string]any)
		}
	}

	overrides, err := programOverrides(doc[programKey])
	if err != nil {
		return nil, err
	}

	pool := NewPool()
	for name, override := range overrides {
		store := o.stores.Detached(programKey + keyDelim + name)
		store.Update(o.extra)

		sections := make(map[string]map[string]any, len(grouped))
		for ns, values := range grouped {
			sections[ns] = maps.Copy(values)
		}
		for ns, value := range override {
			if sections[ns] == nil {
				sections[ns] = make(map[string]any)
			}
			if nested, ok := value.(map[string]any); ok {
				for k, v := range Flatten(nested, ns) {
					sections[ns][k] = v
				}
				continue
			}
			sections[ns][ns] = value
		}

		c, err := Build(name, sections, store, o.sections)
		if err != nil {
			return nil, err
		}
		pool.Add(c)
	}
	return pool, nil
}

func programOverrides(v any) (map[string]map[string]any, error) {
	out := map[string]map[string]any{}
	if v != nil {
		table, ok := v.(map[string]any)
		if !ok {
			return nil, oops.In("config").
				Code("CONFIG_DOCUMENT_INVALID").
				With("key", programKey).
				Errorf("program must be a table")
		}
		for name, raw := range table {
			override, ok := raw.(map[string]any)
			if !ok {
				return nil, oops.In("config").
					Code("CONFIG_DOCUMENT_INVALID").
					With("program", name).
					Errorf("program %q must be a table", name)
			}
			out[name] = override
		}
	}
	if _, ok := out[BaseProgram]; !ok {
		out[BaseProgram] = map[string]any{}
	}
	return out, nil
}

// Add stores c under its program name, replacing any previous one.
func (p *Pool) Add(c *Configuration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.programs[c.Name()] = c
}

// Get returns the configuration of the named program.
func (p *Pool) Get(name string) (*Configuration, error) {
	p.mu.RLock()
	c, ok := p.programs[name]
	p.mu.RUnlock()
	if !ok {
		return nil, oops.In("config").
			Code("PROGRAM_NOT_FOUND").
			With("program", name).
			With("available", p.Names()).
			Errorf("program %q not found", name)
	}
	return c, nil
}

// Remove deletes the named program and returns it.
func (p *Pool) Remove(name string) (*Configuration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.programs[name]
	delete(p.programs, name)
	return c, ok
}

// Names returns the program names, sorted.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.programs))
	for name := range p.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
