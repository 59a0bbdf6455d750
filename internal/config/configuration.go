// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
)

// Configuration is the resolved configuration of one program.
type Configuration struct {
	name     string
	store    *ctxstore.Store
	sections map[string]Section
}

// Build constructs a Configuration from flattened sections.
//
// Each entry of flat is handed to the factory registered under its name.
// Sections without a registered factory are dropped.
func Build(name string, flat map[string]map[string]any, store *ctxstore.Store, sections *Sections) (*Configuration, error) {
	if sections == nil {
		sections = DefaultSections()
	}
	if store == nil {
		store = ctxstore.New("program." + name)
	}

	c := &Configuration{
		name:     name,
		store:    store,
		sections: make(map[string]Section, len(flat)),
	}

	for ns, values := range flat {
		factory, ok := sections.Factory(ns)
		if !ok {
			slog.Debug("dropping unregistered config section",
				"program", name,
				"section", ns)
			continue
		}
		section, err := factory(NewBaseSection(ns, values, store))
		if err != nil {
			return nil, oops.In("config").
				With("program", name).
				With("section", ns).
				Wrapf(err, "build section")
		}
		c.sections[ns] = section
	}
	return c, nil
}

// Name returns the program name.
func (c *Configuration) Name() string { return c.name }

// Store returns the program store every section writes into.
func (c *Configuration) Store() *ctxstore.Store { return c.store }

// SectionNames returns the names of the built sections, sorted.
func (c *Configuration) SectionNames() []string {
	names := make([]string, 0, len(c.sections))
	for name := range c.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Section returns the section that owns keyspace. The longest matching
// section name wins.
func (c *Configuration) Section(keyspace string) (Section, error) {
	var (
		best    Section
		bestLen int
	)
	for name, section := range c.sections {
		if keyspace != name && !strings.HasPrefix(keyspace, name+keyDelim) {
			continue
		}
		if len(name) > bestLen {
			best, bestLen = section, len(name)
		}
	}
	if best == nil {
		return nil, oops.In("config").
			Code("CONFIG_SECTION_NOT_FOUND").
			With("keyspace", keyspace).
			With("available", c.SectionNames()).
			Errorf("no section for keyspace %q", keyspace)
	}
	return best, nil
}

// Get returns the resolved value at keyspace, or def.
func (c *Configuration) Get(keyspace string, def any) (any, error) {
	s, err := c.Section(keyspace)
	if err != nil {
		return nil, err
	}
	return s.GetOr(keyspace, def), nil
}

// Set writes value at keyspace.
func (c *Configuration) Set(keyspace string, value any) error {
	s, err := c.Section(keyspace)
	if err != nil {
		return err
	}
	s.Set(keyspace, value)
	return nil
}

// App returns the app section. A missing section reads as empty.
func (c *Configuration) App() *AppSection {
	if s, ok := c.sections[SectionApp].(*AppSection); ok {
		return s
	}
	return &AppSection{BaseSection: c.empty(SectionApp)}
}

// Logger returns the logger section.
func (c *Configuration) Logger() *LoggerSection {
	if s, ok := c.sections[SectionLogger].(*LoggerSection); ok {
		return s
	}
	return &LoggerSection{BaseSection: c.empty(SectionLogger)}
}

// Path returns the path section.
func (c *Configuration) Path() *PathSection {
	if s, ok := c.sections[SectionPath].(*PathSection); ok {
		return s
	}
	return &PathSection{BaseSection: c.empty(SectionPath)}
}

// Plugin returns the plugin section.
func (c *Configuration) Plugin() *PluginSection {
	if s, ok := c.sections[SectionPlugin].(*PluginSection); ok {
		return s
	}
	return &PluginSection{BaseSection: c.empty(SectionPlugin)}
}

// Service returns the service section.
func (c *Configuration) Service() *ServiceSection {
	if s, ok := c.sections[SectionService].(*ServiceSection); ok {
		return s
	}
	return &ServiceSection{BaseSection: c.empty(SectionService), configs: map[string]*ServiceConfig{}}
}

// Extra returns the extra section.
func (c *Configuration) Extra() *ExtraSection {
	if s, ok := c.sections[SectionExtra].(*ExtraSection); ok {
		return s
	}
	return &ExtraSection{BaseSection: c.empty(SectionExtra)}
}

func (c *Configuration) empty(ns string) *BaseSection {
	return NewBaseSection(ns, nil, c.store)
}
