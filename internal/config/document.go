// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

// Package config loads configuration documents into per-program typed sections.
//
// A document is a tree of top-level sections (app, path, plugin, service,
// logger, extra, ...). It is flattened to dotted keys, overridden from the
// environment, and layered once per program declared in its "program" table.
package config

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
)

// Document formats understood by LoadDocument and ParseDocument.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// keyDelim separates the segments of a flattened key.
const keyDelim = "."

// tomlParser adapts BurntSushi/toml to koanf.Parser.
type tomlParser struct{}

// TOML returns a koanf parser for TOML documents.
func TOML() koanf.Parser {
	return tomlParser{}
}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	if _, err := toml.NewDecoder(bytes.NewReader(b)).Decode(&out); err != nil {
		return nil, oops.In("config").Wrapf(err, "decode toml")
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, oops.In("config").Wrapf(err, "encode toml")
	}
	return buf.Bytes(), nil
}

// parserFor selects the koanf parser for format.
func parserFor(format string) (koanf.Parser, error) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case FormatTOML:
		return TOML(), nil
	case FormatYAML, "yml":
		return yaml.Parser(), nil
	default:
		return nil, oops.In("config").
			Code("CONFIG_DOCUMENT_INVALID").
			With("format", format).
			Hint("use a .toml, .yaml or .yml document").
			Errorf("unsupported document format")
	}
}

// LoadDocument reads the document at path. The format is chosen by extension.
func LoadDocument(path string) (map[string]any, error) {
	parser, err := parserFor(filepath.Ext(path))
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}

	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, oops.In("config").
			Code("CONFIG_DOCUMENT_INVALID").
			With("path", path).
			Wrapf(err, "load document")
	}
	return k.Raw(), nil
}

// ParseDocument decodes data in the given format.
func ParseDocument(data []byte, format string) (map[string]any, error) {
	parser, err := parserFor(format)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Unmarshal(data)
	if err != nil {
		return nil, oops.In("config").
			Code("CONFIG_DOCUMENT_INVALID").
			With("format", format).
			Wrapf(err, "parse document")
	}
	return doc, nil
}

// Flatten flattens nested maps into dotted keys rooted at parent.
// Lists are kept as leaf values.
func Flatten(m map[string]any, parent string) map[string]any {
	var keys []string
	if parent != "" {
		keys = []string{parent}
	}
	flat, _ := maps.Flatten(m, keys, keyDelim)
	return flat
}

// topLevel returns the first segment of a dotted key.
func topLevel(key string) string {
	head, _, _ := strings.Cut(key, keyDelim)
	return head
}
