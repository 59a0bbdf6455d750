// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package config

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"

	"github.com/samber/oops"

	"github.com/gradyzhuo/plank/internal/ctxstore"
)

// DefaultEnvPrefix is used when the document has no app.env.prefix.
const DefaultEnvPrefix = "PL"

// envPrefixKey names the document key that overrides DefaultEnvPrefix.
const envPrefixKey = "app.env.prefix"

// EnvKey returns the environment variable consulted for a flattened key.
// "app.name" with prefix "PL" yields "PL_APP_NAME".
func EnvKey(prefix, key string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(key, keyDelim, "_"))
}

// ApplyEnv overrides flat in place from the environment.
//
// A value whose document type is a list, map, number or bool is decoded from
// the variable as JSON. Any other value takes the variable verbatim.
func ApplyEnv(flat map[string]any, prefix string, lookup ctxstore.EnvLookup) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	for key, value := range flat {
		name := EnvKey(prefix, key)
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if !structured(value) {
			flat[key] = raw
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return oops.In("config").
				Code("CONFIG_ENV_INVALID").
				With("key", key).
				With("env", name).
				Hint("structured values must be given as JSON").
				Wrap(err)
		}
		flat[key] = decoded
	}
	return nil
}

// envPrefix reads app.env.prefix from flat.
func envPrefix(flat map[string]any) string {
	if v, ok := flat[envPrefixKey].(string); ok && v != "" {
		return v
	}
	return DefaultEnvPrefix
}

func structured(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
