// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package ctxstore

import (
	"fmt"
	"regexp"
)

// templatePattern matches ${name} where name starts with a letter and
// continues with letters, digits, '.' or '_'.
var templatePattern = regexp.MustCompile(`\$\{([a-zA-Z][._\w]*)\}`)

// maxPasses bounds resolution of cycles spanning more than one variable.
const maxPasses = 64

// CanReword reports whether v is a string containing a template variable.
func CanReword(v any) bool {
	str, ok := v.(string)
	return ok && templatePattern.MatchString(str)
}

// Reword resolves ${name} templates in v. Non-string values are returned
// unchanged.
//
// Each variable is looked up in overrides, then in the store's own scalar
// entries, then in the environment, and finally in the main store's scalar
// entries. Unknown variables are left as written. Resolution repeats until no
// template remains or the first remaining variable is the same one that led
// the previous pass.
func (s *Store) Reword(v any, overrides map[string]any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	return s.RewordString(str, overrides)
}

// RewordString is Reword for string input.
func (s *Store) RewordString(str string, overrides map[string]any) string {
	result := str
	previous := ""
	for range maxPasses {
		m := templatePattern.FindStringSubmatch(result)
		if m == nil {
			break
		}
		if m[1] == previous {
			break
		}
		previous = m[1]
		result = s.substitute(result, overrides)
	}
	return result
}

func (s *Store) substitute(str string, overrides map[string]any) string {
	return templatePattern.ReplaceAllStringFunc(str, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		if v, ok := s.resolveVar(name, overrides); ok {
			return v
		}
		return match
	})
}

func (s *Store) resolveVar(name string, overrides map[string]any) (string, bool) {
	if v, ok := overrides[name]; ok {
		return fmt.Sprint(v), true
	}
	if v, ok := s.scalar(name); ok {
		return v, true
	}
	if v, ok := s.registry.lookupEnv(name); ok {
		return v, true
	}
	if m := s.Main(); m != nil && m != s && s.namespace != MainNamespace {
		if v, ok := m.scalar(name); ok {
			return v, true
		}
	}
	return "", false
}

func (s *Store) scalar(key string) (string, bool) {
	v, ok := s.Raw(key)
	if !ok {
		return "", false
	}
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}
