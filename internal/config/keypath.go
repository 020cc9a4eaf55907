package config

import (
	"fmt"
	"strings"
)

// sections are the top-level keys of the config file.
var sections = []string{"llm", "gateway", "store", "channels", "logging"}

// ParseConfigPath splits a dotted key such as "gateway.auth.mode". The
// first segment must name a config section.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t") {
			return nil, &ConfigError{Message: fmt.Sprintf("invalid segment %q in config path %q", p, raw)}
		}
	}
	if !isSection(parts[0]) {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown config section %q (want one of %s)",
			parts[0], strings.Join(sections, ", "))}
	}
	return parts, nil
}

func isSection(s string) bool {
	for _, sec := range sections {
		if s == sec {
			return true
		}
	}
	return false
}

// parent walks root down to the map holding the last segment of path.
// With create set, missing or non-map intermediates are replaced by maps.
func parent(root map[string]any, path []string, create bool) (map[string]any, bool) {
	m := root
	for _, key := range path[:len(path)-1] {
		next, ok := m[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	return m, true
}

// GetValueAtPath returns the value stored at path in a raw config map.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	m, ok := parent(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := m[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value at path, creating intermediate maps.
func SetValueAtPath(root map[string]any, path []string, value any) {
	m, _ := parent(root, path, true)
	m[path[len(path)-1]] = value
}

// UnsetValueAtPath removes the value at path and reports whether it existed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	m, ok := parent(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
