package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Params are the decoded arguments of one tool call.
type Params map[string]any

// ParseParams decodes a model's raw argument string. An empty string is an
// empty parameter set.
func ParseParams(raw string) (Params, error) {
	p := Params{}
	if strings.TrimSpace(raw) == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return p, nil
}

// String returns the value for key as text. Absent and null values report
// false; non-string scalars are formatted.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Get returns the value for key or "" when absent.
func (p Params) Get(key string) string {
	s, _ := p.String(key)
	return s
}

// Ptr returns a pointer to the value for key, or nil when absent.
func (p Params) Ptr(key string) *string {
	s, ok := p.String(key)
	if !ok {
		return nil
	}
	return &s
}
