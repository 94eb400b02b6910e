package answers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set maps question identifiers to answer values.
type Set map[string]Value

// FromMap converts decoded JSON/YAML data into a Set.
func FromMap(m map[string]any) Set {
	s := make(Set, len(m))
	for k, v := range m {
		s[k] = FromAny(v)
	}
	return s
}

// ParseJSON decodes a JSON object into a Set. Numbers keep their exact form.
func ParseJSON(data []byte) (Set, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return FromMap(raw), nil
}

// ParseYAML decodes a YAML mapping into a Set.
func ParseYAML(data []byte) (Set, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return FromMap(raw), nil
}

// LoadFile reads an answers file, choosing the decoder by extension.
// Files ending in .yaml or .yml are YAML; everything else is JSON.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// Lookup resolves a field name. An exact key match wins; otherwise the name is
// treated as a dotted path into nested objects, with numeric segments indexing
// arrays ("directors.0.name").
func (s Set) Lookup(path string) (Value, bool) {
	if path == "" {
		return Value{}, false
	}
	if v, ok := s[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return Value{}, false
	}

	segments := strings.Split(path, ".")
	cur, ok := s[segments[0]]
	if !ok {
		return Value{}, false
	}
	for _, seg := range segments[1:] {
		next, ok := step(cur, seg)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// LookupValue resolves a dotted path inside a single value, as used for
// loop-bound template variables.
func LookupValue(root Value, path string) (Value, bool) {
	if path == "" {
		return root, true
	}
	cur := root
	for _, seg := range strings.Split(path, ".") {
		next, ok := step(cur, seg)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

func step(v Value, seg string) (Value, bool) {
	switch v.Kind() {
	case KindObject:
		return v.Field(seg)
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v.arr) {
			return Value{}, false
		}
		return v.arr[idx], true
	default:
		return Value{}, false
	}
}

// Merge returns a new Set holding s overlaid by other. Keys in other win.
func (s Set) Merge(other Set) Set {
	out := make(Set, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// With returns a copy of s with one key replaced.
func (s Set) With(key string, v Value) Set {
	out := make(Set, len(s)+1)
	for k, val := range s {
		out[k] = val
	}
	out[key] = v
	return out
}

// Keys returns the top-level keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes s as an object with sorted keys.
func (s Set) MarshalJSON() ([]byte, error) {
	return Object(s).MarshalJSON()
}

// UnmarshalJSON decodes a JSON object into s.
func (s *Set) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
