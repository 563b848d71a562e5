package policy

import (
	"fmt"
	"sort"
	"strconv"
)

// Section is one raw policy section: dotted option keys mapped to one or more
// string values. Typing is owned by the accessors so the configuration source
// can stay string-only.
type Section struct {
	values map[string][]string
}

func NewSection() *Section {
	return &Section{values: make(map[string][]string)}
}

// Set stores key with the given values, replacing any previous ones.
func (s *Section) Set(key string, values ...string) {
	s.values[key] = append([]string(nil), values...)
}

func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns all option keys in sorted order.
func (s *Section) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the first value for key, or def when the key is absent.
func (s *Section) Get(key string, def string) string {
	vals, ok := s.values[key]
	if !ok || len(vals) == 0 {
		return def
	}
	return vals[0]
}

// GetList returns all values for key. A single value is a one-element list.
func (s *Section) GetList(key string) []string {
	return append([]string(nil), s.values[key]...)
}

// GetInt returns def when key is absent and an error when the stored value is
// not an integer.
func (s *Section) GetInt(key string, def int64) (int64, error) {
	vals, ok := s.values[key]
	if !ok || len(vals) == 0 {
		return def, nil
	}
	n, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("option %q: invalid integer %q", key, vals[0])
	}
	return n, nil
}

func (s *Section) GetFloat(key string, def float64) (float64, error) {
	vals, ok := s.values[key]
	if !ok || len(vals) == 0 {
		return def, nil
	}
	f, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return 0, fmt.Errorf("option %q: invalid number %q", key, vals[0])
	}
	return f, nil
}

func (s *Section) GetBool(key string, def bool) (bool, error) {
	vals, ok := s.values[key]
	if !ok || len(vals) == 0 {
		return def, nil
	}
	b, err := strconv.ParseBool(vals[0])
	if err != nil {
		return false, fmt.Errorf("option %q: invalid boolean %q", key, vals[0])
	}
	return b, nil
}

// Merge overlays other onto s, later keys overwriting earlier ones.
func (s *Section) Merge(other *Section) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		s.values[k] = append([]string(nil), v...)
	}
}

// Clone returns an independent copy of s.
func (s *Section) Clone() *Section {
	out := NewSection()
	out.Merge(s)
	return out
}

func (s *Section) Len() int {
	return len(s.values)
}
