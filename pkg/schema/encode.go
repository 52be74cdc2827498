package schema

import (
	"sort"
	"strconv"
	"unicode/utf8"
)

// Attributes are the caller-supplied key/value criteria for one call.
type Attributes map[string]string

// Wire is the validated, string-encoded attribute map sent to the backend.
type Wire map[string]string

// Keys returns the attribute names in sorted order.
func (w Wire) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both maps hold the same (name, value) pairs.
func (w Wire) Equal(other Wire) bool {
	if len(w) != len(other) {
		return false
	}
	for k, v := range w {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Subset reports whether every pair in w is also present in item. This is
// how a Secret Service matches search attributes against stored items.
func (w Wire) Subset(item map[string]string) bool {
	for k, v := range w {
		if iv, ok := item[k]; !ok || iv != v {
			return false
		}
	}
	return true
}

// Encode validates attrs against the schema and returns a fresh wire map.
// attrs is never modified.
func (s *Schema) Encode(attrs Attributes) (Wire, error) {
	if err := s.Validate(attrs); err != nil {
		return nil, err
	}
	wire := make(Wire, len(attrs))
	for k, v := range attrs {
		wire[k] = v
	}
	return wire, nil
}

// Validate checks attrs without building the wire map. Keys are checked in
// sorted order so the reported error is stable.
func (s *Schema) Validate(attrs Attributes) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := attrs[k]
		t, ok := s.index[k]
		if !ok {
			if s.flags&AllowUndefined == 0 {
				return &UnknownAttributeError{Schema: s.name, Attribute: k}
			}
			t = String
		}
		if !valueOK(t, v) {
			return &TypeMismatchError{Schema: s.name, Attribute: k, Want: t, Value: v}
		}
	}
	return nil
}

func valueOK(t AttributeType, v string) bool {
	switch t {
	case Integer:
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case Boolean:
		return v == "true" || v == "false"
	default:
		return utf8.ValidString(v)
	}
}

// Int formats an integer attribute value.
func Int(v int64) string { return strconv.FormatInt(v, 10) }

// Bool formats a boolean attribute value.
func Bool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
