package schema

import (
	"fmt"
	"sort"
)

// AttributeType is the declared type of a schema attribute.
type AttributeType int

const (
	String AttributeType = iota
	Integer
	Boolean
)

func (t AttributeType) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("AttributeType(%d)", int(t))
	}
}

func (t AttributeType) valid() bool {
	return t == String || t == Integer || t == Boolean
}

// ParseAttributeType converts "string", "integer" or "boolean" to an AttributeType.
func ParseAttributeType(s string) (AttributeType, error) {
	switch s {
	case "string":
		return String, nil
	case "integer", "int":
		return Integer, nil
	case "boolean", "bool":
		return Boolean, nil
	}
	return 0, fmt.Errorf("unknown attribute type %q", s)
}

// Flags modify how a schema validates attributes.
type Flags int

const (
	// None is the default behavior: only declared attributes are accepted.
	None Flags = 0
	// AllowUndefined accepts attributes the schema does not declare and
	// treats their values as strings.
	AllowUndefined Flags = 1 << 0
)

// Attribute is one declared attribute of a schema.
type Attribute struct {
	Name string
	Type AttributeType
}

// Schema is an immutable, named set of typed attributes.
type Schema struct {
	name  string
	flags Flags
	attrs []Attribute
	index map[string]AttributeType
}

// Define builds a schema from an attribute type map. Attributes are kept
// in name order since a map carries none of its own.
func Define(name string, flags Flags, types map[string]AttributeType) (*Schema, error) {
	attrs := make([]Attribute, 0, len(types))
	for n, t := range types {
		attrs = append(attrs, Attribute{Name: n, Type: t})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return DefineAttributes(name, flags, attrs...)
}

// DefineAttributes builds a schema keeping the given attribute order.
func DefineAttributes(name string, flags Flags, attrs ...Attribute) (*Schema, error) {
	if len(attrs) == 0 {
		return nil, &SchemaError{Schema: name, Reason: "no attributes declared"}
	}
	return build(name, flags, attrs)
}

// MustDefine is like Define but panics on error. Intended for package-level
// schema variables.
func MustDefine(name string, flags Flags, types map[string]AttributeType) *Schema {
	s, err := Define(name, flags, types)
	if err != nil {
		panic(err)
	}
	return s
}

func build(name string, flags Flags, attrs []Attribute) (*Schema, error) {
	if name == "" {
		return nil, &SchemaError{Reason: "empty schema name"}
	}
	s := &Schema{
		name:  name,
		flags: flags,
		attrs: make([]Attribute, 0, len(attrs)),
		index: make(map[string]AttributeType, len(attrs)),
	}
	for _, a := range attrs {
		if a.Name == "" {
			return nil, &SchemaError{Schema: name, Reason: "empty attribute name"}
		}
		if !a.Type.valid() {
			return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("attribute %q has invalid type %s", a.Name, a.Type)}
		}
		if _, dup := s.index[a.Name]; dup {
			return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("attribute %q declared twice", a.Name)}
		}
		s.index[a.Name] = a.Type
		s.attrs = append(s.attrs, a)
	}
	return s, nil
}

// Name returns the schema identifier, e.g. "org.freedesktop.Secret.Generic".
func (s *Schema) Name() string { return s.name }

// Flags returns the schema flags.
func (s *Schema) Flags() Flags { return s.flags }

// Attributes returns a copy of the declared attributes in declaration order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// TypeOf reports the declared type of an attribute.
func (s *Schema) TypeOf(name string) (AttributeType, bool) {
	t, ok := s.index[name]
	return t, ok
}

// Matches reports whether an item stored under itemSchema belongs to this
// schema. Items are compared by schema name only.
func (s *Schema) Matches(itemSchema string) bool {
	return itemSchema == s.name
}

func (s *Schema) String() string { return s.name }
