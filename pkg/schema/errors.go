package schema

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every error this package returns, so callers can
// tell caller-side validation failures from backend failures with errors.Is.
var ErrInvalid = errors.New("invalid schema or attributes")

// SchemaError reports a bad schema definition.
type SchemaError struct {
	Schema string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Schema == "" {
		return "invalid schema: " + e.Reason
	}
	return fmt.Sprintf("invalid schema %s: %s", e.Schema, e.Reason)
}

func (e *SchemaError) Is(target error) bool { return target == ErrInvalid }

// UnknownAttributeError reports an attribute the schema does not declare.
type UnknownAttributeError struct {
	Schema    string
	Attribute string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("attribute %q is not defined by schema %s", e.Attribute, e.Schema)
}

func (e *UnknownAttributeError) Is(target error) bool { return target == ErrInvalid }

// TypeMismatchError reports a value that does not parse as the declared type.
type TypeMismatchError struct {
	Schema    string
	Attribute string
	Want      AttributeType
	Value     string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("invalid %s value for attribute %q in schema %s: %q", e.Want, e.Attribute, e.Schema, e.Value)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrInvalid }
