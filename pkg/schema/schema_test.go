package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offsoc/libsecret/pkg/schema"
)

var storeTypes = map[string]schema.AttributeType{
	"number": schema.Integer,
	"string": schema.String,
	"even":   schema.Boolean,
}

func TestDefine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schema  string
		types   map[string]schema.AttributeType
		wantErr bool
	}{
		{name: "valid", schema: "org.mock.type.Store", types: storeTypes},
		{name: "empty_name", schema: "", types: storeTypes, wantErr: true},
		{name: "no_attributes", schema: "org.mock.type.Store", types: nil, wantErr: true},
		{name: "empty_attribute_name", schema: "x", types: map[string]schema.AttributeType{"": schema.String}, wantErr: true},
		{name: "bad_type", schema: "x", types: map[string]schema.AttributeType{"a": schema.AttributeType(9)}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := schema.Define(tt.schema, schema.None, tt.types)
			if tt.wantErr {
				require.Error(t, err)
				var se *schema.SchemaError
				assert.True(t, errors.As(err, &se))
				assert.ErrorIs(t, err, schema.ErrInvalid)
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.schema, s.Name())
			assert.Equal(t, schema.None, s.Flags())
		})
	}
}

func TestDefineAttributesKeepsOrder(t *testing.T) {
	t.Parallel()

	s, err := schema.DefineAttributes("ordered", schema.None,
		schema.Attribute{Name: "zeta", Type: schema.String},
		schema.Attribute{Name: "alpha", Type: schema.Integer},
	)
	require.NoError(t, err)

	attrs := s.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "zeta", attrs[0].Name)
	assert.Equal(t, "alpha", attrs[1].Name)

	// Returned slice is a copy.
	attrs[0].Name = "changed"
	assert.Equal(t, "zeta", s.Attributes()[0].Name)
}

func TestDefineAttributesRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := schema.DefineAttributes("dup", schema.None,
		schema.Attribute{Name: "a", Type: schema.String},
		schema.Attribute{Name: "a", Type: schema.Integer},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}

func TestMustDefinePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { schema.MustDefine("", schema.None, storeTypes) })
	assert.NotPanics(t, func() { schema.MustDefine("ok", schema.None, storeTypes) })
}

func TestTypeOfAndMatches(t *testing.T) {
	t.Parallel()

	s := schema.MustDefine("org.mock.type.Store", schema.None, storeTypes)

	typ, ok := s.TypeOf("number")
	assert.True(t, ok)
	assert.Equal(t, schema.Integer, typ)

	_, ok = s.TypeOf("missing")
	assert.False(t, ok)

	assert.True(t, s.Matches("org.mock.type.Store"))
	assert.False(t, s.Matches("org.mock.type.Other"))
}

func TestParseAttributeType(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]schema.AttributeType{
		"string":  schema.String,
		"integer": schema.Integer,
		"int":     schema.Integer,
		"boolean": schema.Boolean,
		"bool":    schema.Boolean,
	} {
		got, err := schema.ParseAttributeType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		assert.NotEmpty(t, got.String())
	}

	_, err := schema.ParseAttributeType("float")
	assert.Error(t, err)
}

func TestBuiltinSchemas(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "org.freedesktop.Secret.Generic", schema.Generic.Name())
	assert.Equal(t, schema.AllowUndefined, schema.Generic.Flags())

	typ, ok := schema.Network.TypeOf("port")
	require.True(t, ok)
	assert.Equal(t, schema.Integer, typ)

	assert.Empty(t, schema.Note.Attributes())
}
