package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offsoc/libsecret/pkg/schema"
)

func TestEncode(t *testing.T) {
	t.Parallel()

	store := schema.MustDefine("org.mock.type.Store", schema.None, storeTypes)

	tests := []struct {
		name        string
		attrs       schema.Attributes
		wantUnknown bool
		wantType    bool
	}{
		{name: "integer_and_boolean", attrs: schema.Attributes{"number": "1", "even": "false"}},
		{name: "negative_integer", attrs: schema.Attributes{"number": "-42"}},
		{name: "string_passthrough", attrs: schema.Attributes{"string": "nine"}},
		{name: "empty_set", attrs: schema.Attributes{}},
		{name: "unknown_attribute", attrs: schema.Attributes{"colour": "red"}, wantUnknown: true},
		{name: "bad_boolean", attrs: schema.Attributes{"even": "notabool"}, wantType: true},
		{name: "boolean_is_case_sensitive", attrs: schema.Attributes{"even": "True"}, wantType: true},
		{name: "bad_integer", attrs: schema.Attributes{"number": "one"}, wantType: true},
		{name: "empty_integer", attrs: schema.Attributes{"number": ""}, wantType: true},
		{name: "integer_trailing_garbage", attrs: schema.Attributes{"number": "12abc"}, wantType: true},
		{name: "invalid_utf8_string", attrs: schema.Attributes{"string": "\xff\xfe"}, wantType: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wire, err := store.Encode(tt.attrs)
			switch {
			case tt.wantUnknown:
				var ue *schema.UnknownAttributeError
				require.True(t, errors.As(err, &ue), "got %v", err)
				assert.ErrorIs(t, err, schema.ErrInvalid)
				assert.Nil(t, wire)
			case tt.wantType:
				var te *schema.TypeMismatchError
				require.True(t, errors.As(err, &te), "got %v", err)
				assert.ErrorIs(t, err, schema.ErrInvalid)
				assert.Nil(t, wire)
			default:
				require.NoError(t, err)
				assert.Equal(t, len(tt.attrs), len(wire))
				for k, v := range tt.attrs {
					assert.Equal(t, v, wire[k])
				}
			}
		})
	}
}

func TestEncodeDeterministicAndDoesNotAlias(t *testing.T) {
	t.Parallel()

	store := schema.MustDefine("org.mock.type.Store", schema.None, storeTypes)
	attrs := schema.Attributes{"number": "9", "string": "nine", "even": "false"}

	a, err := store.Encode(attrs)
	require.NoError(t, err)
	b, err := store.Encode(schema.Attributes{"even": "false", "string": "nine", "number": "9"})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, []string{"even", "number", "string"}, a.Keys())

	a["number"] = "10"
	assert.Equal(t, "9", attrs["number"])
}

func TestEncodeInjective(t *testing.T) {
	t.Parallel()

	store := schema.MustDefine("org.mock.type.Store", schema.None, storeTypes)

	a, err := store.Encode(schema.Attributes{"number": "1", "even": "false"})
	require.NoError(t, err)
	b, err := store.Encode(schema.Attributes{"number": "1", "even": "true"})
	require.NoError(t, err)
	c, err := store.Encode(schema.Attributes{"number": "1"})
	require.NoError(t, err)

	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestEncodeAllowUndefined(t *testing.T) {
	t.Parallel()

	wire, err := schema.Generic.Encode(schema.Attributes{"service": "myapp", "account": "me"})
	require.NoError(t, err)
	assert.Equal(t, "myapp", wire["service"])

	_, err = schema.Generic.Encode(schema.Attributes{"service": "\xff"})
	assert.ErrorIs(t, err, schema.ErrInvalid)
}

func TestWireSubset(t *testing.T) {
	t.Parallel()

	wire := schema.Wire{"number": "1"}
	assert.True(t, wire.Subset(map[string]string{"number": "1", "even": "false"}))
	assert.False(t, wire.Subset(map[string]string{"number": "2"}))
	assert.False(t, wire.Subset(map[string]string{}))
	assert.True(t, schema.Wire{}.Subset(map[string]string{"any": "thing"}))
}

func TestTypedFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-7", schema.Int(-7))
	assert.Equal(t, "true", schema.Bool(true))
	assert.Equal(t, "false", schema.Bool(false))
}
