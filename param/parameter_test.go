package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/telelog/errors"
)

func TestNew_Empty(t *testing.T) {
	p, err := New("empty")
	require.NoError(t, err)
	assert.Equal(t, "empty", p.Name)
	assert.Equal(t, TypeUnset, p.Type)
	assert.Nil(t, p.Value)

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNew_Float(t *testing.T) {
	p, err := New("float", WithValue(1.234))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64, p.Type)
	assert.True(t, p.Value.Equal(Float64(1.234)))

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, 1.234, v)
}

func TestNew_Int(t *testing.T) {
	p, err := New("int", WithValue(1))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)
	assert.True(t, p.Value.Equal(Integer(1)))

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNew_Bool(t *testing.T) {
	p, err := New("bool", WithValue(true))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)
	assert.True(t, p.Value.Equal(Bool(true)))
}

func TestNew_String(t *testing.T) {
	p, err := New("string", WithValue("hello"))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestNew_Bytes(t *testing.T) {
	p, err := New("bytes", WithValue([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, TypeByteArray, p.Type)
	assert.True(t, p.Value.Equal(String("aGVsbG8=")))

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestNew_FloatArray(t *testing.T) {
	p, err := New("float_array", WithValue([]float64{1.0, 2.0, 3.0}))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64Array, p.Type)
	assert.True(t, p.Value.Equal(Array([]Value{Float64(1.0), Float64(2.0), Float64(3.0)})))

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, v)
}

func TestNew_HomogeneousAnyFloatArray(t *testing.T) {
	p, err := New("float_array", WithValue([]any{1.0, 2.0}))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64Array, p.Type)
}

func TestNew_IntArray(t *testing.T) {
	p, err := New("int_array", WithValue([]int64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, v)
}

func TestNew_HeterogeneousArray(t *testing.T) {
	p, err := New("heterogeneous_array", WithValue([]any{"a", 2, false}))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)
	assert.True(t, p.Value.Equal(Array([]Value{String("a"), Integer(2), Bool(false)})))

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", int64(2), false}, v)
}

func TestNew_Dict(t *testing.T) {
	native := map[string]any{
		"a": true,
		"b": 2,
		"c": "C",
		"d": map[string]any{"inner": []any{1, 2, 3}},
	}
	p, err := New("dict", WithValue(native))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)

	expected := Dict(map[string]Value{
		"a": Bool(true),
		"b": Integer(2),
		"c": String("C"),
		"d": Dict(map[string]Value{
			"inner": Array([]Value{Integer(1), Integer(2), Integer(3)}),
		}),
	})
	assert.True(t, p.Value.Equal(expected))

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": true,
		"b": int64(2),
		"c": "C",
		"d": map[string]any{"inner": []any{int64(1), int64(2), int64(3)}},
	}, v)
}

func TestNew_ExplicitValueDerivesType(t *testing.T) {
	p, err := New("float", WithValue(Float64(1)))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64, p.Type)

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
}

func TestNew_ExplicitTypeOverride(t *testing.T) {
	// A scalar declared as an array type is preserved as-is; no validation
	// happens at construction, and the scalar still round-trips.
	p, err := New("bad float array",
		WithValue(Float64(1)),
		WithType(TypeFloat64Array))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64Array, p.Type)

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)

	// A string declared as float64 is likewise preserved.
	p, err = New("bad float",
		WithValue(String("1")),
		WithType(TypeFloat64))
	require.NoError(t, err)
	assert.Equal(t, TypeFloat64, p.Type)

	v, err = p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	// Overriding a derived type with TypeUnset clears it.
	p, err = New("underspecified float",
		WithValue(Float64(1)),
		WithType(TypeUnset))
	require.NoError(t, err)
	assert.Equal(t, TypeUnset, p.Type)
}

func TestGetValue_Base64DecodeError(t *testing.T) {
	p, err := New("bad bytes",
		WithValue(String("!!!")),
		WithType(TypeByteArray))
	require.NoError(t, err)
	assert.Equal(t, TypeByteArray, p.Type)
	assert.True(t, p.Value.Equal(String("!!!")))

	_, err = p.GetValue()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDecodeFailed))
}

func TestGetValue_ByteArrayRoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xfe, 0xff}
	p := ByteArrayParam("blob", raw)

	v, err := p.GetValue()
	require.NoError(t, err)
	assert.Equal(t, raw, v)
}

func TestNew_UnsupportedValue(t *testing.T) {
	_, err := New("bad", WithValue(make(chan int)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedPayload))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, TypeFloat64, Float64Param("f", 1.5).Type)
	assert.Equal(t, TypeUnset, IntegerParam("i", 3).Type)
	assert.Equal(t, TypeUnset, BoolParam("b", true).Type)
	assert.Equal(t, TypeUnset, StringParam("s", "x").Type)
	assert.Equal(t, TypeByteArray, ByteArrayParam("raw", []byte{1}).Type)
	assert.Equal(t, TypeFloat64Array, Float64ArrayParam("fa", []float64{1}).Type)
	assert.Equal(t, TypeUnset, IntegerArrayParam("ia", []int64{1}).Type)
	assert.Nil(t, Empty("e").Value)
}
