package param

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/c360/telelog/errors"
)

// Type is the declared type of a parameter. The zero value means no type was
// declared.
type Type int

// Declared parameter types. The set is closed: these are the only types the
// live parameter protocol distinguishes beyond the value's own shape.
const (
	// TypeUnset indicates no declared type.
	TypeUnset Type = iota
	// TypeByteArray marks a string value holding base64-encoded raw bytes.
	TypeByteArray
	// TypeFloat64 marks a floating-point value.
	TypeFloat64
	// TypeFloat64Array marks an array of floating-point values.
	TypeFloat64Array
)

// String returns the wire name of the type.
func (t Type) String() string {
	switch t {
	case TypeByteArray:
		return "byte_array"
	case TypeFloat64:
		return "float64"
	case TypeFloat64Array:
		return "float64_array"
	default:
		return ""
	}
}

// MarshalJSON serializes the type as its wire name.
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a wire type name.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.WrapInvalid(err, "Type", "UnmarshalJSON", "parse")
	}
	switch s {
	case "byte_array":
		*t = TypeByteArray
	case "float64":
		*t = TypeFloat64
	case "float64_array":
		*t = TypeFloat64Array
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown parameter type %q: %w", s, errors.ErrUnsupportedPayload),
			"Type", "UnmarshalJSON", "parse")
	}
	return nil
}

// Parameter is a named, optionally typed value exchanged with a live viewer.
//
// A nil Value means the parameter is unset/deleted; such parameters are not
// published to clients. The declared Type is stored verbatim and never
// validated against the value's contents at construction; mismatches surface
// only when the value is read with GetValue.
type Parameter struct {
	Name  string `json:"name"`
	Type  Type   `json:"type,omitempty"`
	Value *Value `json:"value,omitempty"`
}

// Option customizes a Parameter under construction.
type Option func(*paramOpts)

type paramOpts struct {
	value    any
	hasValue bool
	typ      Type
	hasType  bool
}

// WithValue supplies the parameter's value. Native Go values are converted via
// type inference; a Value is used as-is.
func WithValue(value any) Option {
	return func(o *paramOpts) {
		o.value = value
		o.hasValue = true
	}
}

// WithType declares the parameter's type explicitly, overriding whatever the
// value inference produced. The declared type is not validated against the
// value. Passing TypeUnset clears an inferred type.
func WithType(t Type) Option {
	return func(o *paramOpts) {
		o.typ = t
		o.hasType = true
	}
}

// New constructs a Parameter, applying the inference rules to any native value
// supplied with WithValue:
//
//	bool                    -> Bool (no type)
//	int variants            -> Integer (no type)
//	float32/float64         -> Float64, TypeFloat64
//	string                  -> String (no type)
//	[]byte                  -> String (base64), TypeByteArray
//	[]float64               -> Array of Float64, TypeFloat64Array
//	other slices            -> Array (TypeFloat64Array only if all floats)
//	map[string]any          -> Dict (no type)
//
// A type supplied with WithType always wins over the inferred one.
func New(name string, opts ...Option) (Parameter, error) {
	var o paramOpts
	for _, opt := range opts {
		opt(&o)
	}

	p := Parameter{Name: name}

	if o.hasValue && o.value != nil {
		value, inferred, err := inferValue(o.value)
		if err != nil {
			return Parameter{}, err
		}
		p.Value = &value
		p.Type = inferred
	}

	if o.hasType {
		p.Type = o.typ
	}

	return p, nil
}

// MustNew is like New but panics on an unsupported value. Intended for tests
// and static parameter sets.
func MustNew(name string, opts ...Option) Parameter {
	p, err := New(name, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Empty returns an unset parameter.
func Empty(name string) Parameter {
	return Parameter{Name: name}
}

// Float64Param returns a parameter with a float64 value and declared type.
func Float64Param(name string, value float64) Parameter {
	v := Float64(value)
	return Parameter{Name: name, Type: TypeFloat64, Value: &v}
}

// IntegerParam returns a parameter with an integer value.
func IntegerParam(name string, value int64) Parameter {
	v := Integer(value)
	return Parameter{Name: name, Value: &v}
}

// BoolParam returns a parameter with a boolean value.
func BoolParam(name string, value bool) Parameter {
	v := Bool(value)
	return Parameter{Name: name, Value: &v}
}

// StringParam returns a parameter with a string value.
func StringParam(name string, value string) Parameter {
	v := String(value)
	return Parameter{Name: name, Value: &v}
}

// ByteArrayParam returns a parameter carrying raw bytes as a base64 string
// with declared type TypeByteArray.
func ByteArrayParam(name string, data []byte) Parameter {
	v := String(base64.StdEncoding.EncodeToString(data))
	return Parameter{Name: name, Type: TypeByteArray, Value: &v}
}

// Float64ArrayParam returns a parameter with a float64 array value and
// declared type TypeFloat64Array.
func Float64ArrayParam(name string, values []float64) Parameter {
	elems := make([]Value, len(values))
	for i, f := range values {
		elems[i] = Float64(f)
	}
	v := Value{kind: KindArray, arr: elems}
	return Parameter{Name: name, Type: TypeFloat64Array, Value: &v}
}

// IntegerArrayParam returns a parameter with an integer array value.
func IntegerArrayParam(name string, values []int64) Parameter {
	elems := make([]Value, len(values))
	for i, n := range values {
		elems[i] = Integer(n)
	}
	v := Value{kind: KindArray, arr: elems}
	return Parameter{Name: name, Value: &v}
}

// DictParam returns a parameter with a dictionary value.
func DictParam(name string, entries map[string]Value) Parameter {
	v := Dict(entries)
	return Parameter{Name: name, Value: &v}
}

// GetValue reconstructs the native value of the parameter, recursively for
// arrays and dictionaries. If the declared type is TypeByteArray, the string
// payload is base64-decoded to raw bytes; a malformed payload fails here with
// errors.ErrDecodeFailed. An unset parameter returns (nil, nil).
func (p Parameter) GetValue() (any, error) {
	if p.Value == nil {
		return nil, nil
	}

	if p.Type == TypeByteArray {
		s, ok := p.Value.AsString()
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrWrongType,
				"Parameter", "GetValue", "decode byte array")
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrDecodeFailed, err),
				"Parameter", "GetValue", "decode byte array")
		}
		return raw, nil
	}

	return p.Value.native(), nil
}

// inferValue converts a native Go value into a Value and an inferred declared
// type (TypeUnset when inference leaves the type unset).
func inferValue(value any) (Value, Type, error) {
	switch t := value.(type) {
	case Value:
		return t, deriveType(t), nil
	case *Value:
		return *t, deriveType(*t), nil
	case bool:
		return Bool(t), TypeUnset, nil
	case int:
		return Integer(int64(t)), TypeUnset, nil
	case int8:
		return Integer(int64(t)), TypeUnset, nil
	case int16:
		return Integer(int64(t)), TypeUnset, nil
	case int32:
		return Integer(int64(t)), TypeUnset, nil
	case int64:
		return Integer(t), TypeUnset, nil
	case uint:
		return Integer(int64(t)), TypeUnset, nil
	case uint8:
		return Integer(int64(t)), TypeUnset, nil
	case uint16:
		return Integer(int64(t)), TypeUnset, nil
	case uint32:
		return Integer(int64(t)), TypeUnset, nil
	case float32:
		return Float64(float64(t)), TypeFloat64, nil
	case float64:
		return Float64(t), TypeFloat64, nil
	case string:
		return String(t), TypeUnset, nil
	case []byte:
		return String(base64.StdEncoding.EncodeToString(t)), TypeByteArray, nil
	case []float64:
		elems := make([]Value, len(t))
		for i, f := range t {
			elems[i] = Float64(f)
		}
		return Value{kind: KindArray, arr: elems}, TypeFloat64Array, nil
	case []int64:
		elems := make([]Value, len(t))
		for i, n := range t {
			elems[i] = Integer(n)
		}
		return Value{kind: KindArray, arr: elems}, TypeUnset, nil
	case []int:
		elems := make([]Value, len(t))
		for i, n := range t {
			elems[i] = Integer(int64(n))
		}
		return Value{kind: KindArray, arr: elems}, TypeUnset, nil
	case []string:
		elems := make([]Value, len(t))
		for i, s := range t {
			elems[i] = String(s)
		}
		return Value{kind: KindArray, arr: elems}, TypeUnset, nil
	case []any:
		elems := make([]Value, len(t))
		allFloats := len(t) > 0
		for i, e := range t {
			v, _, err := inferValue(e)
			if err != nil {
				return Value{}, TypeUnset, err
			}
			elems[i] = v
			if v.Kind() != KindFloat64 {
				allFloats = false
			}
		}
		inferred := TypeUnset
		if allFloats {
			inferred = TypeFloat64Array
		}
		return Value{kind: KindArray, arr: elems}, inferred, nil
	case map[string]any:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			v, _, err := inferValue(e)
			if err != nil {
				return Value{}, TypeUnset, err
			}
			entries[k] = v
		}
		return Value{kind: KindDict, dict: entries}, TypeUnset, nil
	case map[string]Value:
		return Dict(t), TypeUnset, nil
	default:
		return Value{}, TypeUnset, errors.WrapInvalid(
			fmt.Errorf("cannot infer parameter value from %T: %w", value, errors.ErrUnsupportedPayload),
			"Parameter", "New", "infer value")
	}
}

// deriveType derives a declared type from an explicitly constructed Value:
// scalar floats are TypeFloat64, arrays of floats are TypeFloat64Array, and
// everything else is left unset.
func deriveType(v Value) Type {
	switch v.Kind() {
	case KindFloat64:
		return TypeFloat64
	case KindArray:
		if len(v.arr) == 0 {
			return TypeUnset
		}
		for _, e := range v.arr {
			if e.Kind() != KindFloat64 {
				return TypeUnset
			}
		}
		return TypeFloat64Array
	default:
		return TypeUnset
	}
}
