package param

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/c360/telelog/errors"
)

// Kind identifies which variant a Value holds.
type Kind int

// Value variants. KindInvalid is the zero value of an unset Value.
const (
	KindInvalid Kind = iota
	KindInteger
	KindBool
	KindFloat64
	KindString
	KindArray
	KindDict
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBool:
		return "bool"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	default:
		return "invalid"
	}
}

// Value is a parameter value: a closed tagged union over integers, booleans,
// floats, strings, arrays, and dictionaries. The zero Value is invalid.
//
// Values are immutable: constructors copy composite inputs, and accessors
// return copies of composite contents.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
	arr  []Value
	dict map[string]Value
}

// Integer returns an integer Value.
func Integer(v int64) Value {
	return Value{kind: KindInteger, i: v}
}

// Bool returns a boolean Value.
func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

// Float64 returns a floating-point Value.
func Float64(v float64) Value {
	return Value{kind: KindFloat64, f: v}
}

// String returns a string Value.
//
// For parameters of type TypeByteArray, the string holds the base64 encoding
// of the raw bytes.
func String(v string) Value {
	return Value{kind: KindString, s: v}
}

// Array returns an array Value holding a copy of elems.
func Array(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, arr: cp}
}

// Dict returns a dictionary Value holding a copy of entries. Insertion order
// is not significant.
func Dict(entries map[string]Value) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Value{kind: KindDict, dict: cp}
}

// Kind returns the variant held by the value.
func (v Value) Kind() Kind {
	return v.kind
}

// AsInteger returns the integer variant, and whether the value holds one.
func (v Value) AsInteger() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// AsBool returns the boolean variant, and whether the value holds one.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsFloat64 returns the float variant, and whether the value holds one.
func (v Value) AsFloat64() (float64, bool) {
	return v.f, v.kind == KindFloat64
}

// AsString returns the string variant, and whether the value holds one.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// AsArray returns a copy of the array variant, and whether the value holds one.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Value, len(v.arr))
	copy(cp, v.arr)
	return cp, true
}

// AsDict returns a copy of the dictionary variant, and whether the value holds
// one.
func (v Value) AsDict() (map[string]Value, bool) {
	if v.kind != KindDict {
		return nil, false
	}
	cp := make(map[string]Value, len(v.dict))
	for k, e := range v.dict {
		cp[k] = e
	}
	return cp, true
}

// Equal reports whether two values hold the same variant with equal contents.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == other.i
	case KindBool:
		return v.b == other.b
	case KindFloat64:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.dict) != len(other.dict) {
			return false
		}
		for k, e := range v.dict {
			o, ok := other.dict[k]
			if !ok || !e.Equal(o) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// native reconstructs the native Go shape of the value, recursively for
// arrays and dictionaries.
func (v Value) native() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindBool:
		return v.b
	case KindFloat64:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.native()
		}
		return out
	case KindDict:
		out := make(map[string]any, len(v.dict))
		for k, e := range v.dict {
			out[k] = e.native()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON serializes the value untagged, matching the live parameter wire
// representation: scalars as JSON scalars, arrays as JSON arrays, and dicts as
// JSON objects with keys in sorted order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return json.Marshal(v.i)
	case KindBool:
		return json.Marshal(v.b)
	case KindFloat64:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("cannot marshal %g: %w", v.f, errors.ErrUnsupportedPayload),
				"Value", "MarshalJSON", "serialize")
		}
		// Whole floats keep a decimal point so the kind survives a
		// round trip through the untagged wire form.
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1e21 {
			return []byte(strconv.FormatFloat(v.f, 'f', 1, 64)), nil
		}
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		elems := make([]json.RawMessage, len(v.arr))
		for i, e := range v.arr {
			raw, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			elems[i] = raw
		}
		return json.Marshal(elems)
	case KindDict:
		keys := make([]string, 0, len(v.dict))
		for k := range v.dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			raw, err := v.dict[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot marshal invalid value: %w", errors.ErrUnsupportedPayload),
			"Value", "MarshalJSON", "serialize")
	}
}

// UnmarshalJSON parses an untagged value. Numbers without a fractional or
// exponent part become integers; all other numbers become floats.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := valueFromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// valueFromJSON converts raw JSON into a Value with no type-driven coercion.
func valueFromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, errors.WrapInvalid(err, "Value", "UnmarshalJSON", "parse")
	}
	return valueFromDecoded(raw)
}

func valueFromDecoded(raw any) (Value, error) {
	switch t := raw.(type) {
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Integer(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, errors.WrapInvalid(err, "Value", "UnmarshalJSON", "parse number")
		}
		return Float64(f), nil
	case []any:
		elems := make([]Value, len(t))
		for i, e := range t {
			v, err := valueFromDecoded(e)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return Value{kind: KindArray, arr: elems}, nil
	case map[string]any:
		entries := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := valueFromDecoded(e)
			if err != nil {
				return Value{}, err
			}
			entries[k] = v
		}
		return Value{kind: KindDict, dict: entries}, nil
	case nil:
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("null is not a parameter value: %w", errors.ErrUnsupportedPayload),
			"Value", "UnmarshalJSON", "parse")
	default:
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("unsupported JSON shape %T: %w", raw, errors.ErrUnsupportedPayload),
			"Value", "UnmarshalJSON", "parse")
	}
}
