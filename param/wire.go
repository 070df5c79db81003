package param

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/c360/telelog/errors"
)

// UnmarshalJSON parses a parameter from its live wire representation.
//
// Unlike local construction, decoding coerces the value against the declared
// type, because the wire form is untagged JSON and the declared type is the
// only signal for how to interpret it:
//
//   - float64: the value must be numeric, and is parsed as a float
//   - float64_array: the value must be an array of numbers
//   - byte_array: the value must be a string holding valid base64
//   - no type: arrays mixing integers and floats are homogenized to floats;
//     arrays mixing numeric and non-numeric elements are rejected
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  *string         `json:"name"`
		Type  *Type           `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return errors.WrapInvalid(err, "Parameter", "UnmarshalJSON", "parse")
	}
	if raw.Name == nil {
		return errors.WrapInvalid(
			fmt.Errorf("missing field name: %w", errors.ErrUnsupportedPayload),
			"Parameter", "UnmarshalJSON", "parse")
	}

	out := Parameter{Name: *raw.Name}
	if raw.Type != nil {
		out.Type = *raw.Type
	}

	if len(raw.Value) > 0 && !bytes.Equal(raw.Value, []byte("null")) {
		var value Value
		var err error
		switch out.Type {
		case TypeFloat64:
			value, err = coerceFloat64(raw.Value)
		case TypeFloat64Array:
			value, err = coerceFloat64Array(raw.Value)
		case TypeByteArray:
			value, err = coerceByteArray(raw.Value)
		default:
			value, err = coerceHomogenized(raw.Value)
		}
		if err != nil {
			return err
		}
		out.Value = &value
	}

	*p = out
	return nil
}

func coerceFloat64(data []byte) (Value, error) {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("non-numeric value had type set to float64: %w", errors.ErrUnsupportedPayload),
			"Parameter", "UnmarshalJSON", "coerce float64")
	}
	return Float64(f), nil
}

func coerceFloat64Array(data []byte) (Value, error) {
	var fs []float64
	if err := json.Unmarshal(data, &fs); err != nil {
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("value with type float64_array was not an array of numbers: %w", errors.ErrUnsupportedPayload),
			"Parameter", "UnmarshalJSON", "coerce float64 array")
	}
	elems := make([]Value, len(fs))
	for i, f := range fs {
		elems[i] = Float64(f)
	}
	return Value{kind: KindArray, arr: elems}, nil
}

func coerceByteArray(data []byte) (Value, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("value with type byte_array was not a string: %w", errors.ErrUnsupportedPayload),
			"Parameter", "UnmarshalJSON", "coerce byte array")
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrDecodeFailed, err),
			"Parameter", "UnmarshalJSON", "coerce byte array")
	}
	return String(s), nil
}

// coerceHomogenized converts an untyped wire value. Arrays that mix integers
// and floats are homogenized to float arrays; arrays that mix numeric and
// non-numeric elements are rejected.
func coerceHomogenized(data []byte) (Value, error) {
	value, err := valueFromJSON(data)
	if err != nil {
		return Value{}, err
	}
	if value.Kind() != KindArray {
		return value, nil
	}

	var hasInt, hasFloat, hasOther bool
	for _, e := range value.arr {
		switch e.Kind() {
		case KindInteger:
			hasInt = true
		case KindFloat64:
			hasFloat = true
		default:
			hasOther = true
		}
	}

	if (hasInt || hasFloat) && hasOther {
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("array mixes numeric and non-numeric values: %w", errors.ErrUnsupportedPayload),
			"Parameter", "UnmarshalJSON", "homogenize array")
	}
	if hasInt && hasFloat {
		elems := make([]Value, len(value.arr))
		for i, e := range value.arr {
			if n, ok := e.AsInteger(); ok {
				elems[i] = Float64(float64(n))
			} else {
				elems[i] = e
			}
		}
		return Value{kind: KindArray, arr: elems}, nil
	}
	return value, nil
}
