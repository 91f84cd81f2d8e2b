package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType discriminates the variants of a Value.
type ValueType uint8

const (
	TypeInvalid ValueType = iota
	TypeInt
	TypeFloat
	TypeString
	TypeList
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a single sample feature: an int64, a float64, a string, or a
// list of Values. The zero Value is invalid.
type Value struct {
	typ  ValueType
	i    int64
	f    float64
	s    string
	list []Value
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{typ: TypeInt, i: v} }

// Float returns a floating point Value.
func Float(v float64) Value { return Value{typ: TypeFloat, f: v} }

// String returns a string Value.
func String(v string) Value { return Value{typ: TypeString, s: v} }

// List returns a list Value holding a copy of vs.
func List(vs ...Value) Value {
	return Value{typ: TypeList, list: cloneValues(vs)}
}

// Type returns the variant held by v.
func (v Value) Type() ValueType { return v.typ }

// Valid reports whether v was built by one of the constructors and every
// nested element is valid too.
func (v Value) Valid() bool {
	switch v.typ {
	case TypeInt, TypeFloat, TypeString:
		return true
	case TypeList:
		for _, e := range v.list {
			if !e.Valid() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AsInt returns the integer held by v. The second result is false when v is
// not an int.
func (v Value) AsInt() (int64, bool) { return v.i, v.typ == TypeInt }

// AsFloat returns v as a float64. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.typ {
	case TypeFloat:
		return v.f, true
	case TypeInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.typ == TypeString }

// AsList returns a copy of the elements of a list Value.
func (v Value) AsList() ([]Value, bool) {
	if v.typ != TypeList {
		return nil, false
	}
	return cloneValues(v.list), true
}

// Len returns the number of elements of a list Value, or 0.
func (v Value) Len() int { return len(v.list) }

// Interface converts v into plain Go values: int64, float64, string, or []any.
func (v Value) Interface() any {
	switch v.typ {
	case TypeInt:
		return v.i
	case TypeFloat:
		return v.f
	case TypeString:
		return v.s
	case TypeList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same variant and contents. Floats
// compare by bit pattern so NaN equals itself.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeInt:
		return v.i == o.i
	case TypeFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case TypeString:
		return v.s == o.s
	case TypeList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.typ {
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return strconv.Quote(v.s)
	case TypeList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<invalid>"
	}
}

// MarshalJSON implements json.Marshaler. Non-finite floats have no JSON
// representation and are rendered as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case TypeFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
		return json.Marshal(v.f)
	case TypeString:
		return json.Marshal(v.s)
	case TypeList:
		return json.Marshal(v.list)
	default:
		return nil, fmt.Errorf("cannot marshal invalid value")
	}
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers become ints,
// other numbers floats. Booleans, null, and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON value or a plain Go value into a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case Value:
		if !x.Valid() {
			return Value{}, NewValidationError("", "invalid value")
		}
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, NewValidationError("", "number %s is out of range", x.String())
		}
		return Float(f), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case []any:
		list := make([]Value, len(x))
		for i, e := range x {
			ev, err := ValueOf(e)
			if err != nil {
				return Value{}, err
			}
			list[i] = ev
		}
		return Value{typ: TypeList, list: list}, nil
	case []Value:
		return ValueOf(List(x...))
	case nil:
		return Value{}, NewValidationError("", "null is not a valid feature value")
	default:
		return Value{}, NewValidationError("", "unsupported feature value of type %T", raw)
	}
}

// Sample is an ordered list of feature values.
type Sample []Value

// Clone returns a deep copy of s.
func (s Sample) Clone() Sample {
	return Sample(cloneValues(s))
}

// Dataset is an ordered list of samples.
type Dataset []Sample

// Clone returns a deep copy of d.
func (d Dataset) Clone() Dataset {
	out := make(Dataset, len(d))
	for i, s := range d {
		out[i] = s.Clone()
	}
	return out
}

// SampleOf converts a slice of plain values into a Sample.
func SampleOf(raw []any) (Sample, error) {
	out := make(Sample, len(raw))
	for i, e := range raw {
		v, err := ValueOf(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// DatasetOf converts a slice of plain value slices into a Dataset.
func DatasetOf(raw [][]any) (Dataset, error) {
	out := make(Dataset, len(raw))
	for i, r := range raw {
		s, err := SampleOf(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func cloneValue(v Value) Value {
	if v.typ == TypeList {
		v.list = cloneValues(v.list)
	}
	return v
}

func cloneValues(vs []Value) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = cloneValue(v)
	}
	return out
}
