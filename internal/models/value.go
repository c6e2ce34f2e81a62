package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType tags the variant held by a Value
type ValueType int

const (
	ValueNone ValueType = iota
	ValueBool
	ValueString
	ValueNumber
)

func (t ValueType) String() string {
	switch t {
	case ValueBool:
		return "boolean"
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	default:
		return "none"
	}
}

// Value is the observation stored on a log entry. Which variant is valid depends
// on the owning habit's kind: bool for yes/no, string for rating, number for
// duration and count. It encodes to JSON as null, a boolean, a string or a number.
type Value struct {
	typ ValueType
	b   bool
	s   string
	n   float64
}

func BoolValue(b bool) Value       { return Value{typ: ValueBool, b: b} }
func StringValue(s string) Value   { return Value{typ: ValueString, s: s} }
func NumberValue(n float64) Value  { return Value{typ: ValueNumber, n: n} }
func NoValue() Value               { return Value{} }
func (v Value) Type() ValueType    { return v.typ }
func (v Value) IsNone() bool       { return v.typ == ValueNone }
func (v Value) Bool() (bool, bool) { return v.b, v.typ == ValueBool }

func (v Value) String() string {
	switch v.typ {
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueString:
		return v.s
	case ValueNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return ""
	}
}

// Text returns the string variant
func (v Value) Text() (string, bool) { return v.s, v.typ == ValueString }

// Number returns the numeric variant
func (v Value) Number() (float64, bool) { return v.n, v.typ == ValueNumber }

// Equal compares variant and payload
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case ValueBool:
		return v.b == o.b
	case ValueString:
		return v.s == o.s
	case ValueNumber:
		return v.n == o.n
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case ValueBool:
		return json.Marshal(v.b)
	case ValueString:
		return json.Marshal(v.s)
	case ValueNumber:
		return json.Marshal(v.n)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NoValue()
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case bool:
		*v = BoolValue(x)
	case string:
		*v = StringValue(x)
	case float64:
		*v = NumberValue(x)
	default:
		return fmt.Errorf("unsupported log value %s", string(data))
	}
	return nil
}

// ParseValue interprets CLI input according to the habit kind
func ParseValue(kind HabitKind, input string) (Value, error) {
	switch kind {
	case KindYesNo:
		b, err := strconv.ParseBool(input)
		if err != nil {
			switch input {
			case "yes", "y":
				return BoolValue(true), nil
			case "no", "n":
				return BoolValue(false), nil
			}
			return Value{}, fmt.Errorf("expected yes/no, got %q", input)
		}
		return BoolValue(b), nil
	case KindRating:
		return StringValue(input), nil
	case KindDuration, KindCount:
		n, err := strconv.ParseFloat(input, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return Value{}, fmt.Errorf("expected a number, got %q", input)
		}
		return NumberValue(n), nil
	default:
		return Value{}, fmt.Errorf("unknown habit kind %q", kind)
	}
}
