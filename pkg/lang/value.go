package lang

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type is one of the fixed set of language types.
type Type int

const (
	Any Type = iota
	Bool
	Int
	I16
	Double
	String
)

var typeNames = [...]string{
	Any:    "any",
	Bool:   "bool",
	Int:    "int",
	I16:    "i16",
	Double: "double",
	String: "string",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ImplicitlyConvertible reports whether a value of type from can feed a slot
// of type to without an explicit conversion.
func ImplicitlyConvertible(from, to Type) bool {
	switch {
	case from == to, to == Any, from == Any:
		return true
	case from == I16:
		return to == Int || to == Double
	case from == Int:
		return to == Double
	}
	return false
}

// Value is a tagged scalar. The zero Value has type Any and holds nothing.
type Value struct {
	typ Type
	b   bool
	i   int64
	f   float64
	s   string
}

func BoolValue(b bool) Value      { return Value{typ: Bool, b: b} }
func IntValue(i int64) Value      { return Value{typ: Int, i: i} }
func I16Value(i int16) Value      { return Value{typ: I16, i: int64(i)} }
func DoubleValue(f float64) Value { return Value{typ: Double, f: f} }
func StringValue(s string) Value  { return Value{typ: String, s: s} }
func (v Value) Type() Type        { return v.typ }
func (v Value) IsNone() bool      { return v == Value{} }

// Zero returns the default value of t.
func Zero(t Type) Value {
	return Value{typ: t}
}

func (v Value) AsBool() bool {
	switch v.typ {
	case Bool:
		return v.b
	case Int, I16:
		return v.i != 0
	case Double:
		return v.f != 0
	case String:
		return v.s != ""
	}
	return false
}

func (v Value) AsInt() int64 {
	switch v.typ {
	case Bool:
		if v.b {
			return 1
		}
		return 0
	case Int, I16:
		return v.i
	case Double:
		return int64(v.f)
	case String:
		i, _ := strconv.ParseInt(v.s, 10, 64)
		return i
	}
	return 0
}

func (v Value) AsDouble() float64 {
	switch v.typ {
	case Bool:
		if v.b {
			return 1
		}
		return 0
	case Int, I16:
		return float64(v.i)
	case Double:
		return v.f
	case String:
		f, _ := strconv.ParseFloat(v.s, 64)
		return f
	}
	return 0
}

func (v Value) AsString() string {
	switch v.typ {
	case Bool:
		return strconv.FormatBool(v.b)
	case Int, I16:
		return strconv.FormatInt(v.i, 10)
	case Double:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case String:
		return v.s
	}
	return ""
}

// Convert returns v as type t. Converting to Any is the identity.
func (v Value) Convert(t Type) Value {
	if t == v.typ || t == Any {
		return v
	}
	switch t {
	case Bool:
		return BoolValue(v.AsBool())
	case Int:
		return IntValue(v.AsInt())
	case I16:
		return I16Value(int16(v.AsInt()))
	case Double:
		return DoubleValue(v.AsDouble())
	case String:
		return StringValue(v.AsString())
	}
	return v
}

func (v Value) String() string {
	if v.typ == Any {
		return "null"
	}
	if v.typ == String {
		return strconv.Quote(v.s)
	}
	return v.AsString()
}

// ParseType returns the type called name.
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return Type(t), true
		}
	}
	return Any, false
}

type jsonValue struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{Type: v.typ.String()}
	if v.typ != Any {
		jv.Value = v.AsString()
	}
	return json.Marshal(jv)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	t, ok := ParseType(jv.Type)
	if !ok {
		return fmt.Errorf("unknown type %q", jv.Type)
	}
	switch t {
	case Any:
		*v = Value{}
	case Bool:
		b, err := strconv.ParseBool(jv.Value)
		if err != nil {
			return fmt.Errorf("bool value %q: %w", jv.Value, err)
		}
		*v = BoolValue(b)
	case String:
		*v = StringValue(jv.Value)
	case Double:
		f, err := strconv.ParseFloat(jv.Value, 64)
		if err != nil {
			return fmt.Errorf("double value %q: %w", jv.Value, err)
		}
		*v = DoubleValue(f)
	default:
		i, err := strconv.ParseInt(jv.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("%s value %q: %w", t, jv.Value, err)
		}
		*v = IntValue(i).Convert(t)
	}
	return nil
}
