package lang

import (
	"fmt"
	"math"
)

func val(types ...Type) []Arg {
	args := make([]Arg, len(types))
	for i, t := range types {
		args[i] = Arg{Type: t}
	}
	return args
}

func ref(t Type, rest ...Type) []Arg {
	return append([]Arg{{Type: t, ByRef: true}}, val(rest...)...)
}

func (l *Language) add(id string, ret Type, args []Arg, call func(a []*Value) (Value, error)) {
	l.AddFunction(&Function{Sig: NewSignature(id, ret, args...), Call: call})
}

// arithmetic computes x op y in type t.
func arithmetic(op string, t Type, x, y Value) (Value, error) {
	if t == Double {
		a, b := x.AsDouble(), y.AsDouble()
		switch op {
		case "+":
			return DoubleValue(a + b), nil
		case "-":
			return DoubleValue(a - b), nil
		case "*":
			return DoubleValue(a * b), nil
		case "/":
			if b == 0 {
				return Value{}, ErrDivisionByZero
			}
			return DoubleValue(a / b), nil
		}
		return Value{}, fmt.Errorf("unknown arithmetic operator %q", op)
	}
	a, b := x.AsInt(), y.AsInt()
	var r int64
	switch op {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return Value{}, ErrDivisionByZero
		}
		r = a / b
	default:
		return Value{}, fmt.Errorf("unknown arithmetic operator %q", op)
	}
	return IntValue(r).Convert(t), nil
}

func compare(op string, x, y Value) bool {
	if x.Type() == String && y.Type() == String {
		a, b := x.AsString(), y.AsString()
		switch op {
		case "==":
			return a == b
		case "!=":
			return a != b
		case ">":
			return a > b
		case "<":
			return a < b
		case ">=":
			return a >= b
		case "<=":
			return a <= b
		}
		return false
	}
	if x.Type() == Bool && y.Type() == Bool {
		switch op {
		case "==":
			return x.AsBool() == y.AsBool()
		case "!=":
			return x.AsBool() != y.AsBool()
		}
	}
	a, b := x.AsDouble(), y.AsDouble()
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	case "<=":
		return a <= b
	}
	return false
}

// numericPairs lists the (left, right, result) combinations the arithmetic
// operators accept.
var numericPairs = [][3]Type{
	{Int, Int, Int},
	{I16, I16, I16},
	{Double, Double, Double},
	{Int, Double, Double},
	{Double, Int, Double},
}

func registerLibrary(l *Language) {
	for _, op := range []string{"+", "-", "*", "/"} {
		for _, p := range numericPairs {
			ret := p[2]
			l.add(op, ret, val(p[0], p[1]), func(a []*Value) (Value, error) {
				return arithmetic(op, ret, *a[0], *a[1])
			})
		}
	}

	// string concatenation
	for _, t := range []Type{String, Int, Double, Bool} {
		l.add("+", String, val(String, t), func(a []*Value) (Value, error) {
			return StringValue(a[0].AsString() + a[1].AsString()), nil
		})
	}

	// unary
	for _, t := range []Type{Int, I16, Double} {
		l.add("-", t, val(t), func(a []*Value) (Value, error) {
			return arithmetic("-", a[0].Type(), Zero(a[0].Type()), *a[0])
		})
	}
	l.add("!", Bool, val(Bool), func(a []*Value) (Value, error) {
		return BoolValue(!a[0].AsBool()), nil
	})

	// logic
	logic := map[string]func(x, y bool) bool{
		"&&":  func(x, y bool) bool { return x && y },
		"||":  func(x, y bool) bool { return x || y },
		"=>":  func(x, y bool) bool { return !x || y },
		"<=>": func(x, y bool) bool { return x == y },
	}
	for _, op := range []string{"&&", "||", "=>", "<=>"} {
		fn := logic[op]
		l.add(op, Bool, val(Bool, Bool), func(a []*Value) (Value, error) {
			return BoolValue(fn(a[0].AsBool(), a[1].AsBool())), nil
		})
	}

	// comparisons
	for _, op := range []string{"==", "!=", ">", "<", ">=", "<="} {
		for _, t := range []Type{Int, I16, Double, String} {
			l.add(op, Bool, val(t, t), func(a []*Value) (Value, error) {
				return BoolValue(compare(op, *a[0], *a[1])), nil
			})
		}
		l.add(op, Bool, val(Int, Double), func(a []*Value) (Value, error) {
			return BoolValue(compare(op, *a[0], *a[1])), nil
		})
		l.add(op, Bool, val(Double, Int), func(a []*Value) (Value, error) {
			return BoolValue(compare(op, *a[0], *a[1])), nil
		})
	}
	for _, op := range []string{"==", "!="} {
		l.add(op, Bool, val(Bool, Bool), func(a []*Value) (Value, error) {
			return BoolValue(compare(op, *a[0], *a[1])), nil
		})
	}

	// assignment writes through its first argument
	for _, t := range []Type{Bool, Int, I16, Double, String, Any} {
		l.add("=", t, ref(t, t), func(a []*Value) (Value, error) {
			*a[0] = a[1].Convert(t)
			return *a[0], nil
		})
	}
	for _, op := range []string{"+=", "-=", "*=", "/="} {
		arith := op[:1]
		for _, t := range []Type{Int, I16, Double} {
			l.add(op, t, ref(t, t), func(a []*Value) (Value, error) {
				r, err := arithmetic(arith, t, *a[0], *a[1])
				if err != nil {
					return Value{}, err
				}
				*a[0] = r
				return r, nil
			})
		}
	}
	l.add("+=", String, ref(String, String), func(a []*Value) (Value, error) {
		*a[0] = StringValue(a[0].AsString() + a[1].AsString())
		return *a[0], nil
	})

	// math
	l.add("sin", Double, val(Double), func(a []*Value) (Value, error) {
		return DoubleValue(math.Sin(a[0].AsDouble())), nil
	})
	l.add("cos", Double, val(Double), func(a []*Value) (Value, error) {
		return DoubleValue(math.Cos(a[0].AsDouble())), nil
	})
	l.add("sqrt", Double, val(Double), func(a []*Value) (Value, error) {
		return DoubleValue(math.Sqrt(a[0].AsDouble())), nil
	})
	l.add("pow", Double, val(Double, Double), func(a []*Value) (Value, error) {
		return DoubleValue(math.Pow(a[0].AsDouble(), a[1].AsDouble())), nil
	})
	l.add("mod", Int, val(Int, Int), func(a []*Value) (Value, error) {
		if a[1].AsInt() == 0 {
			return Value{}, ErrDivisionByZero
		}
		return IntValue(a[0].AsInt() % a[1].AsInt()), nil
	})
	l.add("secondDegreePolynomial", Double, val(Double, Double, Double, Double, Double), func(a []*Value) (Value, error) {
		x, y := a[1].AsDouble(), a[3].AsDouble()
		return DoubleValue(a[0].AsDouble()*x*x + a[2].AsDouble()*y + a[4].AsDouble()), nil
	})

	// conversions
	for _, t := range []Type{Int, Double, String, Bool} {
		l.add("to_bool", Bool, val(t), func(a []*Value) (Value, error) {
			return BoolValue(a[0].AsBool()), nil
		})
	}
	for _, t := range []Type{Bool, Int, I16, Double, String} {
		l.add("to_string", String, val(t), func(a []*Value) (Value, error) {
			return StringValue(a[0].AsString()), nil
		})
	}

	l.add("print", String, val(Any), func(a []*Value) (Value, error) {
		s := a[0].AsString()
		if _, err := fmt.Fprintln(l.Output, s); err != nil {
			return Value{}, fmt.Errorf("print: %w", err)
		}
		return StringValue(s), nil
	})
}
