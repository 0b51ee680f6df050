package lang

import (
	"bytes"
	"errors"
	"testing"
)

func call(t *testing.T, fn *Function, args ...Value) Value {
	t.Helper()
	ptrs := make([]*Value, len(args))
	for i := range args {
		ptrs[i] = &args[i]
	}
	v, err := fn.Call(ptrs)
	if err != nil {
		t.Fatalf("%s: %v", fn.Sig, err)
	}
	return v
}

func TestFindFunctionPrefersExactMatch(t *testing.T) {
	l := New()
	tests := []struct {
		name string
		sig  *Signature
		want string
	}{
		{"int add", NewSignature("+", Any, val(Int, Int)...), "int +(int, int)"},
		{"double add", NewSignature("+", Any, val(Double, Double)...), "double +(double, double)"},
		{"mixed add", NewSignature("+", Any, val(Int, Double)...), "double +(int, double)"},
		{"i16 widens", NewSignature("*", Any, val(I16, Int)...), "int *(int, int)"},
		{"concat", NewSignature("+", Any, val(String, Int)...), "string +(string, int)"},
		{"assign", NewSignature("=", Any, val(Double, Double)...), "double =(double&, double)"},
		{"sqrt of int", NewSignature("sqrt", Any, val(Int)...), "double sqrt(double)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := l.FindFunction(tt.sig)
			if fn == nil {
				t.Fatalf("no function for %s", tt.sig)
			}
			if got := fn.Sig.String(); got != tt.want {
				t.Errorf("resolved %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFindFunctionUnknown(t *testing.T) {
	l := New()
	if fn := l.FindFunction(NewSignature("foo", Any, val(Int)...)); fn != nil {
		t.Fatalf("foo(int) resolved to %s", fn.Sig)
	}
	if fn := l.FindFunction(NewSignature("+", Any, val(Bool, Bool)...)); fn != nil {
		t.Fatalf("bool + bool resolved to %s", fn.Sig)
	}
}

func TestOperatorTable(t *testing.T) {
	l := New()
	tests := []struct {
		id    string
		arity Arity
		prec  int
	}{
		{"-", Unary, 5},
		{"!", Unary, 5},
		{"*", Binary, 20},
		{"/", Binary, 20},
		{"+", Binary, 10},
		{"<=>", Binary, 10},
		{"=", Binary, 0},
		{"*=", Binary, 0},
	}
	for _, tt := range tests {
		op := l.FindOperator(tt.id, tt.arity)
		if op == nil {
			t.Errorf("operator %q/%d missing", tt.id, tt.arity)
			continue
		}
		if op.Precedence != tt.prec {
			t.Errorf("precedence of %q/%d = %d, want %d", tt.id, tt.arity, op.Precedence, tt.prec)
		}
	}
	if l.FindOperator("%", Binary) != nil {
		t.Error("unexpected % operator")
	}
}

func TestLibraryCalls(t *testing.T) {
	l := New()
	find := func(id string, types ...Type) *Function {
		fn := l.FindFunctionExact(NewSignature(id, Any, val(types...)...))
		if fn == nil {
			t.Fatalf("missing %s%v", id, types)
		}
		return fn
	}

	if got := call(t, find("+", Int, Int), IntValue(1), IntValue(2)); got != IntValue(3) {
		t.Errorf("1 + 2 = %v", got)
	}
	if got := call(t, find("/", Double, Double), DoubleValue(1), DoubleValue(4)); got != DoubleValue(0.25) {
		t.Errorf("1.0 / 4.0 = %v", got)
	}
	if got := call(t, find("+", String, Int), StringValue("a"), IntValue(1)); got != StringValue("a1") {
		t.Errorf(`"a" + 1 = %v`, got)
	}
	if got := call(t, find("<", Int, Int), IntValue(1), IntValue(2)); got != BoolValue(true) {
		t.Errorf("1 < 2 = %v", got)
	}
	if got := call(t, find("=>", Bool, Bool), BoolValue(true), BoolValue(false)); got != BoolValue(false) {
		t.Errorf("true => false = %v", got)
	}
	if got := call(t, find("-", Int), IntValue(4)); got != IntValue(-4) {
		t.Errorf("-4 = %v", got)
	}
	if got := call(t, find("mod", Int, Int), IntValue(7), IntValue(3)); got != IntValue(1) {
		t.Errorf("mod(7, 3) = %v", got)
	}
}

func TestDivisionByZero(t *testing.T) {
	l := New()
	fn := l.FindFunctionExact(NewSignature("/", Any, val(Int, Int)...))
	a, b := IntValue(1), IntValue(0)
	if _, err := fn.Call([]*Value{&a, &b}); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("err = %v, want ErrDivisionByZero", err)
	}
}

func TestAssignmentWritesThrough(t *testing.T) {
	l := New()
	fn := l.FindFunction(NewSignature("=", Any, val(Int, Int)...))
	target, src := IntValue(0), IntValue(42)
	if _, err := fn.Call([]*Value{&target, &src}); err != nil {
		t.Fatal(err)
	}
	if target != IntValue(42) {
		t.Errorf("target = %v, want 42", target)
	}

	add := l.FindFunction(NewSignature("+=", Any, val(Int, Int)...))
	if _, err := add.Call([]*Value{&target, &src}); err != nil {
		t.Fatal(err)
	}
	if target != IntValue(84) {
		t.Errorf("target = %v, want 84", target)
	}
}

func TestPrintWritesOutput(t *testing.T) {
	l := New()
	var buf bytes.Buffer
	l.Output = &buf
	fn := l.FindFunction(NewSignature("print", Any, val(Int)...))
	call(t, fn, IntValue(12))
	if buf.String() != "12\n" {
		t.Errorf("print wrote %q", buf.String())
	}
}

func TestValueConvert(t *testing.T) {
	tests := []struct {
		in   Value
		to   Type
		want Value
	}{
		{IntValue(3), Double, DoubleValue(3)},
		{DoubleValue(3.7), Int, IntValue(3)},
		{BoolValue(true), Int, IntValue(1)},
		{IntValue(0), Bool, BoolValue(false)},
		{DoubleValue(1.5), String, StringValue("1.5")},
		{StringValue("12"), Int, IntValue(12)},
		{IntValue(70000), I16, I16Value(4464)},
		{IntValue(5), Any, IntValue(5)},
	}
	for _, tt := range tests {
		if got := tt.in.Convert(tt.to); got != tt.want {
			t.Errorf("%v.Convert(%s) = %v, want %v", tt.in, tt.to, got, tt.want)
		}
	}
}

func TestImplicitlyConvertible(t *testing.T) {
	tests := []struct {
		from, to Type
		want     bool
	}{
		{Int, Int, true},
		{I16, Int, true},
		{I16, Double, true},
		{Int, Double, true},
		{Double, Int, false},
		{String, Int, false},
		{Bool, Any, true},
		{Any, String, true},
	}
	for _, tt := range tests {
		if got := ImplicitlyConvertible(tt.from, tt.to); got != tt.want {
			t.Errorf("ImplicitlyConvertible(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
