package lang

import (
	"errors"
	"strings"
)

// ErrDivisionByZero is returned by the division and modulo functions.
var ErrDivisionByZero = errors.New("division by zero")

// Arg is a declared function argument. ByRef arguments are written back to
// the property they are connected to.
type Arg struct {
	Name  string
	Type  Type
	ByRef bool
}

// Signature identifies a function by name, argument types and return type.
type Signature struct {
	Identifier string
	Return     Type
	Args       []Arg
}

func NewSignature(identifier string, ret Type, args ...Arg) *Signature {
	return &Signature{Identifier: identifier, Return: ret, Args: args}
}

// PushArg appends a by-value argument of type t.
func (s *Signature) PushArg(t Type) {
	s.Args = append(s.Args, Arg{Type: t})
}

func (s *Signature) Arity() int { return len(s.Args) }

// IsExactly reports whether other has the same identifier and argument types.
func (s *Signature) IsExactly(other *Signature) bool {
	if s.Identifier != other.Identifier || len(s.Args) != len(other.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i].Type != other.Args[i].Type {
			return false
		}
	}
	return true
}

// IsCompatible reports whether a call shaped like other can be served by s
// through implicit conversions. By-reference arguments take no conversion.
func (s *Signature) IsCompatible(other *Signature) bool {
	if s.Identifier != other.Identifier || len(s.Args) != len(other.Args) {
		return false
	}
	for i, arg := range s.Args {
		from := other.Args[i].Type
		if arg.ByRef {
			if from != arg.Type && from != Any {
				return false
			}
			continue
		}
		if !ImplicitlyConvertible(from, arg.Type) {
			return false
		}
	}
	return true
}

// String renders the signature as "ret id(t1, t2)".
func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Return.String())
	b.WriteByte(' ')
	b.WriteString(s.Identifier)
	b.WriteByte('(')
	for i, arg := range s.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(arg.Type.String())
		if arg.ByRef {
			b.WriteByte('&')
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Function is a callable implementation of a signature. Call receives one
// pointer per argument; by-reference arguments alias the caller's storage.
type Function struct {
	Sig  *Signature
	Call func(args []*Value) (Value, error)
}

// Arity tells unary and binary operators apart.
type Arity int

const (
	Unary  Arity = 1
	Binary Arity = 2
)

// Operator is an entry of the operator table.
type Operator struct {
	Identifier string
	Arity      Arity
	Precedence int
}
