package lang

import (
	"io"
	"os"

	"nodlang/pkg/token"
)

type typeDef struct {
	typ     Type
	keyword token.Kind
	literal token.Kind
	word    string
}

// Language holds the definition tables of Nodlang and its function registry.
// Build one with New and pass it to the parser, compiler and VM; nothing in
// the module keeps a global instance.
type Language struct {
	// Output receives what print writes.
	Output io.Writer

	chars         map[byte]token.Kind
	keywords      map[string]token.Kind
	types         []typeDef
	operators     []*Operator
	functions     []*Function
	operatorImpls []*Function
}

// New returns the Nodlang definition with the standard library registered.
func New() *Language {
	l := &Language{
		Output: os.Stdout,
		chars: map[byte]token.Kind{
			'(':  token.ParenOpen,
			')':  token.ParenClose,
			'{':  token.ScopeBegin,
			'}':  token.ScopeEnd,
			';':  token.EndOfInstruction,
			',':  token.ListSeparator,
			'\n': token.Ignore,
			'\t': token.Ignore,
			'\r': token.Ignore,
			' ':  token.Ignore,
		},
		keywords: map[string]token.Kind{
			"if":       token.KeywordIf,
			"else":     token.KeywordElse,
			"for":      token.KeywordFor,
			"while":    token.KeywordWhile,
			"operator": token.KeywordOperator,
			"true":     token.LiteralBool,
			"false":    token.LiteralBool,
		},
		types: []typeDef{
			{Bool, token.KeywordBool, token.LiteralBool, "bool"},
			{String, token.KeywordString, token.LiteralString, "string"},
			{Double, token.KeywordDouble, token.LiteralDouble, "double"},
			{I16, token.KeywordI16, token.LiteralInt, "i16"},
			{Int, token.KeywordInt, token.LiteralInt, "int"},
			{Any, token.KeywordAny, token.LiteralAny, "any"},
		},
		operators: []*Operator{
			{"-", Unary, 5},
			{"!", Unary, 5},
			{"/", Binary, 20},
			{"*", Binary, 20},
			{"+", Binary, 10},
			{"-", Binary, 10},
			{"||", Binary, 10},
			{"&&", Binary, 10},
			{">=", Binary, 10},
			{"<=", Binary, 10},
			{"=>", Binary, 10},
			{"==", Binary, 10},
			{"<=>", Binary, 10},
			{"!=", Binary, 10},
			{">", Binary, 10},
			{"<", Binary, 10},
			{"=", Binary, 0},
			{"+=", Binary, 0},
			{"-=", Binary, 0},
			{"/=", Binary, 0},
			{"*=", Binary, 0},
		},
	}
	for _, def := range l.types {
		l.keywords[def.word] = def.keyword
	}
	registerLibrary(l)
	return l
}

// Char returns the kind of a single-character token.
func (l *Language) Char(c byte) (token.Kind, bool) {
	k, ok := l.chars[c]
	return k, ok
}

// Keyword returns the kind of a reserved word.
func (l *Language) Keyword(word string) (token.Kind, bool) {
	k, ok := l.keywords[word]
	return k, ok
}

// TypeOf maps a type keyword or a literal kind to its type.
func (l *Language) TypeOf(kind token.Kind) (Type, bool) {
	for _, def := range l.types {
		if def.keyword == kind {
			return def.typ, true
		}
	}
	switch kind {
	case token.LiteralBool:
		return Bool, true
	case token.LiteralInt:
		return Int, true
	case token.LiteralDouble:
		return Double, true
	case token.LiteralString:
		return String, true
	case token.LiteralAny:
		return Any, true
	}
	return Any, false
}

// KeywordOf returns the source keyword of t.
func (l *Language) KeywordOf(t Type) string {
	for _, def := range l.types {
		if def.typ == t {
			return def.word
		}
	}
	return "any"
}

// LiteralKind returns the token kind used for literals of type t.
func (l *Language) LiteralKind(t Type) token.Kind {
	for _, def := range l.types {
		if def.typ == t {
			return def.literal
		}
	}
	return token.LiteralUnknown
}

func (l *Language) Operators() []*Operator { return l.operators }

func (l *Language) FindOperator(identifier string, arity Arity) *Operator {
	for _, op := range l.operators {
		if op.Identifier == identifier && op.Arity == arity {
			return op
		}
	}
	return nil
}

// Precedence returns the precedence of the operator sig implements. The
// boolean is false when sig is not an operator signature.
func (l *Language) Precedence(sig *Signature) (int, bool) {
	if sig == nil {
		return 0, false
	}
	op := l.FindOperator(sig.Identifier, Arity(len(sig.Args)))
	if op == nil {
		return 0, false
	}
	return op.Precedence, true
}

// AddFunction registers fn. When fn's identifier and arity match an entry
// of the operator table it is also registered as that operator's
// implementation.
func (l *Language) AddFunction(fn *Function) {
	l.functions = append(l.functions, fn)
	if l.FindOperator(fn.Sig.Identifier, Arity(len(fn.Sig.Args))) != nil {
		l.operatorImpls = append(l.operatorImpls, fn)
	}
}

// FindFunction resolves a call signature, preferring an exact match over
// one that needs implicit conversions.
func (l *Language) FindFunction(sig *Signature) *Function {
	if fn := l.FindFunctionExact(sig); fn != nil {
		return fn
	}
	return l.FindFunctionFallback(sig)
}

func (l *Language) FindFunctionExact(sig *Signature) *Function {
	return findIn(l.functions, sig, (*Signature).IsExactly)
}

func (l *Language) FindFunctionFallback(sig *Signature) *Function {
	return findIn(l.functions, sig, (*Signature).IsCompatible)
}

// FindOperatorFunction is FindFunction restricted to operator implementations.
func (l *Language) FindOperatorFunction(sig *Signature) *Function {
	if fn := findIn(l.operatorImpls, sig, (*Signature).IsExactly); fn != nil {
		return fn
	}
	return findIn(l.operatorImpls, sig, (*Signature).IsCompatible)
}

func findIn(fns []*Function, sig *Signature, match func(*Signature, *Signature) bool) *Function {
	for _, fn := range fns {
		if match(fn.Sig, sig) {
			return fn
		}
	}
	return nil
}
