package nodlang

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

// ErrNoRoot is returned when serializing a graph without entry point.
var ErrNoRoot = errors.New("graph has no root")

type serializer struct {
	l *lang.Language
	g *graph.Graph
	b strings.Builder
}

// Serialize writes the program held by g back to source. Tokens kept by the
// parser are reused, so an unchanged graph gives back the parsed text.
// Nodes built without tokens get canonical text.
func Serialize(l *lang.Language, g *graph.Graph) (string, error) {
	root := g.Root()
	if root == nil {
		return "", ErrNoRoot
	}
	s := &serializer{l: l, g: g}
	sc := root.InternalScope()
	s.b.WriteString(sc.Begin.String())
	if err := s.codeFlow(g.BranchHead(root, 0)); err != nil {
		return "", err
	}
	s.b.WriteString(sc.End.String())
	return s.b.String(), nil
}

// SerializeSignature renders sig the way it is called, with argument types
// in place of values: "+(int, int)".
func SerializeSignature(sig *lang.Signature) string {
	var b strings.Builder
	b.WriteString(sig.Identifier)
	b.WriteByte('(')
	for i, arg := range sig.Args {
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

// token writes tok, or fallback when tok carries no word.
func (s *serializer) token(tok token.Token, fallback string) {
	if tok.Word == "" {
		s.b.WriteString(tok.Prefix)
		s.b.WriteString(fallback)
		s.b.WriteString(tok.Suffix)
		return
	}
	s.b.WriteString(tok.String())
}

func (s *serializer) codeFlow(n *graph.Node) error {
	for ; n != nil; n = s.g.Next(n) {
		if err := s.instruction(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *serializer) instruction(n *graph.Node) error {
	var err error
	switch n.Kind {
	case graph.KindScope:
		err = s.scope(n)
	case graph.KindIf:
		err = s.conditional(n)
	case graph.KindFor:
		err = s.forLoop(n)
	case graph.KindWhile:
		err = s.whileLoop(n)
	case graph.KindEmptyInstruction:
	default:
		err = s.node(n)
	}
	if err != nil {
		return err
	}
	s.token(n.Suffix, "")
	return nil
}

func (s *serializer) scope(n *graph.Node) error {
	sc := n.InternalScope()
	s.token(sc.Begin, "{\n")
	if err := s.codeFlow(s.g.BranchHead(n, 0)); err != nil {
		return err
	}
	s.token(sc.End, "}\n")
	return nil
}

// body writes branch i of n. Branches always print with braces.
func (s *serializer) body(n *graph.Node, i int) error {
	head := s.g.BranchHead(n, i)
	if head == nil {
		s.b.WriteString("\n{\n}\n")
		return nil
	}
	if head.Kind == graph.KindScope || (head.Kind == graph.KindIf && i == 1) {
		return s.codeFlow(head)
	}
	s.b.WriteString("{\n")
	if err := s.codeFlow(head); err != nil {
		return err
	}
	s.b.WriteString("}\n")
	return nil
}

func (s *serializer) header(n *graph.Node, inputs ...string) error {
	b := n.Block
	s.token(b.ParenOpen, "(")
	for i, name := range inputs {
		if i > 0 {
			sep := token.NullToken()
			if i-1 < len(b.Separators) {
				sep = b.Separators[i-1]
			}
			s.token(sep, "; ")
		}
		in := n.FindSlot(name, graph.Input)
		if in == nil {
			return fmt.Errorf("serialize %s: no input %q", n, name)
		}
		if err := s.input(n, in, 0); err != nil {
			return err
		}
	}
	s.token(b.ParenClose, ")")
	return nil
}

func (s *serializer) conditional(n *graph.Node) error {
	s.token(n.Block.Keyword, "if")
	if err := s.header(n, "condition"); err != nil {
		return err
	}
	if err := s.body(n, 0); err != nil {
		return err
	}
	if s.g.BranchHead(n, 1) == nil {
		return nil
	}
	s.token(n.Block.Else, "else ")
	return s.body(n, 1)
}

func (s *serializer) forLoop(n *graph.Node) error {
	s.token(n.Block.Keyword, "for")
	if err := s.header(n, "initialization", "condition", "iteration"); err != nil {
		return err
	}
	return s.body(n, 0)
}

func (s *serializer) whileLoop(n *graph.Node) error {
	s.token(n.Block.Keyword, "while")
	if err := s.header(n, "condition"); err != nil {
		return err
	}
	return s.body(n, 0)
}

// node writes the expression n evaluates, with its source parentheses.
func (s *serializer) node(n *graph.Node) error {
	for i := len(n.Parens) - 1; i >= 0; i-- {
		s.token(n.Parens[i].Open, "(")
	}
	var err error
	switch {
	case n.Variable != nil:
		err = s.variable(n)
	case n.Ref != nil:
		s.token(n.Ref.Identifier, n.Name)
	case n.Invokable != nil:
		err = s.invokable(n)
	case n.Kind == graph.KindLiteral:
		p := n.Value()
		s.token(p.Token, s.literal(p))
	default:
		err = fmt.Errorf("serialize %s: not an expression", n)
	}
	for _, p := range n.Parens {
		s.token(p.Close, ")")
	}
	return err
}

func (s *serializer) variable(n *graph.Node) error {
	v := n.Variable
	s.token(v.TypeToken, s.l.KeywordOf(n.Value().Type)+" ")
	s.token(v.Identifier, n.Name)
	in := n.Slot(v.In)
	if in.AdjacentCount() == 0 {
		return nil
	}
	s.token(v.Assign, " = ")
	return s.input(n, in, 0)
}

// literal renders a value as source.
func (s *serializer) literal(p *graph.Property) string {
	if p.Type == lang.Any && p.Value.IsNone() {
		return ""
	}
	if p.Value.Type() == lang.String {
		return strconv.Quote(p.Value.AsString())
	}
	if p.Value.IsNone() {
		return token.DefaultWord(s.l.LiteralKind(p.Type))
	}
	return p.Value.AsString()
}

// input writes what feeds in. prec is the precedence of the operator n
// when in is one of its operands.
func (s *serializer) input(n *graph.Node, in *graph.Slot, prec int) error {
	prop := n.PropOf(in)
	src, srcSlot := s.g.Source(in)
	switch {
	case src == nil:
		s.token(prop.Token, s.literal(prop))
		return nil
	case src.Variable != nil && srcSlot.Index == src.Variable.RefOut:
		tok := prop.Token
		if n.Variable != nil {
			tok = n.Variable.InitRef
		}
		if tok.Kind != token.Identifier {
			tok = token.NullToken()
		}
		s.token(tok, src.Name)
		return nil
	}

	wrap := false
	if child, ok := s.precedence(src); ok && len(src.Parens) == 0 && prec > 0 {
		wrap = child < prec
	}
	if wrap {
		s.b.WriteByte('(')
	}
	if err := s.node(src); err != nil {
		return err
	}
	if wrap {
		s.b.WriteByte(')')
	}
	return nil
}

// precedence returns the precedence of n when it is written as an infix or
// prefix operator. Prefix operators only take single operands and bind
// tighter than any infix operator.
func (s *serializer) precedence(n *graph.Node) (int, bool) {
	if n.Kind != graph.KindOperator || !n.Invokable.Keyword.IsNull() {
		return 0, false
	}
	prec, ok := s.l.Precedence(n.Invokable.Sig)
	if ok && n.Invokable.Sig.Arity() == 1 {
		prec = math.MaxInt
	}
	return prec, ok
}

func (s *serializer) invokable(n *graph.Node) error {
	inv := n.Invokable
	id := inv.Sig.Identifier

	if prec, ok := s.precedence(n); ok {
		switch len(inv.Args) {
		case 1:
			s.token(inv.Identifier, id)
			return s.input(n, n.ArgSlot(0), math.MaxInt)
		case 2:
			if err := s.input(n, n.ArgSlot(0), prec); err != nil {
				return err
			}
			s.token(inv.Identifier, " "+id+" ")
			// Right operands of equal precedence only come from explicit
			// parentheses, except for right-associative assignments.
			if prec > 0 {
				prec++
			}
			return s.input(n, n.ArgSlot(1), prec)
		}
	}

	if n.Kind == graph.KindOperator {
		s.token(inv.Keyword, "operator")
	}
	s.token(inv.Identifier, id)
	s.token(inv.ParenOpen, "(")
	for i := range inv.Args {
		if i > 0 {
			sep := token.NullToken()
			if i-1 < len(inv.Separators) {
				sep = inv.Separators[i-1]
			}
			s.token(sep, ", ")
		}
		if err := s.input(n, n.ArgSlot(i), 0); err != nil {
			return err
		}
	}
	if len(inv.Args) > 0 {
		for _, sep := range inv.Separators[min(len(inv.Args)-1, len(inv.Separators)):] {
			s.token(sep, "")
		}
	}
	s.token(inv.ParenClose, ")")
	return nil
}
