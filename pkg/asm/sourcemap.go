// Package asm relates compiled instructions to the source lines they came
// from.
package asm

import (
	"fmt"
	"strings"

	"nodlang/pkg/compiler"
	"nodlang/pkg/graph"
	"nodlang/pkg/token"
)

// SourceLine returns the 1-based source line of n, or 0 when n was not
// parsed from text.
func SourceLine(n *graph.Node) int {
	if n == nil {
		return 0
	}
	var toks []token.Token
	switch {
	case n.Variable != nil:
		toks = append(toks, n.Variable.TypeToken, n.Variable.Identifier)
	case n.Ref != nil:
		toks = append(toks, n.Ref.Identifier)
	case n.Invokable != nil:
		toks = append(toks, n.Invokable.Keyword, n.Invokable.Identifier, n.Invokable.ParenOpen)
	case n.Block != nil:
		toks = append(toks, n.Block.Keyword)
	}
	for _, p := range n.Props {
		toks = append(toks, p.Token)
	}
	toks = append(toks, n.Suffix)
	for _, t := range toks {
		if t.Line > 0 {
			return t.Line
		}
	}
	return 0
}

// SourceMap maps each instruction line of code to a source line.
// Instructions that name no node (mov, cmp, jumps) take the line of the
// instruction before them.
func SourceMap(code *compiler.Code) map[int]int {
	lines := make(map[int]int, code.Len())
	last := 0
	for _, in := range code.Instructions {
		var n *graph.Node
		switch in.Op {
		case compiler.EvalNode:
			n = code.Graph.Node(in.Node)
		case compiler.PushVar, compiler.PopVar:
			n = code.Graph.Node(in.Var)
		case compiler.PushStackFrame, compiler.PopStackFrame:
			if in.Scope != nil {
				n = in.Scope.Owner()
			}
		}
		if l := SourceLine(n); l > 0 {
			last = l
		}
		if last > 0 {
			lines[in.Line] = last
		}
	}
	return lines
}

// Annotate returns the listing of code with the source line each
// instruction came from.
func Annotate(code *compiler.Code, src string) string {
	srcLines := strings.Split(src, "\n")
	m := SourceMap(code)
	var b strings.Builder
	prev := 0
	for _, in := range code.Instructions {
		fmt.Fprintf(&b, "%-64s", in.String())
		if l, ok := m[in.Line]; ok && l != prev && l <= len(srcLines) {
			fmt.Fprintf(&b, " | %d: %s", l, strings.TrimSpace(srcLines[l-1]))
			prev = l
		}
		b.WriteString("\n")
	}
	return b.String()
}
