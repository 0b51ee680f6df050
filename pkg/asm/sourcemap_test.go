package asm

import (
	"context"
	"strings"
	"testing"

	"nodlang/pkg/compiler"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
	"nodlang/pkg/nodlang"
)

func compile(t *testing.T, src string) *compiler.Code {
	t.Helper()
	g := graph.New()
	if err := nodlang.New(lang.New()).Parse(context.Background(), src, g); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	code, err := compiler.Compile(context.Background(), g)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return code
}

func TestSourceMap(t *testing.T) {
	src := "int a = 1;\n\nint b = a + 2;\n"
	code := compile(t, src)
	m := SourceMap(code)

	for _, in := range code.Instructions {
		if in.Op != compiler.EvalNode {
			continue
		}
		n := code.Graph.Node(in.Node)
		want := 1
		if n.Name == "b" || in.Comment == "+" {
			want = 3
		}
		if got := m[in.Line]; got != want {
			t.Errorf("instruction %s maps to line %d, want %d", in, got, want)
		}
	}
}

func TestSourceMapFollowsJumps(t *testing.T) {
	src := "int i = 0;\nwhile (i < 3) {\n  i = i + 1;\n}\n"
	code := compile(t, src)
	m := SourceMap(code)
	for _, in := range code.Instructions {
		if in.Op != compiler.Jne {
			continue
		}
		if got := m[in.Line]; got != 2 {
			t.Errorf("condition jump maps to line %d, want 2", got)
		}
	}
}

func TestSourceLineOfBuiltNode(t *testing.T) {
	g := graph.New()
	n := g.CreateLiteral(lang.Int, nil)
	if got := SourceLine(n); got != 0 {
		t.Errorf("SourceLine(built literal) = %d, want 0", got)
	}
	if SourceLine(nil) != 0 {
		t.Error("SourceLine(nil) should be 0")
	}
}

func TestAnnotate(t *testing.T) {
	src := "int a = 1;\nint b = a + 2;"
	out := Annotate(compile(t, src), src)
	if !strings.Contains(out, "| 1: int a = 1;") || !strings.Contains(out, "| 2: int b = a + 2;") {
		t.Errorf("annotation lacks source lines:\n%s", out)
	}
	if got := strings.Count(out, "\n"); got != compile(t, src).Len() {
		t.Errorf("%d lines, want one per instruction", got)
	}
}
