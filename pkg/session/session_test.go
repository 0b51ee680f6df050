package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nodlang/pkg/compiler"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
	"nodlang/pkg/vm"
)

func variable(t *testing.T, s *Session, name string) lang.Value {
	t.Helper()
	n := s.Graph().RootScope().FindVariable(name, false)
	if n == nil {
		t.Fatalf("no variable %q in\n%s", name, s.Source())
	}
	return n.Value().Value
}

func TestTickParsesOnTextChange(t *testing.T) {
	ctx := context.Background()
	s := New(ctx)
	s.SetSource("int a = 1;")
	if err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	first := s.Graph().NodeCount()
	if first == 0 {
		t.Fatal("nothing parsed")
	}

	if err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Graph().NodeCount() != first || s.Source() != "int a = 1;" {
		t.Errorf("an idle tick changed the session: %q", s.Source())
	}

	s.SetSource("int a = 1; int b = a + 2;")
	if err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Graph().NodeCount() <= first {
		t.Errorf("node count %d after the edit, want more than %d", s.Graph().NodeCount(), first)
	}
}

func TestTickSerializesGraphEdits(t *testing.T) {
	ctx := context.Background()
	s := New(ctx)
	s.SetSource("int a = 1; int b = a + 2;")
	if err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}

	a := s.Graph().RootScope().FindVariable("a", false)
	var ref *graph.Edge
	for _, e := range s.Graph().EdgesOf(graph.TypeValue) {
		if e.Tail.Node == a.ID && e.Tail.Index == a.Variable.RefOut {
			ref = &e
			break
		}
	}
	if ref == nil {
		t.Fatal("a is not used")
	}
	if err := s.Graph().Disconnect(*ref, graph.SideEffects); err != nil {
		t.Fatal(err)
	}
	before := s.Fingerprint()
	if err := s.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Fingerprint() == before {
		t.Fatalf("source not rewritten: %q", s.Source())
	}
	if strings.Contains(s.Source(), "= a") {
		t.Errorf("source still reads a: %q", s.Source())
	}

	// The rewritten text stands on its own.
	fresh := New(ctx)
	fresh.SetSource(s.Source())
	if err := fresh.Run(ctx); err != nil {
		t.Fatalf("Run(%q): %v", s.Source(), err)
	}
	if got := variable(t, fresh, "b"); got != lang.IntValue(2) {
		t.Errorf("b = %v, want 2", got)
	}
}

func TestTickKeepsTextOnParseError(t *testing.T) {
	ctx := context.Background()
	s := New(ctx)
	const broken = "int a = (1 + ;"
	s.SetSource(broken)
	if err := s.Tick(ctx); !errors.Is(err, ErrParseFailed) {
		t.Fatalf("Tick = %v, want ErrParseFailed", err)
	}
	if !s.Graph().IsEmpty() {
		t.Error("graph not cleared after a failed parse")
	}
	_ = s.Tick(ctx)
	if s.Source() != broken {
		t.Errorf("source = %q, want the text left as typed", s.Source())
	}
	if _, err := s.Compile(ctx); !errors.Is(err, ErrParseFailed) {
		t.Errorf("Compile = %v, want ErrParseFailed", err)
	}
}

func TestRunAndReset(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithMaxSteps(1000))
	s.SetSource("int i = 0; while (i < 4) { i = i + 1; }")
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := variable(t, s, "i"); got != lang.IntValue(4) {
		t.Errorf("i = %v, want 4", got)
	}
	s.Reset()
	if got := variable(t, s, "i"); got != lang.IntValue(0) {
		t.Errorf("i after reset = %v, want 0", got)
	}

	s.SetSource("while (true) { }")
	if err := s.Run(ctx); !errors.Is(err, vm.ErrStepLimit) {
		t.Errorf("Run(endless) = %v, want ErrStepLimit", err)
	}
}

func TestDebugStepsOnTick(t *testing.T) {
	ctx := context.Background()
	s := New(ctx)
	s.SetSource("int a = 1; int b = a + 2;")
	if err := s.Debug(ctx); err != nil {
		t.Fatalf("Debug: %v", err)
	}
	if !s.VM().IsDebugging() {
		t.Fatal("not debugging")
	}
	for i := 0; s.VM().IsDebugging(); i++ {
		if i > 100 {
			t.Fatal("debugging never ended")
		}
		if err := s.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}
	if got := variable(t, s, "b"); got != lang.IntValue(3) {
		t.Errorf("b = %v, want 3", got)
	}
}

func TestStrict(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, WithStrict(true))
	s.SetSource("foo(1);")
	if _, err := s.Compile(ctx); !errors.Is(err, ErrParseFailed) {
		t.Errorf("strict Compile = %v, want ErrParseFailed", err)
	}

	s = New(ctx)
	s.SetSource("foo(1);")
	if _, err := s.Compile(ctx); !errors.Is(err, compiler.ErrUnresolvedCall) {
		t.Errorf("Compile = %v, want ErrUnresolvedCall", err)
	}
}
