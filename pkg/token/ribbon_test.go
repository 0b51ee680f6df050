package token

import "testing"

func newTestRibbon(words ...string) *Ribbon {
	r := NewRibbon()
	for _, w := range words {
		r.Push(Token{Kind: Identifier, Word: w, Suffix: " "})
	}
	return r
}

func TestRibbonTransactionRestoresCursor(t *testing.T) {
	r := newTestRibbon("a", "b", "c", "d")

	r.Eat()
	r.StartTransaction()
	r.Eat()
	r.StartTransaction()
	r.Eat()
	r.Eat()
	if r.Cursor() != 4 {
		t.Fatalf("cursor = %d, want 4", r.Cursor())
	}
	r.Rollback()
	if r.Cursor() != 2 {
		t.Fatalf("after inner rollback cursor = %d, want 2", r.Cursor())
	}
	r.Rollback()
	if r.Cursor() != 1 {
		t.Fatalf("after outer rollback cursor = %d, want 1", r.Cursor())
	}
	if r.TransactionDepth() != 0 {
		t.Errorf("transaction depth = %d, want 0", r.TransactionDepth())
	}
	if r.Furthest() != 4 {
		t.Errorf("furthest = %d, want 4", r.Furthest())
	}
}

func TestRibbonCommitKeepsCursor(t *testing.T) {
	r := newTestRibbon("a", "b")
	r.StartTransaction()
	r.Eat()
	r.Commit()
	if r.Cursor() != 1 {
		t.Fatalf("cursor = %d, want 1", r.Cursor())
	}
}

func TestRibbonMisusePanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(r *Ribbon)
	}{
		{"commit", func(r *Ribbon) { r.Commit() }},
		{"rollback", func(r *Ribbon) { r.Rollback() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s without transaction did not panic", tt.name)
				}
			}()
			tt.fn(NewRibbon())
		})
	}
}

func TestRibbonEatIf(t *testing.T) {
	r := NewRibbon()
	r.Push(Token{Kind: ParenOpen, Word: "("})
	r.Push(Token{Kind: ParenClose, Word: ")"})

	if _, ok := r.EatIf(ParenClose); ok {
		t.Fatal("EatIf consumed a token of the wrong kind")
	}
	if r.Cursor() != 0 || r.Furthest() != 1 {
		t.Errorf("after a failed EatIf cursor = %d, furthest = %d, want 0, 1", r.Cursor(), r.Furthest())
	}
	tok, ok := r.EatIf(ParenOpen)
	if !ok || tok.Word != "(" {
		t.Fatalf("EatIf(ParenOpen) = %v, %v", tok, ok)
	}
	r.Eat()
	if r.CanEat(1) {
		t.Error("CanEat(1) at end of ribbon")
	}
	if !r.Peek().IsNull() {
		t.Errorf("Peek at end = %v, want null token", r.Peek())
	}
}

func TestRibbonConcat(t *testing.T) {
	r := NewRibbon()
	r.Prefix.Word = "// head\n"
	r.Push(Token{Kind: Identifier, Word: "a", Suffix: " "})
	r.Push(Token{Kind: Operator, Word: "=", Suffix: " "})
	r.Push(Token{Kind: LiteralInt, Word: "1"})
	r.Push(Token{Kind: EndOfInstruction, Word: ";"})
	r.Suffix.Word = "\n"

	if got, want := r.Concat(), "// head\na = 1;\n"; got != want {
		t.Errorf("Concat() = %q, want %q", got, want)
	}
}

func TestDefaultWord(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{LiteralString, `""`},
		{LiteralInt, "0"},
		{LiteralDouble, "0"},
		{LiteralBool, "false"},
		{Identifier, ""},
	}
	for _, tt := range tests {
		if got := DefaultWord(tt.kind); got != tt.want {
			t.Errorf("DefaultWord(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRibbonMatch(t *testing.T) {
	tests := []struct {
		name         string
		kinds        []Kind
		want         bool
		wantFurthest int
	}{
		{name: "full match", kinds: []Kind{Identifier, ParenOpen}, want: true, wantFurthest: 2},
		{name: "first token differs", kinds: []Kind{KeywordOperator, Operator, ParenOpen}, want: false, wantFurthest: 1},
		{name: "second token differs", kinds: []Kind{Identifier, Operator}, want: false, wantFurthest: 2},
		{name: "past the end", kinds: []Kind{Identifier, ParenOpen, ParenClose, ParenClose}, want: false, wantFurthest: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRibbon()
			r.Push(Token{Kind: Identifier, Word: "f"})
			r.Push(Token{Kind: ParenOpen, Word: "("})
			r.Push(Token{Kind: ParenClose, Word: ")"})

			if got := r.Match(tt.kinds...); got != tt.want {
				t.Errorf("Match = %t, want %t", got, tt.want)
			}
			if r.Cursor() != 0 {
				t.Errorf("cursor = %d, want 0", r.Cursor())
			}
			if r.Furthest() != tt.wantFurthest {
				t.Errorf("furthest = %d, want %d", r.Furthest(), tt.wantFurthest)
			}
		})
	}
}
