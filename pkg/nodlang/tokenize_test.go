package nodlang

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

type word struct {
	Kind   token.Kind
	Prefix string
	Word   string
	Suffix string
}

func words(r *token.Ribbon) []word {
	var out []word
	for _, tok := range r.Tokens() {
		out = append(out, word{tok.Kind, tok.Prefix, tok.Word, tok.Suffix})
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []word
	}{
		{
			name:  "Declaration",
			input: "int a = 1;",
			expected: []word{
				{token.KeywordInt, "", "int", " "},
				{token.Identifier, "", "a", ""},
				{token.Operator, " ", "=", " "},
				{token.LiteralInt, "", "1", ""},
				{token.EndOfInstruction, "", ";", ""},
			},
		},
		{
			name:  "Operators",
			input: "== => <= <=> != += && || < !",
			expected: []word{
				{token.Operator, "", "==", " "},
				{token.Operator, "", "=>", " "},
				{token.Operator, "", "<=", " "},
				{token.Operator, "", "<=>", " "},
				{token.Operator, "", "!=", " "},
				{token.Operator, "", "+=", " "},
				{token.Operator, "", "&&", " "},
				{token.Operator, "", "||", " "},
				{token.Operator, "", "<", " "},
				{token.Operator, "", "!", ""},
			},
		},
		{
			name:  "Literals",
			input: `1 1.5 "a \"b\"" true`,
			expected: []word{
				{token.LiteralInt, "", "1", " "},
				{token.LiteralDouble, "", "1.5", " "},
				{token.LiteralString, "", `"a \"b\""`, " "},
				{token.LiteralBool, "", "true", ""},
			},
		},
		{
			name:  "Parentheses hand whitespace over",
			input: "f( x ) {",
			expected: []word{
				{token.Identifier, "", "f", ""},
				{token.ParenOpen, "", "(", ""},
				{token.Identifier, " ", "x", ""},
				{token.ParenClose, " ", ")", ""},
				{token.ScopeBegin, " ", "{", ""},
			},
		},
		{
			name:  "Comments",
			input: "a /* block */ + // line\nb",
			expected: []word{
				{token.Identifier, "", "a", ""},
				{token.Operator, " /* block */ ", "+", " // line\n"},
				{token.Identifier, "", "b", ""},
			},
		},
		{
			name:  "Keywords",
			input: "if else for while operator bool i16 double string any",
			expected: []word{
				{token.KeywordIf, "", "if", " "},
				{token.KeywordElse, "", "else", " "},
				{token.KeywordFor, "", "for", " "},
				{token.KeywordWhile, "", "while", " "},
				{token.KeywordOperator, "", "operator", " "},
				{token.KeywordBool, "", "bool", " "},
				{token.KeywordI16, "", "i16", " "},
				{token.KeywordDouble, "", "double", " "},
				{token.KeywordString, "", "string", " "},
				{token.KeywordAny, "", "any", ""},
			},
		},
	}

	l := lang.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := token.NewRibbon()
			if err := Tokenize(l, tt.input, r); err != nil {
				t.Fatalf("Tokenize(%q): %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.expected, words(r)); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	sources := []string{
		"",
		"   \n",
		"int a = 1; int b = a + 2;",
		"// header\nint i = 0;\nwhile (i < 3) {\n\ti = i + 1; /* step */\n}\n",
		`string s = "tab\t \"quoted\"";`,
		"/* never closed",
		"if(a){}else{b;}",
	}
	l := lang.New()
	for _, src := range sources {
		r := token.NewRibbon()
		if err := Tokenize(l, src, r); err != nil {
			t.Fatalf("Tokenize(%q): %v", src, err)
		}
		if got := r.Concat(); got != src {
			t.Errorf("Concat() = %q, want %q", got, src)
		}
	}
}

func TestTokenizeLines(t *testing.T) {
	r := token.NewRibbon()
	if err := Tokenize(lang.New(), "a\n\nb /* x\n */ c", r); err != nil {
		t.Fatal(err)
	}
	want := []int{1, 3, 4}
	for i, tok := range r.Tokens() {
		if tok.Line != want[i] {
			t.Errorf("token %q on line %d, want %d", tok.Word, tok.Line, want[i])
		}
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantScan   bool
		wantOffset int
	}{
		{name: "Unknown character", input: "int a = 1 @ 2;", wantScan: true, wantOffset: 10},
		{name: "Single ampersand", input: "a & b", wantScan: true, wantOffset: 2},
		{name: "Trailing dot", input: "2.;", wantScan: true, wantOffset: 1},
		{name: "Unclosed parenthesis", input: "foo(1, 2;"},
		{name: "Unexpected parenthesis", input: "a);"},
	}
	l := lang.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Tokenize(l, tt.input, token.NewRibbon())
			if err == nil {
				t.Fatalf("Tokenize(%q) succeeded", tt.input)
			}
			var scanErr *ScanError
			var syntaxErr *SyntaxError
			switch {
			case tt.wantScan:
				if !errors.As(err, &scanErr) {
					t.Fatalf("got %T (%v), want *ScanError", err, err)
				}
				if scanErr.Offset != tt.wantOffset {
					t.Errorf("Offset = %d, want %d", scanErr.Offset, tt.wantOffset)
				}
			default:
				if !errors.As(err, &syntaxErr) {
					t.Fatalf("got %T (%v), want *SyntaxError", err, err)
				}
			}
		})
	}
}
