package token

import (
	"fmt"
	"strings"
)

// Kind classifies a token.
type Kind int

const (
	Null   Kind = iota
	Ignore      // whitespace and comments
	Identifier

	LiteralBool
	LiteralInt
	LiteralDouble
	LiteralString
	LiteralAny
	LiteralUnknown

	Operator

	KeywordIf
	KeywordElse
	KeywordFor
	KeywordWhile
	KeywordOperator

	KeywordBool
	KeywordInt
	KeywordI16
	KeywordDouble
	KeywordString
	KeywordAny

	ParenOpen        // (
	ParenClose       // )
	ScopeBegin       // {
	ScopeEnd         // }
	EndOfInstruction // ;
	ListSeparator    // ,
	EndOfLine
)

var kindNames = map[Kind]string{
	Null:             "null",
	Ignore:           "ignore",
	Identifier:       "identifier",
	LiteralBool:      "literal_bool",
	LiteralInt:       "literal_int",
	LiteralDouble:    "literal_double",
	LiteralString:    "literal_string",
	LiteralAny:       "literal_any",
	LiteralUnknown:   "literal_unknown",
	Operator:         "operator",
	KeywordIf:        "keyword_if",
	KeywordElse:      "keyword_else",
	KeywordFor:       "keyword_for",
	KeywordWhile:     "keyword_while",
	KeywordOperator:  "keyword_operator",
	KeywordBool:      "keyword_bool",
	KeywordInt:       "keyword_int",
	KeywordI16:       "keyword_i16",
	KeywordDouble:    "keyword_double",
	KeywordString:    "keyword_string",
	KeywordAny:       "keyword_any",
	ParenOpen:        "parenthesis_open",
	ParenClose:       "parenthesis_close",
	ScopeBegin:       "scope_begin",
	ScopeEnd:         "scope_end",
	EndOfInstruction: "end_of_instruction",
	ListSeparator:    "list_separator",
	EndOfLine:        "end_of_line",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsTypeKeyword reports whether k names one of the language types.
func (k Kind) IsTypeKeyword() bool {
	return k >= KeywordBool && k <= KeywordAny
}

// IsLiteral reports whether k is one of the literal kinds.
func (k Kind) IsLiteral() bool {
	return k >= LiteralBool && k <= LiteralUnknown
}

// DefaultWord returns the text a value of kind k shows once its input has
// been disconnected.
func DefaultWord(k Kind) string {
	switch k {
	case LiteralString:
		return `""`
	case LiteralDouble, LiteralInt:
		return "0"
	case LiteralBool:
		return "false"
	}
	return ""
}

// Token is a word of source plus the ignored text around it. Prefix and
// Suffix hold whitespace and comments so that concatenating a ribbon gives
// the original source back byte for byte.
type Token struct {
	Kind   Kind
	Prefix string
	Word   string
	Suffix string

	Index  int // position in the owning Ribbon, -1 when detached
	Offset int // byte offset of the prefix in the source
	Line   int // 1-based line of the word
}

// NullToken returns an empty, detached token.
func NullToken() Token {
	return Token{Kind: Null, Index: -1}
}

// New returns a detached token with no surrounding text.
func New(kind Kind, word string) Token {
	return Token{Kind: kind, Word: word, Index: -1}
}

func (t Token) IsNull() bool { return t.Kind == Null && t.Word == "" }

func (t Token) String() string {
	return t.Prefix + t.Word + t.Suffix
}

// ReplaceWord swaps the word and keeps the surrounding text.
func (t *Token) ReplaceWord(w string) {
	t.Word = w
}

// TakePrefixSuffixFrom moves the surrounding text of other onto t.
func (t *Token) TakePrefixSuffixFrom(other *Token) {
	t.Prefix, other.Prefix = other.Prefix, ""
	t.Suffix, other.Suffix = other.Suffix, ""
}

// Describe renders the token for diagnostics.
func (t Token) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{ kind: %q, line: %d", t.Kind, t.Line)
	if t.Prefix != "" {
		fmt.Fprintf(&b, ", prefix: %q", t.Prefix)
	}
	fmt.Fprintf(&b, ", word: %q", t.Word)
	if t.Suffix != "" {
		fmt.Fprintf(&b, ", suffix: %q", t.Suffix)
	}
	b.WriteString(" }")
	return b.String()
}
