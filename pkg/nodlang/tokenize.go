package nodlang

import (
	"fmt"
	"strings"

	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

// ScanError reports a character no token starts with.
type ScanError struct {
	Offset  int
	Line    int
	Char    byte
	Snippet string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("line %d: unrecognized character %q at offset %d\n  |> %s", e.Line, e.Char, e.Offset, e.Snippet)
}

// SyntaxError reports a structural problem found before parsing, such as
// unbalanced parentheses.
type SyntaxError struct {
	Token   token.Token
	Msg     string
	Snippet string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s\n  |> %s", e.Token.Line, e.Msg, e.Snippet)
}

// scanner splits source text into words. It works on bytes: every token the
// language knows is ASCII, string literals and comments excepted.
type scanner struct {
	l    *lang.Language
	src  string
	pos  int
	line int
}

func (s *scanner) peek() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// peek2 returns the byte after the current one.
func (s *scanner) peek2() byte {
	if s.pos+1 >= len(s.src) {
		return 0
	}
	return s.src[s.pos+1]
}

func (s *scanner) advance() byte {
	if s.pos >= len(s.src) {
		return 0
	}
	c := s.src[s.pos]
	s.pos++
	if c == '\n' {
		s.line++
	}
	return c
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' }

// next scans one word starting at the current position.
func (s *scanner) next() (token.Kind, bool) {
	c, c2 := s.peek(), s.peek2()

	if c == '/' && c2 == '/' {
		for s.pos < len(s.src) {
			if s.advance() == '\n' {
				break
			}
		}
		return token.Ignore, true
	}
	if c == '/' && c2 == '*' {
		s.advance()
		s.advance()
		for s.pos < len(s.src) {
			if s.peek() == '*' && s.peek2() == '/' {
				s.advance()
				s.advance()
				break
			}
			s.advance()
		}
		return token.Ignore, true
	}

	if k, ok := s.l.Char(c); ok {
		s.advance()
		return k, true
	}

	switch c {
	case '=':
		s.advance()
		if n := s.peek(); n == '=' || n == '>' {
			s.advance()
		}
		return token.Operator, true
	case '!', '/', '*', '+', '-', '>':
		s.advance()
		if s.peek() == '=' {
			s.advance()
		}
		return token.Operator, true
	case '<':
		s.advance()
		if s.peek() == '=' {
			s.advance()
			if s.peek() == '>' {
				s.advance()
			}
		}
		return token.Operator, true
	case '&', '|':
		if c2 != c {
			return token.Null, false
		}
		s.advance()
		s.advance()
		return token.Operator, true
	case '"':
		s.advance()
		for s.pos < len(s.src) {
			switch s.advance() {
			case '\\':
				s.advance()
			case '"':
				return token.LiteralString, true
			}
		}
		return token.LiteralString, true
	}

	if isDigit(c) {
		for isDigit(s.peek()) {
			s.advance()
		}
		if s.peek() == '.' && isDigit(s.peek2()) {
			s.advance()
			for isDigit(s.peek()) {
				s.advance()
			}
			return token.LiteralDouble, true
		}
		return token.LiteralInt, true
	}

	if isAlpha(c) {
		start := s.pos
		for isAlpha(s.peek()) || isDigit(s.peek()) {
			s.advance()
		}
		if k, ok := s.l.Keyword(s.src[start:s.pos]); ok {
			return k, true
		}
		return token.Identifier, true
	}

	return token.Null, false
}

// takesSuffix reports whether ignored text following a token of kind k is
// stored as its suffix. Identifiers and parentheses hand it over to the next
// token's prefix instead.
func takesSuffix(k token.Kind) bool {
	switch k {
	case token.Identifier, token.ParenOpen, token.ParenClose:
		return false
	}
	return true
}

// Tokenize splits src into r. Whitespace and comments are folded into the
// surrounding tokens so that r.Concat() returns src unchanged.
func Tokenize(l *lang.Language, src string, r *token.Ribbon) error {
	r.Reset()
	s := &scanner{l: l, src: src, line: 1}

	var pending strings.Builder
	pendingAt := 0

	for s.pos < len(src) {
		start, line := s.pos, s.line
		kind, ok := s.next()
		if !ok {
			return &ScanError{
				Offset:  start,
				Line:    line,
				Char:    src[start],
				Snippet: lineAt(src, line),
			}
		}
		word := src[start:s.pos]

		if kind == token.Ignore {
			if pending.Len() == 0 {
				pendingAt = start
			}
			pending.WriteString(word)
			continue
		}

		tok := token.Token{Kind: kind, Word: word, Offset: start, Line: line}
		if pending.Len() > 0 {
			switch last := r.Last(); {
			case last == nil:
				r.Prefix.Word = pending.String()
			case takesSuffix(last.Kind):
				last.Suffix += pending.String()
			default:
				tok.Prefix = pending.String()
				tok.Offset = pendingAt
			}
			pending.Reset()
		}
		r.Push(tok)
	}

	if pending.Len() > 0 {
		r.Suffix.Word = pending.String()
	}
	return checkSyntax(r, src)
}

// checkSyntax verifies that parentheses are balanced.
func checkSyntax(r *token.Ribbon, src string) error {
	var open []token.Token
	for _, tok := range r.Tokens() {
		switch tok.Kind {
		case token.ParenOpen:
			open = append(open, tok)
		case token.ParenClose:
			if len(open) == 0 {
				return &SyntaxError{Token: tok, Msg: "unexpected ')'", Snippet: lineAt(src, tok.Line)}
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		tok := open[len(open)-1]
		return &SyntaxError{Token: tok, Msg: "'(' is never closed", Snippet: lineAt(src, tok.Line)}
	}
	return nil
}

// lineAt returns the trimmed 1-based line of src.
func lineAt(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line < 1 || line > len(lines) {
		return "<source unavailable>"
	}
	return strings.TrimSpace(lines[line-1])
}
