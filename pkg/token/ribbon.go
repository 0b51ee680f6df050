package token

import (
	"fmt"
	"strings"
)

// Ribbon is the token stream a parser walks. It keeps a cursor plus a stack
// of saved cursors so that speculative parses can be rolled back.
type Ribbon struct {
	Prefix Token // ignored text before the first token
	Suffix Token // ignored text after the last token

	tokens       []Token
	cursor       int
	furthest     int
	transactions []int
}

func NewRibbon() *Ribbon {
	r := &Ribbon{}
	r.Reset()
	return r
}

// Reset empties the ribbon and drops any open transaction.
func (r *Ribbon) Reset() {
	r.tokens = r.tokens[:0]
	r.cursor = 0
	r.furthest = 0
	r.transactions = r.transactions[:0]
	r.Prefix = Token{Kind: Ignore, Index: -1}
	r.Suffix = Token{Kind: Ignore, Index: -1}
}

// Push appends tok and assigns its index.
func (r *Ribbon) Push(tok Token) *Token {
	tok.Index = len(r.tokens)
	r.tokens = append(r.tokens, tok)
	return &r.tokens[tok.Index]
}

func (r *Ribbon) Len() int { return len(r.tokens) }

// At returns a pointer to the i-th token so that ignored text can still be
// attached to it while tokenizing.
func (r *Ribbon) At(i int) *Token {
	if i < 0 || i >= len(r.tokens) {
		return nil
	}
	return &r.tokens[i]
}

func (r *Ribbon) Tokens() []Token { return r.tokens }

// Last returns the most recently pushed token, or nil.
func (r *Ribbon) Last() *Token {
	return r.At(len(r.tokens) - 1)
}

func (r *Ribbon) Cursor() int { return r.cursor }

// Furthest is one past the deepest token any attempt consumed or tested,
// rollbacks included. Error reports point there.
func (r *Ribbon) Furthest() int { return r.furthest }

// CanEat reports whether n more tokens are available.
func (r *Ribbon) CanEat(n int) bool {
	return r.cursor+n <= len(r.tokens)
}

// Peek returns the token under the cursor, or a null token at the end.
func (r *Ribbon) Peek() Token {
	return r.PeekAt(0)
}

func (r *Ribbon) PeekAt(k int) Token {
	i := r.cursor + k
	if i < 0 || i >= len(r.tokens) {
		return NullToken()
	}
	return r.tokens[i]
}

// Match reports whether the next tokens have the given kinds, in order,
// without consuming them. Tokens are tested up to the first mismatch and
// count towards Furthest.
func (r *Ribbon) Match(kinds ...Kind) bool {
	for i, kind := range kinds {
		if r.cursor+i >= len(r.tokens) {
			return false
		}
		r.furthest = max(r.furthest, r.cursor+i+1)
		if r.tokens[r.cursor+i].Kind != kind {
			return false
		}
	}
	return true
}

// Eat consumes the token under the cursor.
func (r *Ribbon) Eat() Token {
	tok := r.Peek()
	if r.cursor < len(r.tokens) {
		r.cursor++
		if r.cursor > r.furthest {
			r.furthest = r.cursor
		}
	}
	return tok
}

// EatIf consumes the next token only when it has the given kind.
func (r *Ribbon) EatIf(kind Kind) (Token, bool) {
	if !r.CanEat(1) {
		return NullToken(), false
	}
	if r.tokens[r.cursor].Kind != kind {
		r.furthest = max(r.furthest, r.cursor+1)
		return NullToken(), false
	}
	return r.Eat(), true
}

func (r *Ribbon) StartTransaction() {
	r.transactions = append(r.transactions, r.cursor)
}

// Commit keeps the cursor where it is and closes the innermost transaction.
func (r *Ribbon) Commit() {
	if len(r.transactions) == 0 {
		panic("token: commit without transaction")
	}
	r.transactions = r.transactions[:len(r.transactions)-1]
}

// Rollback restores the cursor saved by the innermost transaction.
func (r *Ribbon) Rollback() {
	if len(r.transactions) == 0 {
		panic("token: rollback without transaction")
	}
	last := len(r.transactions) - 1
	r.cursor = r.transactions[last]
	r.transactions = r.transactions[:last]
}

func (r *Ribbon) TransactionDepth() int { return len(r.transactions) }

// Concat rebuilds the source text the ribbon was made from.
func (r *Ribbon) Concat() string {
	var b strings.Builder
	b.WriteString(r.Prefix.String())
	for _, tok := range r.tokens {
		b.WriteString(tok.String())
	}
	b.WriteString(r.Suffix.String())
	return b.String()
}

// String dumps every token with the cursor and open transactions marked.
func (r *Ribbon) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ribbon: %d tokens, cursor %d\n", len(r.tokens), r.cursor)
	for i, tok := range r.tokens {
		marker := "   "
		if i == r.cursor {
			marker = ">> "
		}
		for _, tx := range r.transactions {
			if tx == i {
				marker = strings.TrimSpace(marker) + "[ "
				break
			}
		}
		fmt.Fprintf(&b, "%s%4d %-20s %q\n", marker, i, tok.Kind, tok.Word)
	}
	if r.cursor >= len(r.tokens) {
		b.WriteString(">> <end>\n")
	}
	return b.String()
}
