package nodlang

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

// ParseError reports source the parser could not consume. Token is the
// deepest token any grammar alternative reached.
type ParseError struct {
	Token   token.Token
	Msg     string
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s\n  |> %s", e.Token.Line, e.Msg, e.Snippet)
}

// Parser builds a graph from Nodlang source.
//
// Grammar:
//
//	program      = codeBlock
//	codeBlock    = atomicBlock*
//	atomicBlock  = scope | instruction | if | for | while
//	scope        = "{" codeBlock "}"
//	instruction  = expression (";" | &")") | ";"
//	if           = "if" "(" expression? ")" scope ("else" (scope | if))?
//	for          = "for" "(" expression? ";" expression? ";" expression? ")" scope
//	while        = "while" "(" expression? ")" scope
//	expression   = (paren | unary | call | declaration | atomic) (binaryOp expression)*
//	call         = (IDENTIFIER | "operator" OPERATOR) "(" (expression ","?)* ")"
//	declaration  = TYPE IDENTIFIER ("=" expression)?
//
// Every parse function either consumes its construct and returns true, or
// restores the token cursor, destroys the nodes it created and returns
// false. A Parser is not safe for concurrent use.
type Parser struct {
	lang   *lang.Language
	strict bool
	log    *slog.Logger

	ctx    context.Context
	src    string
	ribbon *token.Ribbon
	graph  *graph.Graph
	scopes []*graph.Scope

	// created journals the nodes created since parsing began; marks holds
	// one journal length per open transaction.
	created []graph.NodeID
	marks   []int
}

type Option func(*Parser)

// WithStrict makes unresolved identifiers, unresolved calls and duplicate
// declarations parse failures instead of abstract nodes.
func WithStrict(strict bool) Option {
	return func(p *Parser) { p.strict = strict }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.log = l }
}

func New(l *lang.Language, opts ...Option) *Parser {
	p := &Parser{
		lang:   l,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ribbon: token.NewRibbon(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "parser")
	return p
}

// Ribbon returns the tokens of the last parsed source.
func (p *Parser) Ribbon() *token.Ribbon { return p.ribbon }

func (p *Parser) Strict() bool { return p.strict }

// Parse replaces the content of g with the program in src. On failure g is
// left cleared.
func (p *Parser) Parse(ctx context.Context, src string, g *graph.Graph) error {
	p.ctx = ctx
	p.src = src
	p.graph = g
	p.scopes = p.scopes[:0]
	p.created = p.created[:0]
	p.marks = p.marks[:0]

	g.Clear()
	if err := Tokenize(p.lang, src, p.ribbon); err != nil {
		p.log.Warn("tokenize failed", "error", err)
		return err
	}
	if err := p.parseProgram(); err != nil {
		g.Clear()
		p.log.Warn("parse failed", "error", err)
		return err
	}
	p.log.Debug("parsed", "tokens", p.ribbon.Len(), "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return nil
}

func (p *Parser) fmtError(tok token.Token, format string, args ...any) error {
	return &ParseError{
		Token:   tok,
		Msg:     fmt.Sprintf(format, args...),
		Snippet: lineAt(p.src, tok.Line),
	}
}

func (p *Parser) begin() {
	p.ribbon.StartTransaction()
	p.marks = append(p.marks, len(p.created))
}

func (p *Parser) commit() {
	p.ribbon.Commit()
	p.marks = p.marks[:len(p.marks)-1]
}

// rollback restores the cursor and destroys, newest first, the nodes the
// transaction created.
func (p *Parser) rollback() {
	p.ribbon.Rollback()
	mark := p.marks[len(p.marks)-1]
	p.marks = p.marks[:len(p.marks)-1]
	for i := len(p.created) - 1; i >= mark; i-- {
		id := p.created[i]
		if p.graph.Node(id) == nil {
			continue
		}
		if err := p.graph.Destroy(id); err != nil {
			p.log.Error("rollback", "id", id, "error", err)
		}
	}
	p.created = p.created[:mark]
}

func (p *Parser) track(n *graph.Node) *graph.Node {
	p.created = append(p.created, n.ID)
	return n
}

func (p *Parser) scope() *graph.Scope { return p.scopes[len(p.scopes)-1] }

func (p *Parser) pushScope(s *graph.Scope) { p.scopes = append(p.scopes, s) }

func (p *Parser) popScope() { p.scopes = p.scopes[:len(p.scopes)-1] }

// operand is the output an expression evaluates through. tok is the
// identifier the source used when the output is a variable reference.
type operand struct {
	out graph.SlotRef
	tok token.Token
}

func (p *Parser) operandType(op operand) lang.Type {
	n, s, err := p.graph.Slot(op.out)
	if err != nil {
		return lang.Any
	}
	return n.PropOf(s).Type
}

// connectOperand feeds op into head, merging literals where possible.
func (p *Parser) connectOperand(op operand, head graph.SlotRef) error {
	if _, err := p.graph.ConnectOrMerge(op.out, head); err != nil {
		return err
	}
	if op.tok.IsNull() {
		return nil
	}
	hn, hs, err := p.graph.Slot(head)
	if err != nil {
		return err
	}
	if hn.Variable != nil {
		hn.Variable.InitRef = op.tok
	} else {
		hn.PropOf(hs).Token = op.tok
	}
	return nil
}

func (p *Parser) parseProgram() error {
	root, err := p.graph.CreateRoot()
	if err != nil {
		return err
	}
	p.pushScope(root.InternalScope())

	if p.ribbon.Len() > 0 {
		p.parseCodeBlock(root.SlotRef(root.BranchSlot(0).Index))
	}
	if err := p.ctx.Err(); err != nil {
		return err
	}
	root.InternalScope().Begin = p.ribbon.Prefix
	root.InternalScope().End = p.ribbon.Suffix

	if p.ribbon.CanEat(1) {
		deepest := p.ribbon.Furthest() - 1
		if deepest < p.ribbon.Cursor() {
			deepest = p.ribbon.Cursor()
		}
		tok := *p.ribbon.At(deepest)
		return p.fmtError(tok, "unexpected %s %q", tok.Kind, tok.Word)
	}
	return nil
}

// parseCodeBlock parses consecutive instructions and blocks, chaining each
// after flow. It returns the last one.
func (p *Parser) parseCodeBlock(flow graph.SlotRef) (*graph.Node, bool) {
	p.begin()
	var last *graph.Node
	for p.ribbon.CanEat(1) && p.ctx.Err() == nil {
		n, ok := p.parseAtomicCodeBlock(flow)
		if !ok {
			break
		}
		last = n
		flow = n.SlotRef(graph.SlotFlowOut)
	}
	if last == nil {
		p.rollback()
		return nil, false
	}
	p.commit()
	return last, true
}

func (p *Parser) parseAtomicCodeBlock(flow graph.SlotRef) (*graph.Node, bool) {
	if n, ok := p.parseScope(flow); ok {
		return n, true
	}
	if n, ok := p.parseInstruction(flow); ok {
		return n, true
	}
	if n, ok := p.parseConditionalStructure(flow); ok {
		return n, true
	}
	if n, ok := p.parseForLoop(flow); ok {
		return n, true
	}
	if n, ok := p.parseWhileLoop(flow); ok {
		return n, true
	}
	return nil, false
}

// chain appends n to the code flow at flow.
func (p *Parser) chain(flow graph.SlotRef, n *graph.Node) bool {
	if _, err := p.graph.Connect(flow, n.SlotRef(graph.SlotFlowIn), graph.SideEffects); err != nil {
		p.log.Error("chain instruction", "node", n, "error", err)
		return false
	}
	return true
}

func (p *Parser) parseScope(flow graph.SlotRef) (*graph.Node, bool) {
	p.begin()
	open, ok := p.ribbon.EatIf(token.ScopeBegin)
	if !ok {
		p.rollback()
		return nil, false
	}
	n := p.track(p.graph.CreateScope(p.scope()))
	if !p.chain(flow, n) {
		p.rollback()
		return nil, false
	}

	p.pushScope(n.InternalScope())
	p.parseCodeBlock(n.SlotRef(n.BranchSlot(0).Index))
	p.popScope()

	closing, ok := p.ribbon.EatIf(token.ScopeEnd)
	if !ok {
		p.log.Debug("rollback scope, '}' expected", "at", p.ribbon.Peek().Describe())
		p.rollback()
		return nil, false
	}
	n.InternalScope().Begin = open
	n.InternalScope().End = closing
	p.commit()
	return n, true
}

// parseInstruction parses an expression statement. A lone ";" gives an
// empty instruction.
func (p *Parser) parseInstruction(flow graph.SlotRef) (*graph.Node, bool) {
	p.begin()

	if semi, ok := p.ribbon.EatIf(token.EndOfInstruction); ok {
		n := p.track(p.graph.CreateEmptyInstruction(p.scope()))
		n.Suffix = semi
		if !p.chain(flow, n) {
			p.rollback()
			return nil, false
		}
		p.commit()
		return n, true
	}

	expr, ok := p.parseExpression(0, nil)
	if !ok {
		p.rollback()
		return nil, false
	}
	n := p.graph.Node(expr.out.Node)
	if n.Variable != nil && expr.out.Index == n.Variable.RefOut {
		ref, err := p.graph.CreateVariableRef(n.Name, n, p.scope())
		if err != nil {
			p.log.Error("variable reference", "variable", n, "error", err)
			p.rollback()
			return nil, false
		}
		p.track(ref)
		ref.Ref.Identifier = expr.tok
		n = ref
	}

	if semi, ok := p.ribbon.EatIf(token.EndOfInstruction); ok {
		n.Suffix = semi
	} else if p.ribbon.CanEat(1) && p.ribbon.Peek().Kind != token.ParenClose {
		p.log.Debug("rollback instruction, ';' expected", "at", p.ribbon.Peek().Describe())
		p.rollback()
		return nil, false
	}

	if !p.chain(flow, n) {
		p.rollback()
		return nil, false
	}
	p.commit()
	return n, true
}

// parseHeaderExpression parses an optional expression of a block header and
// connects it to input.
func (p *Parser) parseHeaderExpression(n *graph.Node, input string) bool {
	switch p.ribbon.Peek().Kind {
	case token.ParenClose, token.EndOfInstruction:
		return true
	}
	expr, ok := p.parseExpression(0, nil)
	if !ok {
		return false
	}
	in := n.FindSlot(input, graph.Input)
	if err := p.connectOperand(expr, n.SlotRef(in.Index)); err != nil {
		p.log.Error("connect "+input, "node", n, "error", err)
		return false
	}
	return true
}

func (p *Parser) parseConditionalStructure(flow graph.SlotRef) (*graph.Node, bool) {
	p.begin()
	kw, ok := p.ribbon.EatIf(token.KeywordIf)
	if !ok {
		p.rollback()
		return nil, false
	}
	n := p.track(p.graph.CreateIf(p.scope()))
	n.Block.Keyword = kw
	if !p.chain(flow, n) {
		p.rollback()
		return nil, false
	}

	p.pushScope(n.InternalScope())
	ok = p.parseConditionalBody(n)
	p.popScope()
	if !ok {
		p.log.Debug("rollback if", "at", p.ribbon.Peek().Describe())
		p.rollback()
		return nil, false
	}
	p.commit()
	return n, true
}

func (p *Parser) parseConditionalBody(n *graph.Node) bool {
	var ok bool
	if n.Block.ParenOpen, ok = p.ribbon.EatIf(token.ParenOpen); !ok {
		return false
	}
	if !p.parseHeaderExpression(n, "condition") {
		return false
	}
	if n.Block.ParenClose, ok = p.ribbon.EatIf(token.ParenClose); !ok {
		return false
	}
	if _, ok := p.parseScope(n.SlotRef(n.BranchSlot(0).Index)); !ok {
		return false
	}

	elseTok, ok := p.ribbon.EatIf(token.KeywordElse)
	if !ok {
		return true
	}
	n.Block.Else = elseTok
	branch := n.SlotRef(n.BranchSlot(1).Index)
	if _, ok := p.parseScope(branch); ok {
		return true
	}
	_, ok = p.parseConditionalStructure(branch)
	return ok
}

func (p *Parser) parseForLoop(flow graph.SlotRef) (*graph.Node, bool) {
	p.begin()
	kw, ok := p.ribbon.EatIf(token.KeywordFor)
	if !ok {
		p.rollback()
		return nil, false
	}
	n := p.track(p.graph.CreateForLoop(p.scope()))
	n.Block.Keyword = kw
	if !p.chain(flow, n) {
		p.rollback()
		return nil, false
	}

	p.pushScope(n.InternalScope())
	ok = p.parseForHeader(n) && p.parseLoopBody(n)
	p.popScope()
	if !ok {
		p.log.Debug("rollback for", "at", p.ribbon.Peek().Describe())
		p.rollback()
		return nil, false
	}
	p.commit()
	return n, true
}

func (p *Parser) parseForHeader(n *graph.Node) bool {
	var ok bool
	if n.Block.ParenOpen, ok = p.ribbon.EatIf(token.ParenOpen); !ok {
		return false
	}
	for _, input := range []string{"initialization", "condition"} {
		if !p.parseHeaderExpression(n, input) {
			return false
		}
		sep, ok := p.ribbon.EatIf(token.EndOfInstruction)
		if !ok {
			return false
		}
		n.Block.Separators = append(n.Block.Separators, sep)
	}
	if !p.parseHeaderExpression(n, "iteration") {
		return false
	}
	n.Block.ParenClose, ok = p.ribbon.EatIf(token.ParenClose)
	return ok
}

func (p *Parser) parseLoopBody(n *graph.Node) bool {
	_, ok := p.parseScope(n.SlotRef(n.BranchSlot(0).Index))
	return ok
}

func (p *Parser) parseWhileLoop(flow graph.SlotRef) (*graph.Node, bool) {
	p.begin()
	kw, ok := p.ribbon.EatIf(token.KeywordWhile)
	if !ok {
		p.rollback()
		return nil, false
	}
	n := p.track(p.graph.CreateWhileLoop(p.scope()))
	n.Block.Keyword = kw
	if !p.chain(flow, n) {
		p.rollback()
		return nil, false
	}

	p.pushScope(n.InternalScope())
	ok = p.parseWhileHeader(n) && p.parseLoopBody(n)
	p.popScope()
	if !ok {
		p.log.Debug("rollback while", "at", p.ribbon.Peek().Describe())
		p.rollback()
		return nil, false
	}
	p.commit()
	return n, true
}

func (p *Parser) parseWhileHeader(n *graph.Node) bool {
	var ok bool
	if n.Block.ParenOpen, ok = p.ribbon.EatIf(token.ParenOpen); !ok {
		return false
	}
	if !p.parseHeaderExpression(n, "condition") {
		return false
	}
	n.Block.ParenClose, ok = p.ribbon.EatIf(token.ParenClose)
	return ok
}

// parseExpression parses an operand, or takes left, then folds the binary
// operators that bind tighter than prec.
func (p *Parser) parseExpression(prec int, left *operand) (operand, bool) {
	var lhs operand
	if left != nil {
		lhs = *left
	} else {
		var ok bool
		if lhs, ok = p.parseParenthesisExpression(); !ok {
			if lhs, ok = p.parseUnaryOperatorExpression(); !ok {
				if lhs, ok = p.parseFunctionCall(); !ok {
					if lhs, ok = p.parseVariableDeclaration(); !ok {
						if lhs, ok = p.parseAtomicExpression(); !ok {
							return operand{}, false
						}
					}
				}
			}
		}
	}

	if !p.ribbon.CanEat(1) {
		return lhs, true
	}
	if result, ok := p.parseBinaryOperatorExpression(prec, lhs); ok {
		return p.parseExpression(prec, &result)
	}
	return lhs, true
}

// parseBinaryOperatorExpression parses "<op> expression" after left. It
// fails when the operator does not bind tighter than prec, which makes
// operators of equal precedence associate to the left. Precedence 0 is the
// top level, where assignments are accepted.
func (p *Parser) parseBinaryOperatorExpression(prec int, left operand) (operand, bool) {
	if !p.ribbon.CanEat(2) {
		return operand{}, false
	}
	p.begin()
	opTok := p.ribbon.Eat()
	next := p.ribbon.Peek()
	if opTok.Kind != token.Operator {
		p.rollback()
		return operand{}, false
	}
	if next.Kind == token.Operator && p.lang.FindOperator(next.Word, lang.Unary) == nil {
		p.rollback()
		return operand{}, false
	}
	op := p.lang.FindOperator(opTok.Word, lang.Binary)
	if op == nil {
		p.log.Debug("rollback binary operator, unknown operator", "token", opTok.Describe())
		p.rollback()
		return operand{}, false
	}
	if op.Precedence <= prec && prec > 0 {
		p.rollback()
		return operand{}, false
	}

	right, ok := p.parseExpression(op.Precedence, nil)
	if !ok {
		p.rollback()
		return operand{}, false
	}

	sig := lang.NewSignature(op.Identifier, lang.Any)
	sig.PushArg(p.operandType(left))
	sig.PushArg(p.operandType(right))
	n, ok := p.createInvokable(graph.KindOperator, sig, opTok)
	if !ok {
		p.rollback()
		return operand{}, false
	}
	if !p.connectArgs(n, left, right) {
		p.rollback()
		return operand{}, false
	}
	p.commit()
	out, _ := n.ValueOut()
	return operand{out: out}, true
}

func (p *Parser) parseUnaryOperatorExpression() (operand, bool) {
	if !p.ribbon.CanEat(2) {
		return operand{}, false
	}
	p.begin()
	opTok := p.ribbon.Eat()
	if opTok.Kind != token.Operator {
		p.rollback()
		return operand{}, false
	}
	op := p.lang.FindOperator(opTok.Word, lang.Unary)
	if op == nil {
		p.rollback()
		return operand{}, false
	}

	value, ok := p.parseFunctionCall()
	if !ok {
		if value, ok = p.parseAtomicExpression(); !ok {
			if value, ok = p.parseParenthesisExpression(); !ok {
				p.rollback()
				return operand{}, false
			}
		}
	}

	sig := lang.NewSignature(op.Identifier, lang.Any)
	sig.PushArg(p.operandType(value))
	n, ok := p.createInvokable(graph.KindOperator, sig, opTok)
	if !ok || !p.connectArgs(n, value) {
		p.rollback()
		return operand{}, false
	}
	p.commit()
	out, _ := n.ValueOut()
	return operand{out: out}, true
}

// createInvokable creates a call to the implementation of sig, or an
// abstract call when the language has none and the parser is permissive.
func (p *Parser) createInvokable(kind graph.Kind, sig *lang.Signature, ident token.Token) (*graph.Node, bool) {
	var fn *lang.Function
	if kind == graph.KindOperator {
		fn = p.lang.FindOperatorFunction(sig)
	} else {
		fn = p.lang.FindFunction(sig)
	}
	if fn == nil {
		if p.strict {
			p.log.Warn("unresolved call", "signature", sig.String(), "line", ident.Line)
			return nil, false
		}
		p.log.Debug("abstract call", "signature", sig.String(), "line", ident.Line)
	}

	var n *graph.Node
	if kind == graph.KindOperator {
		n = p.graph.CreateOperator(sig, fn, p.scope())
	} else {
		n = p.graph.CreateFunction(sig, fn, p.scope())
	}
	p.track(n)
	n.Invokable.Identifier = ident
	return n, true
}

func (p *Parser) connectArgs(n *graph.Node, args ...operand) bool {
	for i, arg := range args {
		s := n.ArgSlot(i)
		if s == nil {
			p.log.Error("missing argument slot", "node", n, "arg", i)
			return false
		}
		if err := p.connectOperand(arg, n.SlotRef(s.Index)); err != nil {
			p.log.Debug("connect argument", "node", n, "arg", i, "error", err)
			return false
		}
	}
	return true
}

func (p *Parser) parseParenthesisExpression() (operand, bool) {
	if !p.ribbon.CanEat(1) {
		return operand{}, false
	}
	p.begin()
	open, ok := p.ribbon.EatIf(token.ParenOpen)
	if !ok {
		p.rollback()
		return operand{}, false
	}
	result, ok := p.parseExpression(0, nil)
	if !ok {
		p.rollback()
		return operand{}, false
	}
	closing, ok := p.ribbon.EatIf(token.ParenClose)
	if !ok {
		p.log.Debug("rollback parenthesis, ')' expected", "at", p.ribbon.Peek().Describe())
		p.rollback()
		return operand{}, false
	}
	result = p.wrap(result, open, closing)
	p.commit()
	return result, true
}

// wrap keeps the parentheses around an expression for serialization.
// Parentheses around single words are folded into the word's token.
func (p *Parser) wrap(op operand, open, closing token.Token) operand {
	fold := func(t *token.Token) {
		t.Prefix = open.String() + t.Prefix
		t.Suffix += closing.String()
	}
	n := p.graph.Node(op.out.Node)
	switch {
	case !op.tok.IsNull():
		fold(&op.tok)
	case n.Kind == graph.KindLiteral:
		fold(&n.Value().Token)
	case n.Ref != nil:
		fold(&n.Ref.Identifier)
	default:
		n.Parens = append(n.Parens, graph.Paren{Open: open, Close: closing})
	}
	return op
}

func (p *Parser) parseFunctionCall() (operand, bool) {
	if !p.ribbon.CanEat(3) {
		return operand{}, false
	}
	kind := graph.KindFunction
	keyword := token.NullToken()
	switch {
	case p.ribbon.Match(token.Identifier, token.ParenOpen):
	case p.ribbon.Match(token.KeywordOperator, token.Operator, token.ParenOpen):
		kind = graph.KindOperator
	default:
		return operand{}, false
	}

	p.begin()
	if kind == graph.KindOperator {
		keyword = p.ribbon.Eat()
	}
	ident, open := p.ribbon.Eat(), p.ribbon.Eat()

	var args []operand
	var seps []token.Token
	for p.ribbon.CanEat(1) && p.ribbon.Peek().Kind != token.ParenClose {
		arg, ok := p.parseExpression(0, nil)
		if !ok {
			break
		}
		args = append(args, arg)
		if sep, ok := p.ribbon.EatIf(token.ListSeparator); ok {
			seps = append(seps, sep)
		}
	}
	closing, ok := p.ribbon.EatIf(token.ParenClose)
	if !ok {
		p.log.Debug("rollback call, ')' expected", "function", ident.Word, "at", p.ribbon.Peek().Describe())
		p.rollback()
		return operand{}, false
	}

	sig := lang.NewSignature(ident.Word, lang.Any)
	for _, arg := range args {
		sig.PushArg(p.operandType(arg))
	}
	if kind == graph.KindOperator && p.lang.FindOperator(ident.Word, lang.Arity(len(args))) == nil {
		p.log.Debug("rollback call, no such operator", "operator", ident.Word, "arity", len(args))
		p.rollback()
		return operand{}, false
	}
	n, ok := p.createInvokable(kind, sig, ident)
	if !ok || !p.connectArgs(n, args...) {
		p.rollback()
		return operand{}, false
	}
	n.Invokable.Keyword = keyword
	n.Invokable.ParenOpen = open
	n.Invokable.ParenClose = closing
	n.Invokable.Separators = seps
	p.commit()
	out, _ := n.ValueOut()
	return operand{out: out}, true
}

func (p *Parser) parseVariableDeclaration() (operand, bool) {
	if !p.ribbon.CanEat(2) {
		return operand{}, false
	}
	if !p.ribbon.Peek().Kind.IsTypeKeyword() {
		return operand{}, false
	}
	p.begin()
	typeTok, ident := p.ribbon.Eat(), p.ribbon.Eat()
	if ident.Kind != token.Identifier {
		p.rollback()
		return operand{}, false
	}
	t, _ := p.lang.TypeOf(typeTok.Kind)

	if p.scope().FindVariable(ident.Word, false) != nil {
		if p.strict {
			p.log.Warn("variable already declared", "name", ident.Word, "line", ident.Line)
			p.rollback()
			return operand{}, false
		}
		p.log.Warn("variable already declared, declaring an any placeholder", "name", ident.Word, "line", ident.Line)
		t = lang.Any
	}

	v := p.track(p.graph.CreateVariable(t, ident.Word, p.scope()))
	v.Variable.TypeToken = typeTok
	v.Variable.Identifier = ident

	if assign := p.ribbon.Peek(); assign.Kind == token.Operator && assign.Word == "=" {
		p.ribbon.Eat()
		init, ok := p.parseExpression(0, nil)
		if !ok {
			p.log.Debug("rollback declaration, initial value expected", "name", ident.Word)
			p.rollback()
			return operand{}, false
		}
		p.coerceLiteral(init, t)
		if err := p.connectOperand(init, v.SlotRef(v.Variable.In)); err != nil {
			p.log.Debug("rollback declaration", "name", ident.Word, "error", err)
			p.rollback()
			return operand{}, false
		}
		v.Variable.Assign = assign
	}
	p.commit()
	return operand{out: v.SlotRef(v.Variable.Out)}, true
}

// coerceLiteral retypes an int literal that initializes an i16.
func (p *Parser) coerceLiteral(op operand, t lang.Type) {
	n := p.graph.Node(op.out.Node)
	if t != lang.I16 || n == nil || n.Kind != graph.KindLiteral {
		return
	}
	if v := n.Value(); v.Type == lang.Int {
		v.Type = lang.I16
		v.Set(v.Value)
	}
}

func (p *Parser) parseAtomicExpression() (operand, bool) {
	if !p.ribbon.CanEat(1) {
		return operand{}, false
	}
	p.begin()
	tok := p.ribbon.Eat()

	switch {
	case tok.Kind == token.Identifier:
		if v := p.scope().FindVariable(tok.Word, true); v != nil {
			p.commit()
			return operand{out: v.SlotRef(v.Variable.RefOut), tok: tok}, true
		}
		if p.strict {
			p.log.Warn("undeclared identifier", "name", tok.Word, "line", tok.Line)
			p.rollback()
			return operand{}, false
		}
		ref, err := p.graph.CreateVariableRef(tok.Word, nil, p.scope())
		if err != nil {
			p.rollback()
			return operand{}, false
		}
		p.track(ref)
		ref.Ref.Identifier = tok
		p.commit()
		out, _ := ref.ValueOut()
		return operand{out: out}, true

	case tok.Kind.IsLiteral():
		t, _ := p.lang.TypeOf(tok.Kind)
		lit := p.track(p.graph.CreateLiteral(t, p.scope()))
		prop := lit.Value()
		prop.Token = tok
		prop.Set(literalValue(t, tok.Word))
		p.commit()
		out, _ := lit.ValueOut()
		return operand{out: out}, true
	}

	p.rollback()
	return operand{}, false
}

func literalValue(t lang.Type, word string) lang.Value {
	switch t {
	case lang.Bool:
		return lang.BoolValue(ParseBoolOr(word, false))
	case lang.Int:
		return lang.IntValue(ParseIntOr(word, 0))
	case lang.Double:
		return lang.DoubleValue(ParseDoubleOr(word, 0))
	case lang.String:
		if s, err := strconv.Unquote(word); err == nil {
			return lang.StringValue(s)
		}
		return lang.StringValue(strings.Trim(word, `"`))
	}
	return lang.Value{}
}

func ParseBoolOr(s string, def bool) bool {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return def
}

func ParseIntOr(s string, def int64) int64 {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return def
}

func ParseDoubleOr(s string, def float64) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}
