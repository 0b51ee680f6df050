// Package compiler turns a program graph into flat code for the vm package.
package compiler

import (
	"context"
	"errors"
	"fmt"

	"nodlang/pkg/ctxlog"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
)

var (
	ErrEmptyGraph         = errors.New("graph has no program")
	ErrUnresolvedCall     = errors.New("unresolved call")
	ErrUnresolvedVariable = errors.New("unresolved variable")
	ErrFlowCycle          = errors.New("code flow loops back")
)

// CompileError reports the node that made compilation fail.
type CompileError struct {
	Node graph.NodeID
	Name string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s %q: %v", e.Node, e.Name, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

type compiler struct {
	g    *graph.Graph
	code *Code
}

// Compile emits the code of the program held by g. The graph is checked
// first: abstract calls and references to undeclared variables cannot run.
func Compile(ctx context.Context, g *graph.Graph) (*Code, error) {
	log := ctxlog.FromContext(ctx).With("component", "compiler")
	if err := validate(g); err != nil {
		log.Warn("graph rejected", "error", err)
		return nil, err
	}

	root := g.Root()
	c := &compiler{g: g, code: &Code{Graph: g, Root: root.ID}}
	if err := c.scope(root.InternalScope(), g.BranchHead(root, 0), root.Name, true); err != nil {
		return nil, err
	}
	log.Info("program compiled", "instructions", c.code.Len())
	return c.code, nil
}

func validate(g *graph.Graph) error {
	if g.IsEmpty() {
		return &CompileError{Err: ErrEmptyGraph}
	}
	for _, n := range g.Nodes() {
		switch {
		case n.Invokable != nil && n.Invokable.IsAbstract():
			return &CompileError{Node: n.ID, Name: n.Invokable.Sig.String(), Err: ErrUnresolvedCall}
		case n.Ref != nil && g.Node(n.Ref.Target) == nil:
			return &CompileError{Node: n.ID, Name: n.Name, Err: ErrUnresolvedVariable}
		}
	}
	return nil
}

// scope compiles the instructions chained from head inside a stack frame
// declaring the variables of sc. The program scope ends with ret before its
// variables are popped, so their values survive the run.
func (c *compiler) scope(sc *graph.Scope, head *graph.Node, owner string, ret bool) error {
	push := c.code.push(PushStackFrame, owner+"'s scope")
	push.Scope = sc
	c.vars(PushVar, sc)

	if err := c.chain(head); err != nil {
		return err
	}
	if ret {
		c.code.push(Ret, "")
	}

	c.vars(PopVar, sc)
	pop := c.code.push(PopStackFrame, owner+"'s scope")
	pop.Scope = sc
	return nil
}

func (c *compiler) vars(op OpCode, sc *graph.Scope) {
	if sc == nil {
		return
	}
	for _, v := range sc.Variables() {
		in := c.code.push(op, v.Name)
		in.Var = v.ID
	}
}

func (c *compiler) chain(head *graph.Node) error {
	seen := make(map[graph.NodeID]bool)
	for n := head; n != nil; n = c.g.Next(n) {
		if seen[n.ID] {
			return &CompileError{Node: n.ID, Name: n.Name, Err: ErrFlowCycle}
		}
		seen[n.ID] = true
		if err := c.instruction(n); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) instruction(n *graph.Node) error {
	switch n.Kind {
	case graph.KindScope:
		return c.scope(n.InternalScope(), c.g.BranchHead(n, 0), n.Name, false)
	case graph.KindIf:
		return c.conditional(n)
	case graph.KindFor:
		return c.forLoop(n)
	case graph.KindWhile:
		return c.whileLoop(n)
	case graph.KindEmptyInstruction, graph.KindEntryPoint:
		return nil
	}
	c.node(n)
	return nil
}

// node evaluates the operands of n, then n itself. Variables are evaluated
// where they are declared, never as operands.
func (c *compiler) node(n *graph.Node) {
	for _, in := range n.Inputs() {
		src, _ := c.g.Source(in)
		if src == nil || src.Variable != nil {
			continue
		}
		c.node(src)
	}
	in := c.code.push(EvalNode, label(n))
	in.Node = n.ID
}

// operand compiles whatever feeds input name of block n and reports
// whether anything was emitted.
func (c *compiler) operand(n *graph.Node, name string) bool {
	in := n.FindSlot(name, graph.Input)
	if in == nil {
		return false
	}
	src, slot := c.g.Source(in)
	switch {
	case src == nil:
		return false
	case src.Variable != nil && slot.Index == src.Variable.RefOut:
		eval := c.code.push(EvalNode, label(src))
		eval.Node = src.ID
	default:
		c.node(src)
	}
	return true
}

// condition leaves rax true when the condition of n holds. An empty
// condition holds.
func (c *compiler) condition(n *graph.Node) {
	if !c.operand(n, "condition") {
		v := lang.BoolValue(true)
		if in := n.FindSlot("condition", graph.Input); in != nil {
			if p := n.PropOf(in); !p.Value.IsNone() {
				v = p.Value
			}
		}
		mov := c.code.push(Mov, "store condition in rax")
		mov.Mov = MovArgs{Dst: RAX, Src: v}
	}
	mov := c.code.push(Mov, "store true in rdx")
	mov.Mov = MovArgs{Dst: RDX, Src: lang.BoolValue(true)}
	cmp := c.code.push(Cmp, "compare condition with rdx")
	cmp.Cmp = CmpArgs{Left: RAX, Right: RDX}
}

// branch compiles the instructions of branch i of n.
func (c *compiler) branch(n *graph.Node, i int) error {
	sc := n.BranchScope(i)
	own := sc != n.InternalScope()
	if own {
		c.vars(PushVar, sc)
	}
	if err := c.chain(c.g.BranchHead(n, i)); err != nil {
		return err
	}
	if own {
		c.vars(PopVar, sc)
	}
	return nil
}

func (c *compiler) conditional(n *graph.Node) error {
	c.vars(PushVar, n.InternalScope())
	c.condition(n)
	skipTrue := c.code.push(Jne, "jump over true branch")

	if err := c.branch(n, 0); err != nil {
		return err
	}
	var skipElse *Instruction
	hasElse := c.g.BranchHead(n, 1) != nil
	if hasElse {
		skipElse = c.code.push(Jmp, "jump after else")
	}
	skipTrue.Jump.Offset = c.code.nextLine() - skipTrue.Line

	if hasElse {
		if err := c.branch(n, 1); err != nil {
			return err
		}
		skipElse.Jump.Offset = c.code.nextLine() - skipElse.Line
	}
	c.vars(PopVar, n.InternalScope())
	return nil
}

func (c *compiler) forLoop(n *graph.Node) error {
	c.vars(PushVar, n.InternalScope())
	c.operand(n, "initialization")

	start := c.code.nextLine()
	c.condition(n)
	exit := c.code.push(Jne, "exit \"for\"")

	if err := c.branch(n, 0); err != nil {
		return err
	}
	c.operand(n, "iteration")
	back := c.code.push(Jmp, "jump back to \"for\"")
	back.Jump.Offset = start - back.Line

	exit.Jump.Offset = c.code.nextLine() - exit.Line
	c.vars(PopVar, n.InternalScope())
	return nil
}

func (c *compiler) whileLoop(n *graph.Node) error {
	c.vars(PushVar, n.InternalScope())
	start := c.code.nextLine()
	c.condition(n)
	exit := c.code.push(Jne, "exit \"while\"")

	if err := c.branch(n, 0); err != nil {
		return err
	}
	back := c.code.push(Jmp, "jump back to \"while\"")
	back.Jump.Offset = start - back.Line

	exit.Jump.Offset = c.code.nextLine() - exit.Line
	c.vars(PopVar, n.InternalScope())
	return nil
}

func label(n *graph.Node) string {
	switch {
	case n.Kind == graph.KindLiteral:
		return n.Value().Value.String()
	case n.Invokable != nil:
		return n.Invokable.Sig.Identifier
	}
	return n.Name
}
