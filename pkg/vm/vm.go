// Package vm executes code produced by the compiler package against the
// graph it was compiled from.
package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"nodlang/pkg/compiler"
	"nodlang/pkg/ctxlog"
	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
)

var (
	ErrProgramRunning    = errors.New("a program is running")
	ErrProgramLoaded     = errors.New("a program is already loaded")
	ErrEmptyProgram      = errors.New("program has no instruction")
	ErrNoProgram         = errors.New("no program loaded")
	ErrNotRunning        = errors.New("program is not running")
	ErrUnknownRegister   = errors.New("unknown register")
	ErrNoNextInstruction = errors.New("no instruction left")
	ErrStepLimit         = errors.New("step limit reached")
	ErrStaleNode         = errors.New("instruction refers to a destroyed node")
)

// variable is the run state of a declared variable. initial is the value
// the graph held when the program was loaded.
type variable struct {
	initial lang.Value
	defined bool
}

// VM runs one program at a time. It is not safe for concurrent use.
type VM struct {
	log      *slog.Logger
	maxSteps int

	rax, rdx lang.Value
	eip      int

	code      *compiler.Code
	running   bool
	debugging bool
	nextNode  graph.NodeID
	lastStep  *compiler.Instruction
	vars      map[graph.NodeID]*variable
	visited   map[graph.NodeID]bool
}

type Option func(*VM)

// WithMaxSteps bounds the instructions RunProgram executes. Zero means no
// bound.
func WithMaxSteps(n int) Option {
	return func(v *VM) { v.maxSteps = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *VM) { v.log = l }
}

func New(opts ...Option) *VM {
	v := &VM{
		log:     ctxlog.Discard(),
		vars:    make(map[graph.NodeID]*variable),
		visited: make(map[graph.NodeID]bool),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With("component", "vm")
	return v
}

func (v *VM) clearRegisters() {
	v.rax, v.rdx = lang.Value{}, lang.Value{}
	v.eip = 0
}

// LoadProgram makes code the current program. The previous one must have
// been stopped and released.
func (v *VM) LoadProgram(code *compiler.Code) error {
	if v.running {
		return ErrProgramRunning
	}
	if v.code != nil {
		return ErrProgramLoaded
	}
	if code == nil || code.Len() == 0 {
		return ErrEmptyProgram
	}
	v.clearRegisters()
	v.code = code
	v.vars = make(map[graph.NodeID]*variable)
	v.visited = make(map[graph.NodeID]bool)
	for _, in := range code.Instructions {
		if in.Op != compiler.PushVar {
			continue
		}
		if n := code.Graph.Node(in.Var); n != nil {
			v.vars[in.Var] = &variable{initial: n.Value().Value}
		}
	}
	v.log.Info("program loaded", "instructions", code.Len())
	for _, in := range code.Instructions {
		v.log.Debug(in.String())
	}
	return nil
}

// ReleaseProgram stops and unloads the current program, and gives variables
// back the value they had when it was loaded.
func (v *VM) ReleaseProgram() *compiler.Code {
	if v.running {
		_ = v.StopProgram()
	}
	code := v.code
	if code != nil {
		for id, st := range v.vars {
			if n := code.Graph.Node(id); n != nil {
				n.Value().Value = st.initial
			}
		}
	}
	v.code = nil
	v.lastStep = nil
	v.clearRegisters()
	return code
}

// RunProgram executes the loaded program until ret or until no instruction
// is left. ctx is checked between instructions.
func (v *VM) RunProgram(ctx context.Context) error {
	if v.code == nil {
		return ErrNoProgram
	}
	if v.running {
		return ErrProgramRunning
	}
	v.running = true
	v.clearRegisters()
	v.log.Info("running")

	steps := 0
	for v.IsThereANextInstr() {
		if err := ctx.Err(); err != nil {
			_ = v.StopProgram()
			return err
		}
		if v.maxSteps > 0 && steps >= v.maxSteps {
			_ = v.StopProgram()
			return fmt.Errorf("%w (%d)", ErrStepLimit, v.maxSteps)
		}
		if err := v.step(); err != nil {
			_ = v.StopProgram()
			return err
		}
		steps++
	}
	return v.StopProgram()
}

// DebugProgram starts the loaded program without executing anything.
// StepOver then advances it node by node.
func (v *VM) DebugProgram() error {
	if v.code == nil {
		return ErrNoProgram
	}
	if v.running {
		return ErrProgramRunning
	}
	v.running = true
	v.debugging = true
	v.clearRegisters()
	v.nextNode = v.code.Root
	v.lastStep = nil
	v.log.Info("debugging")
	return nil
}

// StepOver executes instructions until the next one evaluates a node other
// than the one the previous call stopped on. It reports whether the
// program can go on; when it cannot, the program is stopped.
func (v *VM) StepOver() (bool, error) {
	if !v.running {
		return false, ErrNotRunning
	}
	mustBreak := func() bool {
		next, _ := v.NextInstr()
		return next.Op == compiler.EvalNode && next != v.lastStep
	}
	for v.IsThereANextInstr() && !mustBreak() {
		if err := v.step(); err != nil {
			_ = v.StopProgram()
			return false, err
		}
	}

	if !v.IsThereANextInstr() {
		_ = v.StopProgram()
		v.lastStep = nil
		return false, nil
	}
	next, _ := v.NextInstr()
	v.lastStep = next
	v.nextNode = next.Node
	return true, nil
}

func (v *VM) StopProgram() error {
	if !v.running {
		return ErrNotRunning
	}
	v.running = false
	v.debugging = false
	v.nextNode = graph.NodeID{}
	v.log.Info("stopped", "eip", v.eip)
	return nil
}

// ReadRegister returns the content of r. eip reads as an int.
func (v *VM) ReadRegister(r compiler.Register) (lang.Value, error) {
	switch r {
	case compiler.RAX:
		return v.rax, nil
	case compiler.RDX:
		return v.rdx, nil
	case compiler.EIP:
		return lang.IntValue(int64(v.eip)), nil
	}
	return lang.Value{}, fmt.Errorf("%w %s", ErrUnknownRegister, r)
}

func (v *VM) register(r compiler.Register) (*lang.Value, error) {
	switch r {
	case compiler.RAX:
		return &v.rax, nil
	case compiler.RDX:
		return &v.rdx, nil
	}
	return nil, fmt.Errorf("%w %s", ErrUnknownRegister, r)
}

// NextInstr returns the instruction eip points to.
func (v *VM) NextInstr() (*compiler.Instruction, bool) {
	if v.code == nil {
		return nil, false
	}
	in := v.code.At(v.eip)
	return in, in != nil
}

func (v *VM) IsThereANextInstr() bool {
	_, ok := v.NextInstr()
	return ok
}

func (v *VM) IsRunning() bool   { return v.running }
func (v *VM) IsDebugging() bool { return v.debugging }

// NextNode is the node the next step evaluates while debugging.
func (v *VM) NextNode() graph.NodeID { return v.nextNode }

// LastResult is the value of the last evaluated node.
func (v *VM) LastResult() lang.Value { return v.rax }

// Code returns the loaded program, whose String method is the assembly
// listing.
func (v *VM) Code() *compiler.Code { return v.code }

// WasVisited reports whether the running program evaluated node id.
func (v *VM) WasVisited(id graph.NodeID) bool { return v.visited[id] }

func (v *VM) step() error {
	in, ok := v.NextInstr()
	if !ok {
		return ErrNoNextInstruction
	}
	v.log.Debug("step", "instr", in.String())

	switch in.Op {
	case compiler.Mov:
		dst, err := v.register(in.Mov.Dst)
		if err != nil {
			return err
		}
		*dst = in.Mov.Src
		v.eip++

	case compiler.Cmp:
		left, err := v.register(in.Cmp.Left)
		if err != nil {
			return err
		}
		right, err := v.register(in.Cmp.Right)
		if err != nil {
			return err
		}
		v.rax = lang.BoolValue(left.AsBool() == right.AsBool())
		v.eip++

	case compiler.EvalNode:
		n := v.code.Graph.Node(in.Node)
		if n == nil {
			return fmt.Errorf("line %d: %w", in.Line, ErrStaleNode)
		}
		if err := v.eval(n); err != nil {
			return fmt.Errorf("line %d: %w", in.Line, err)
		}
		v.eip++

	case compiler.Jmp:
		v.eip += in.Jump.Offset

	case compiler.Jne:
		if v.rax.AsBool() {
			v.eip++
		} else {
			v.eip += in.Jump.Offset
		}

	case compiler.PushVar, compiler.PopVar:
		n := v.code.Graph.Node(in.Var)
		if n == nil {
			return fmt.Errorf("line %d: %w", in.Line, ErrStaleNode)
		}
		st := v.variable(n)
		st.defined = false
		n.Value().Value = st.initial
		v.eip++

	case compiler.PushStackFrame, compiler.PopStackFrame:
		v.eip++

	case compiler.Ret:
		v.eip = v.code.Len()

	default:
		return fmt.Errorf("line %d: unknown op code %s", in.Line, in.Op)
	}
	return nil
}

func (v *VM) variable(n *graph.Node) *variable {
	st, ok := v.vars[n.ID]
	if !ok {
		st = &variable{initial: n.Value().Value}
		v.vars[n.ID] = st
	}
	return st
}
