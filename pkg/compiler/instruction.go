package compiler

import (
	"fmt"
	"strings"

	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
)

type OpCode uint8

const (
	Mov            OpCode = iota // copy an immediate into a register
	Cmp                          // compare two registers, result in rax
	EvalNode                     // evaluate a node, result in rax
	Jmp                          // unconditional relative jump
	Jne                          // relative jump when rax is false
	PushVar                      // declare a variable
	PopVar                       // forget a variable
	PushStackFrame               // enter a scope
	PopStackFrame                // leave a scope
	Ret                          // end of program
)

var opNames = [...]string{
	Mov:            "mov",
	Cmp:            "cmp",
	EvalNode:       "eval_node",
	Jmp:            "jmp",
	Jne:            "jne",
	PushVar:        "push_var",
	PopVar:         "pop_var",
	PushStackFrame: "push_stack_frame",
	PopStackFrame:  "pop_stack_frame",
	Ret:            "ret",
}

func (op OpCode) String() string {
	if int(op) >= len(opNames) {
		return fmt.Sprintf("OpCode(%d)", op)
	}
	return opNames[op]
}

// Register names a VM register.
type Register uint8

const (
	RAX Register = iota // last result and comparisons
	RDX                 // scratch
	EIP                 // instruction pointer
)

func (r Register) String() string {
	switch r {
	case RAX:
		return "rax"
	case RDX:
		return "rdx"
	case EIP:
		return "eip"
	}
	return fmt.Sprintf("r%d", r)
}

type MovArgs struct {
	Dst Register
	Src lang.Value
}

type CmpArgs struct {
	Left, Right Register
}

type JumpArgs struct {
	Offset int // relative to the jump itself
}

// Instruction is one line of compiled code. Only the operand fields of its
// op code are meaningful.
type Instruction struct {
	Op      OpCode
	Line    int
	Comment string

	Mov   MovArgs
	Cmp   CmpArgs
	Jump  JumpArgs
	Var   graph.NodeID // push_var, pop_var
	Scope *graph.Scope // push_stack_frame, pop_stack_frame
	Node  graph.NodeID // eval_node
}

func (in *Instruction) operands() string {
	switch in.Op {
	case Mov:
		return fmt.Sprintf("%s, %s", in.Mov.Dst, in.Mov.Src)
	case Cmp:
		return fmt.Sprintf("%s, %s", in.Cmp.Left, in.Cmp.Right)
	case Jmp, Jne:
		return fmt.Sprintf("%+d", in.Jump.Offset)
	case PushVar, PopVar:
		return in.Var.String()
	case PushStackFrame, PopStackFrame:
		if in.Scope != nil {
			return in.Scope.Name
		}
	case EvalNode:
		return in.Node.String()
	}
	return ""
}

// String formats the instruction as one line of the assembly listing.
func (in *Instruction) String() string {
	s := fmt.Sprintf("%4d: %-16s %s", in.Line, in.Op, in.operands())
	if in.Comment == "" {
		return strings.TrimRight(s, " ")
	}
	return fmt.Sprintf("%-40s ; %s", s, in.Comment)
}
