package compiler

import (
	"strings"

	"nodlang/pkg/graph"
)

// Code is a compiled program together with the graph it came from.
// Instructions refer to graph nodes by handle, so the graph must outlive
// the code.
type Code struct {
	Instructions []*Instruction
	Graph        *graph.Graph
	Root         graph.NodeID
}

func (c *Code) Len() int { return len(c.Instructions) }

// At returns the instruction at line i, or nil.
func (c *Code) At(i int) *Instruction {
	if i < 0 || i >= len(c.Instructions) {
		return nil
	}
	return c.Instructions[i]
}

func (c *Code) push(op OpCode, comment string) *Instruction {
	in := &Instruction{Op: op, Line: len(c.Instructions), Comment: comment}
	c.Instructions = append(c.Instructions, in)
	return in
}

func (c *Code) nextLine() int { return len(c.Instructions) }

// String returns the assembly listing, one instruction per line.
func (c *Code) String() string {
	var b strings.Builder
	for _, in := range c.Instructions {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}
