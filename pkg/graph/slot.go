package graph

import (
	"fmt"
	"math"
)

// SlotFlags describe what a slot connects to and in which direction.
type SlotFlags uint16

const (
	OrderFirst  SlotFlags = 1 << iota // tail end of an edge
	OrderSecond                       // head end of an edge

	TypeValue
	TypeHierarchical
	TypeCodeflow

	IsBranch

	// NotFull is only ever computed from a slot's adjacency, never stored.
	NotFull

	OrderMask = OrderFirst | OrderSecond
	TypeMask  = TypeValue | TypeHierarchical | TypeCodeflow

	Input      = TypeValue | OrderSecond
	Output     = TypeValue | OrderFirst
	Parent     = TypeHierarchical | OrderSecond
	Child      = TypeHierarchical | OrderFirst
	FlowIn     = TypeCodeflow | OrderSecond
	FlowOut    = TypeCodeflow | OrderFirst
	FlowBranch = FlowOut | IsBranch
	ChildHead  = Child | IsBranch
)

// Unlimited is the capacity of slots that accept any number of edges.
const Unlimited = math.MaxInt32

// FlowInCapacity bounds the predecessors a single instruction can have.
const FlowInCapacity = 16

func (f SlotFlags) Type() SlotFlags  { return f & TypeMask }
func (f SlotFlags) Order() SlotFlags { return f & OrderMask }

func (f SlotFlags) String() string {
	var typ string
	switch f.Type() {
	case TypeValue:
		typ = "value"
	case TypeHierarchical:
		typ = "hierarchy"
	case TypeCodeflow:
		typ = "codeflow"
	default:
		typ = "none"
	}
	order := "first"
	if f&OrderSecond != 0 {
		order = "second"
	}
	if f&IsBranch != 0 {
		return typ + "/" + order + "/branch"
	}
	return typ + "/" + order
}

// SlotRef addresses a slot by node handle and slot index.
type SlotRef struct {
	Node  NodeID
	Index int
}

func (r SlotRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Node, r.Index)
}

// Slot is a connection point on a node. Value slots are bound to a property;
// structural slots are bound to the node's "this" property.
type Slot struct {
	Index    int
	Flags    SlotFlags
	Property int
	Capacity int
	Position int // branch index for branch slots

	adjacent []SlotRef
}

// Has reports whether every flag in f is set. NotFull is evaluated against
// the current adjacency.
func (s *Slot) Has(f SlotFlags) bool {
	if f&NotFull != 0 {
		if s.IsFull() {
			return false
		}
		f &^= NotFull
	}
	return s.Flags&f == f
}

func (s *Slot) Adjacent() []SlotRef { return s.adjacent }

func (s *Slot) AdjacentCount() int { return len(s.adjacent) }

func (s *Slot) IsFull() bool { return len(s.adjacent) >= s.Capacity }

// First returns the first adjacent slot.
func (s *Slot) First() (SlotRef, bool) {
	if len(s.adjacent) == 0 {
		return SlotRef{}, false
	}
	return s.adjacent[0], true
}

func (s *Slot) addAdjacent(r SlotRef) {
	s.adjacent = append(s.adjacent, r)
}

func (s *Slot) removeAdjacent(r SlotRef) bool {
	for i, a := range s.adjacent {
		if a == r {
			s.adjacent = append(s.adjacent[:i], s.adjacent[i+1:]...)
			return true
		}
	}
	return false
}

// Edge links a tail slot (OrderFirst) to a head slot (OrderSecond).
type Edge struct {
	Tail SlotRef
	Head SlotRef
}

func (e Edge) String() string {
	return e.Tail.String() + " -> " + e.Head.String()
}

// ConnectFlags tune Connect and Disconnect.
type ConnectFlags int

const (
	NoSideEffects ConnectFlags = iota
	SideEffects
)
