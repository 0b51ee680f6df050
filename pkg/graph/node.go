package graph

import (
	"fmt"

	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

// NodeID is a generation-checked handle into the graph's node arena. The
// zero NodeID never refers to a node.
type NodeID struct {
	index uint32
	gen   uint32
}

func (id NodeID) IsZero() bool { return id.gen == 0 }

func (id NodeID) String() string {
	if id.IsZero() {
		return "#nil"
	}
	return fmt.Sprintf("#%d.%d", id.index, id.gen)
}

// Kind is the node type tag.
type Kind int

const (
	KindEntryPoint Kind = iota
	KindScope
	KindEmptyInstruction
	KindLiteral
	KindVariable
	KindVariableRef
	KindFunction
	KindOperator
	KindIf
	KindFor
	KindWhile
)

var kindNames = [...]string{
	KindEntryPoint:       "entry_point",
	KindScope:            "scope",
	KindEmptyInstruction: "empty_instruction",
	KindLiteral:          "literal",
	KindVariable:         "variable",
	KindVariableRef:      "variable_ref",
	KindFunction:         "function",
	KindOperator:         "operator",
	KindIf:               "if",
	KindFor:              "for",
	KindWhile:            "while",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// PropertyFlags mark special properties.
type PropertyFlags uint8

const (
	PropIsThis PropertyFlags = 1 << iota
	PropIsRef
	PropIsPrivate
)

// Property is a named, typed value owned by a node. Token keeps the source
// text the value came from.
type Property struct {
	Name  string
	Type  lang.Type
	Flags PropertyFlags
	Value lang.Value
	Token token.Token
}

func (p *Property) Has(f PropertyFlags) bool { return p.Flags&f == f }

// Set stores v converted to the property type.
func (p *Property) Set(v lang.Value) {
	p.Value = v.Convert(p.Type)
}

// Digest takes over the value and source text of other.
func (p *Property) Digest(other *Property) {
	p.Value = other.Value.Convert(p.Type)
	p.Token = other.Token
}

// Variable is the payload of variable declarations.
type Variable struct {
	Identifier token.Token
	TypeToken  token.Token
	Assign     token.Token // "=" of an initialized declaration
	InitRef    token.Token // identifier of a variable used as the initial value

	In     int // slot receiving the initial value
	Out    int // declaration output, used when the declaration is an operand
	RefOut int // output feeding every later use of the variable
}

// VariableRef is the payload of a use of a variable as a standalone
// expression, or of an identifier nothing declares.
type VariableRef struct {
	Identifier token.Token
	Target     NodeID
}

// Invokable is the payload of function and operator nodes. A nil Fn marks
// an abstract call nothing in the language implements.
type Invokable struct {
	Sig *lang.Signature
	Fn  *lang.Function

	Identifier token.Token
	Keyword    token.Token // "operator" in the operator <op>(...) call form
	ParenOpen  token.Token
	ParenClose token.Token
	Separators []token.Token

	Result int   // property receiving the return value
	Args   []int // argument properties in call order
}

func (inv *Invokable) IsAbstract() bool { return inv.Fn == nil }

// Block is the payload of if, for and while nodes.
type Block struct {
	Keyword    token.Token
	ParenOpen  token.Token
	ParenClose token.Token
	Separators []token.Token // the two ';' of a for header
	Else       token.Token
}

// Paren is a pair of parentheses wrapped around an expression in source.
type Paren struct {
	Open, Close token.Token
}

// Node is a graph vertex. Kind-specific data lives in the optional payload
// fields, at most one of which is set.
type Node struct {
	ID    NodeID
	Kind  Kind
	Name  string
	Props []*Property
	Slots []*Slot

	// Suffix holds the ";" ending the instruction this node roots.
	Suffix token.Token
	// Parens lists the parentheses around the expression n evaluates,
	// innermost first.
	Parens []Paren

	Variable  *Variable
	Ref       *VariableRef
	Invokable *Invokable
	Block     *Block

	scope         *Scope
	internal      *Scope
	dirty         bool
	mustBeDeleted bool
	registered    bool
}

// Structural slots every node carries.
const (
	SlotParent = iota
	SlotFlowIn
	SlotFlowOut
)

func newNode(kind Kind, name string) *Node {
	n := &Node{Kind: kind, Name: name, Suffix: token.NullToken()}
	n.addProp("this", lang.Any, PropIsThis)
	n.addSlot(0, Parent, 1, 0)
	n.addSlot(0, FlowIn, FlowInCapacity, 0)
	n.addSlot(0, FlowOut, 1, 0)
	return n
}

func (n *Node) addProp(name string, t lang.Type, flags PropertyFlags) int {
	n.Props = append(n.Props, &Property{
		Name:  name,
		Type:  t,
		Flags: flags,
		Value: lang.Zero(t),
		Token: token.NullToken(),
	})
	return len(n.Props) - 1
}

func (n *Node) addSlot(prop int, flags SlotFlags, capacity, position int) int {
	idx := len(n.Slots)
	n.Slots = append(n.Slots, &Slot{
		Index:    idx,
		Flags:    flags,
		Property: prop,
		Capacity: capacity,
		Position: position,
	})
	return idx
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %s %q", n.ID, n.Kind, n.Name)
}

// Slot returns the slot at index i, or nil.
func (n *Node) Slot(i int) *Slot {
	if i < 0 || i >= len(n.Slots) {
		return nil
	}
	return n.Slots[i]
}

// SlotRef returns a reference to slot i of n.
func (n *Node) SlotRef(i int) SlotRef {
	return SlotRef{Node: n.ID, Index: i}
}

// FindSlot returns the first slot bound to property prop whose flags are
// exactly f.
func (n *Node) FindSlot(prop string, f SlotFlags) *Slot {
	for _, s := range n.Slots {
		if s.Flags == f && n.Props[s.Property].Name == prop {
			return s
		}
	}
	return nil
}

// Prop returns the property called name, or nil.
func (n *Node) Prop(name string) *Property {
	for _, p := range n.Props {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// PropOf returns the property slot s is bound to.
func (n *Node) PropOf(s *Slot) *Property {
	return n.Props[s.Property]
}

// Value is the property an expression node evaluates into.
func (n *Node) Value() *Property {
	if n.Invokable != nil {
		return n.Props[n.Invokable.Result]
	}
	if p := n.Prop("value"); p != nil {
		return p
	}
	return n.Props[0]
}

// ValueOut returns the output slot operands are taken from.
func (n *Node) ValueOut() (SlotRef, bool) {
	if n.Variable != nil {
		return n.SlotRef(n.Variable.Out), true
	}
	for _, s := range n.Slots {
		if s.Flags == Output {
			return n.SlotRef(s.Index), true
		}
	}
	return SlotRef{}, false
}

// ArgSlot returns the input slot of argument i of an invokable.
func (n *Node) ArgSlot(i int) *Slot {
	if n.Invokable == nil || i < 0 || i >= len(n.Invokable.Args) {
		return nil
	}
	for _, s := range n.Slots {
		if s.Flags == Input && s.Property == n.Invokable.Args[i] {
			return s
		}
	}
	return nil
}

// Inputs returns the value input slots in declaration order.
func (n *Node) Inputs() []*Slot {
	var in []*Slot
	for _, s := range n.Slots {
		if s.Flags == Input {
			in = append(in, s)
		}
	}
	return in
}

func (n *Node) FlowInSlot() *Slot  { return n.Slots[SlotFlowIn] }
func (n *Node) FlowOutSlot() *Slot { return n.Slots[SlotFlowOut] }
func (n *Node) ParentSlot() *Slot  { return n.Slots[SlotParent] }

// BranchSlot returns the codeflow slot starting branch i.
func (n *Node) BranchSlot(i int) *Slot {
	for _, s := range n.Slots {
		if s.Flags == FlowBranch && s.Position == i {
			return s
		}
	}
	return nil
}

// ChildSlot returns the hierarchical slot holding the instructions of
// branch i. Its first adjacency is the branch head.
func (n *Node) ChildSlot(i int) *Slot {
	for _, s := range n.Slots {
		if s.Flags == ChildHead && s.Position == i {
			return s
		}
	}
	return nil
}

// HasFlowAdjacency reports whether n takes part in code flow.
func (n *Node) HasFlowAdjacency() bool {
	for _, s := range n.Slots {
		if s.Flags.Type() == TypeCodeflow && len(s.adjacent) > 0 {
			return true
		}
	}
	return false
}

// IsInstruction reports whether n is reached by code flow.
func (n *Node) IsInstruction() bool {
	return n.FlowInSlot().AdjacentCount() > 0
}

func (n *Node) Scope() *Scope         { return n.scope }
func (n *Node) InternalScope() *Scope { return n.internal }

// BranchScope is the scope holding the instructions of branch i.
func (n *Node) BranchScope(i int) *Scope {
	if n.internal == nil {
		return nil
	}
	if i < len(n.internal.partitions) {
		return n.internal.partitions[i]
	}
	return n.internal
}

func (n *Node) IsDirty() bool { return n.dirty }

// MarkForDeletion queues n for removal by the next Graph.Update.
func (n *Node) MarkForDeletion() { n.mustBeDeleted = true }
