package graph

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

// noCopy makes go vet's copylocks check flag copies of a Graph.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

type arenaEntry struct {
	gen  uint32
	node *Node
}

// Graph owns every node of a program and the edges between their slots.
//
// A Graph is not safe for concurrent use. Hosts drive it from a single
// goroutine; see session.Session.
type Graph struct {
	_ noCopy

	log   *slog.Logger
	arena []arenaEntry
	free  []uint32

	nodes []NodeID             // registry, in insertion order
	edges map[SlotFlags][]Edge // registry, keyed by slot type
	root  NodeID
	dirty bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger routes graph diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.log = l }
}

func New(opts ...Option) *Graph {
	g := &Graph{
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		edges: make(map[SlotFlags][]Edge),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("component", "graph")
	return g
}

// alloc stores n in the arena and assigns its handle.
func (g *Graph) alloc(n *Node) {
	if l := len(g.free); l > 0 {
		idx := g.free[l-1]
		g.free = g.free[:l-1]
		e := &g.arena[idx]
		e.node = n
		n.ID = NodeID{index: idx, gen: e.gen}
		return
	}
	g.arena = append(g.arena, arenaEntry{gen: 1, node: n})
	n.ID = NodeID{index: uint32(len(g.arena) - 1), gen: 1}
}

func (g *Graph) release(id NodeID) {
	e := &g.arena[id.index]
	e.node = nil
	e.gen++
	g.free = append(g.free, id.index)
}

// Node resolves a handle. It returns nil for zero or stale handles.
func (g *Graph) Node(id NodeID) *Node {
	if id.IsZero() || int(id.index) >= len(g.arena) {
		return nil
	}
	e := g.arena[id.index]
	if e.gen != id.gen || e.node == nil {
		return nil
	}
	return e.node
}

// Slot resolves a slot reference.
func (g *Graph) Slot(r SlotRef) (*Node, *Slot, error) {
	n := g.Node(r.Node)
	if n == nil {
		return nil, nil, ErrStaleHandle
	}
	s := n.Slot(r.Index)
	if s == nil {
		return nil, nil, ErrUnknownSlot
	}
	return n, s, nil
}

func (g *Graph) register(n *Node, s *Scope) *Node {
	n.registered = true
	n.dirty = true
	g.nodes = append(g.nodes, n.ID)
	if s != nil {
		g.addToScope(n, s)
	}
	g.dirty = true
	g.log.Debug("node added", "id", n.ID, "kind", n.Kind, "name", n.Name)
	return n
}

// Nodes returns the registered nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range g.nodes {
		out = append(out, g.Node(id))
	}
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

var edgeTypeOrder = []SlotFlags{TypeCodeflow, TypeHierarchical, TypeValue}

// Edges returns every registered edge, codeflow first, then hierarchy,
// then values.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, t := range edgeTypeOrder {
		out = append(out, g.edges[t]...)
	}
	return out
}

// EdgesOf returns the registered edges of one slot type.
func (g *Graph) EdgesOf(t SlotFlags) []Edge { return g.edges[t.Type()] }

func (g *Graph) EdgeCount() int {
	c := 0
	for _, es := range g.edges {
		c += len(es)
	}
	return c
}

func (g *Graph) Root() *Node { return g.Node(g.root) }

// RootScope is the internal scope of the entry point.
func (g *Graph) RootScope() *Scope {
	if r := g.Root(); r != nil {
		return r.internal
	}
	return nil
}

func (g *Graph) IsEmpty() bool { return g.Root() == nil }

func (g *Graph) IsDirty() bool { return g.dirty }

// CreateRoot creates the entry point of the program. It fails when a root
// already exists.
func (g *Graph) CreateRoot() (*Node, error) {
	if g.Root() != nil {
		return nil, fmt.Errorf("graph already has a root %s", g.root)
	}
	n := newNode(KindEntryPoint, "entry point")
	g.alloc(n)
	g.addBranches(n, "program", 1)
	g.root = n.ID
	return g.register(n, nil), nil
}

// CreateNode creates a node with only the structural slots.
func (g *Graph) CreateNode(kind Kind, name string, s *Scope) *Node {
	n := newNode(kind, name)
	g.alloc(n)
	return g.register(n, s)
}

// CreateScope creates a braced block nested in parent.
func (g *Graph) CreateScope(parent *Scope) *Node {
	n := newNode(KindScope, "scope")
	g.alloc(n)
	g.addBranches(n, "scope", 1)
	return g.register(n, parent)
}

func (g *Graph) CreateEmptyInstruction(s *Scope) *Node {
	return g.CreateNode(KindEmptyInstruction, "empty instruction", s)
}

func newLiteral(t lang.Type) *Node {
	n := newNode(KindLiteral, "literal")
	v := n.addProp("value", t, 0)
	n.addSlot(v, Output, Unlimited, 0)
	return n
}

func (g *Graph) CreateLiteral(t lang.Type, s *Scope) *Node {
	n := newLiteral(t)
	g.alloc(n)
	return g.register(n, s)
}

// CreateOrphanLiteral allocates a literal without registering it. The only
// thing it can do is be digested by ConnectOrMerge.
func (g *Graph) CreateOrphanLiteral(t lang.Type) *Node {
	n := newLiteral(t)
	g.alloc(n)
	return n
}

func (g *Graph) CreateVariable(t lang.Type, name string, s *Scope) *Node {
	n := newNode(KindVariable, name)
	v := n.addProp("value", t, 0)
	n.Variable = &Variable{
		Identifier: token.New(token.Identifier, name),
		TypeToken:  token.NullToken(),
		Assign:     token.NullToken(),
		InitRef:    token.NullToken(),
	}
	n.Variable.In = n.addSlot(v, Input, 1, 0)
	n.Variable.Out = n.addSlot(v, Output, 1, 0)
	n.Variable.RefOut = n.addSlot(v, Output, Unlimited, 1)
	g.alloc(n)
	return g.register(n, s)
}

// CreateVariableRef creates a standalone use of a variable. A nil target
// makes an unresolved reference.
func (g *Graph) CreateVariableRef(name string, target *Node, s *Scope) (*Node, error) {
	n := newNode(KindVariableRef, name)
	t := lang.Any
	if target != nil {
		t = target.Value().Type
	}
	v := n.addProp("value", t, 0)
	in := n.addSlot(v, Input, 1, 0)
	n.addSlot(v, Output, Unlimited, 0)
	n.Ref = &VariableRef{Identifier: token.New(token.Identifier, name)}
	g.alloc(n)
	g.register(n, s)
	if target == nil {
		return n, nil
	}
	if target.Variable == nil {
		return nil, fmt.Errorf("reference target %s is not a variable", target)
	}
	n.Ref.Target = target.ID
	if _, err := g.Connect(target.SlotRef(target.Variable.RefOut), n.SlotRef(in), NoSideEffects); err != nil {
		return nil, err
	}
	return n, nil
}

// argNames returns the property names used for the arguments of a call.
func argNames(kind Kind, arity int) []string {
	if kind == KindOperator {
		switch arity {
		case 1:
			return []string{"rvalue"}
		case 2:
			return []string{"lvalue", "rvalue"}
		}
	}
	names := make([]string, arity)
	for i := range names {
		names[i] = fmt.Sprintf("arg_%d", i)
	}
	return names
}

func (g *Graph) createInvokable(kind Kind, sig *lang.Signature, fn *lang.Function, s *Scope) *Node {
	n := newNode(kind, sig.Identifier)
	decl := sig
	ret := lang.Any
	if fn != nil {
		decl = fn.Sig
		ret = fn.Sig.Return
	}
	inv := &Invokable{
		Sig:        sig,
		Fn:         fn,
		Identifier: token.New(token.Identifier, sig.Identifier),
		Keyword:    token.NullToken(),
		ParenOpen:  token.NullToken(),
		ParenClose: token.NullToken(),
	}
	if kind == KindOperator {
		// Operators get their spacing from the source token when parsed.
		inv.Identifier = token.NullToken()
	}
	inv.Result = n.addProp("result", ret, 0)
	n.addSlot(inv.Result, Output, Unlimited, 0)
	for i, name := range argNames(kind, len(decl.Args)) {
		arg := decl.Args[i]
		var flags PropertyFlags
		if arg.ByRef {
			flags |= PropIsRef
		}
		p := n.addProp(name, arg.Type, flags)
		inv.Args = append(inv.Args, p)
		n.addSlot(p, Input, 1, 0)
	}
	n.Invokable = inv
	g.alloc(n)
	return g.register(n, s)
}

// CreateFunction creates a call to fn. A nil fn creates an abstract call
// shaped by sig.
func (g *Graph) CreateFunction(sig *lang.Signature, fn *lang.Function, s *Scope) *Node {
	return g.createInvokable(KindFunction, sig, fn, s)
}

func (g *Graph) CreateOperator(sig *lang.Signature, fn *lang.Function, s *Scope) *Node {
	return g.createInvokable(KindOperator, sig, fn, s)
}

// addBranches gives n an internal scope and count branches. Several
// branches partition the internal scope.
func (g *Graph) addBranches(n *Node, name string, count int) {
	var parent *Scope
	if n.scope != nil {
		parent = n.scope
	}
	n.internal = newScope(n, name, parent)
	for i := 0; i < count; i++ {
		n.addSlot(0, FlowBranch, 1, i)
		n.addSlot(0, ChildHead, Unlimited, i)
		if count > 1 {
			n.internal.addPartition(fmt.Sprintf("%s.%d", name, i))
		}
	}
}

func (g *Graph) createBlock(kind Kind, name string, inputs []string, branches int, s *Scope) *Node {
	n := newNode(kind, name)
	for _, in := range inputs {
		p := n.addProp(in, lang.Any, 0)
		n.addSlot(p, Input, 1, 0)
	}
	n.Block = &Block{
		Keyword:    token.NullToken(),
		ParenOpen:  token.NullToken(),
		ParenClose: token.NullToken(),
		Else:       token.NullToken(),
	}
	g.addBranches(n, name, branches)
	g.alloc(n)
	return g.register(n, s)
}

// CreateIf creates a conditional with a true and a false branch.
func (g *Graph) CreateIf(s *Scope) *Node {
	return g.createBlock(KindIf, "if", []string{"condition"}, 2, s)
}

func (g *Graph) CreateForLoop(s *Scope) *Node {
	return g.createBlock(KindFor, "for", []string{"initialization", "condition", "iteration"}, 1, s)
}

func (g *Graph) CreateWhileLoop(s *Scope) *Node {
	return g.createBlock(KindWhile, "while", []string{"condition"}, 1, s)
}

// addToScope moves n into s. The internal scope of n is re-parented so
// that depths and lookups stay consistent.
func (g *Graph) addToScope(n *Node, s *Scope) {
	if n.scope != nil && n.scope != s {
		n.scope.remove(n)
	}
	n.scope = s
	if !s.add(n, n.IsInstruction()) {
		g.log.Warn("variable already declared in scope, not registered", "name", n.Name, "scope", s.Name)
	}
	if n.internal != nil {
		reparent(n.internal, s)
	}
}

func reparent(sc *Scope, parent *Scope) {
	sc.parent = parent
	sc.depth = 0
	if parent != nil {
		sc.depth = parent.depth + 1
	}
	for _, p := range sc.partitions {
		reparent(p, sc)
	}
	for _, c := range sc.children {
		if c.internal != nil {
			reparent(c.internal, sc)
		}
	}
}

// changeScope moves n into s. Inputs and following instructions that lived
// in the same scope as n move along with it.
func (g *Graph) changeScope(n *Node, s *Scope) {
	from := n.scope
	if from == s {
		if s != nil && n.IsInstruction() {
			s.add(n, true)
		}
		g.syncParent(n)
		return
	}
	if s == nil {
		if from != nil {
			from.remove(n)
		}
		n.scope = nil
		g.syncParent(n)
		return
	}
	g.addToScope(n, s)
	g.syncParent(n)

	for _, in := range n.Inputs() {
		for _, adj := range in.adjacent {
			src := g.Node(adj.Node)
			if src != nil && src.scope == from && !src.HasFlowAdjacency() {
				g.changeScope(src, s)
			}
		}
	}
	if next := g.Next(n); next != nil && next.scope == from {
		g.changeScope(next, s)
	}
}

// syncParent hangs instruction n from the child slot of the node owning its
// scope. Nodes outside code flow have no parent.
func (g *Graph) syncParent(n *Node) {
	want, ok := SlotRef{}, false
	if n.IsInstruction() && n.scope != nil {
		want, ok = childSlotOf(n.scope)
	}
	parent := n.ParentSlot()
	if cur, has := parent.First(); has {
		if ok && cur == want {
			return
		}
		if err := g.Disconnect(Edge{Tail: cur, Head: n.SlotRef(SlotParent)}, NoSideEffects); err != nil {
			g.log.Error("detach parent", "node", n, "error", err)
		}
	}
	if !ok {
		return
	}
	if _, err := g.Connect(want, n.SlotRef(SlotParent), NoSideEffects); err != nil {
		g.log.Error("attach parent", "node", n, "error", err)
	}
}

// childSlotOf returns the hierarchical slot holding the instructions of sc.
func childSlotOf(sc *Scope) (SlotRef, bool) {
	owner := sc.Owner()
	if owner == nil {
		return SlotRef{}, false
	}
	for i := 0; ; i++ {
		cs := owner.ChildSlot(i)
		if cs == nil {
			return SlotRef{}, false
		}
		if owner.BranchScope(i) == sc {
			return owner.SlotRef(cs.Index), true
		}
	}
}

// Next returns the instruction following n in code flow.
func (g *Graph) Next(n *Node) *Node {
	if r, ok := n.FlowOutSlot().First(); ok {
		return g.Node(r.Node)
	}
	return nil
}

// BranchHead returns the first instruction of branch i of n.
func (g *Graph) BranchHead(n *Node, i int) *Node {
	s := n.BranchSlot(i)
	if s == nil {
		return nil
	}
	if r, ok := s.First(); ok {
		return g.Node(r.Node)
	}
	return nil
}

// Source returns the node and slot feeding input slot in.
func (g *Graph) Source(in *Slot) (*Node, *Slot) {
	r, ok := in.First()
	if !ok {
		return nil, nil
	}
	n, s, err := g.Slot(r)
	if err != nil {
		return nil, nil
	}
	return n, s
}

// Destroy removes a node and every edge touching it. When the node sat in
// the middle of a code flow chain its predecessor is linked to its
// successor.
func (g *Graph) Destroy(id NodeID) error {
	n := g.Node(id)
	if n == nil {
		return ErrStaleHandle
	}

	var prev, next SlotRef
	relink := false
	if in, out := n.FlowInSlot(), n.FlowOutSlot(); in.AdjacentCount() == 1 && out.AdjacentCount() == 1 {
		prev, next = in.adjacent[0], out.adjacent[0]
		relink = true
	}

	for _, s := range n.Slots {
		for len(s.adjacent) > 0 {
			adj := s.adjacent[0]
			e := Edge{Tail: n.SlotRef(s.Index), Head: adj}
			if s.Flags&OrderSecond != 0 {
				e = Edge{Tail: adj, Head: n.SlotRef(s.Index)}
			}
			flags := NoSideEffects
			if s.Flags.Type() == TypeValue {
				flags = SideEffects
			}
			if err := g.Disconnect(e, flags); err != nil {
				return fmt.Errorf("destroy %s: %w", n, err)
			}
		}
	}

	if n.internal != nil {
		for _, sc := range append([]*Scope{n.internal}, n.internal.partitions...) {
			for _, c := range slices.Clone(sc.children) {
				g.changeScope(c, n.scope)
			}
		}
	}
	if n.scope != nil {
		n.scope.remove(n)
		n.scope = nil
	}

	if n.registered {
		g.nodes = slices.DeleteFunc(g.nodes, func(x NodeID) bool { return x == id })
		n.registered = false
	}
	if g.root == id {
		g.root = NodeID{}
	}
	g.release(id)
	g.dirty = true
	g.log.Debug("node removed", "id", id, "kind", n.Kind, "name", n.Name)

	if relink && g.Node(prev.Node) != nil && g.Node(next.Node) != nil {
		if _, err := g.Connect(prev, next, SideEffects); err != nil {
			return fmt.Errorf("destroy %s: relink: %w", n, err)
		}
	}
	return nil
}

// Clear destroys every node, last created first.
func (g *Graph) Clear() {
	for len(g.nodes) > 0 {
		id := g.nodes[len(g.nodes)-1]
		if err := g.Destroy(id); err != nil {
			// Destroy only fails on stale handles, which never sit in the registry.
			g.log.Error("clear", "id", id, "error", err)
			g.nodes = g.nodes[:len(g.nodes)-1]
		}
	}
	for t := range g.edges {
		delete(g.edges, t)
	}
	g.root = NodeID{}
	g.dirty = true
}

// Update removes the nodes marked for deletion and clears dirty flags. It
// reports whether the graph changed since the previous call.
func (g *Graph) Update() bool {
	for _, n := range g.Nodes() {
		if n.mustBeDeleted && g.Node(n.ID) != nil {
			if err := g.Destroy(n.ID); err != nil {
				g.log.Error("update", "id", n.ID, "error", err)
			}
		}
	}
	for _, n := range g.Nodes() {
		n.dirty = false
	}
	changed := g.dirty
	g.dirty = false
	return changed
}
