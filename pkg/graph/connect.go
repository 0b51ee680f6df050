package graph

import (
	"slices"

	"nodlang/pkg/lang"
	"nodlang/pkg/token"
)

// maxMergedLiteral bounds the source length of literals ConnectOrMerge folds
// into their consumer.
const maxMergedLiteral = 16

// Connect links tail to head. Tail must be an OrderFirst slot and head an
// OrderSecond slot of the same type on another node. With SideEffects the
// scopes of the nodes involved are updated to follow the new edge.
func (g *Graph) Connect(tail, head SlotRef, flags ConnectFlags) (Edge, error) {
	e := Edge{Tail: tail, Head: head}
	tn, ts, err := g.Slot(tail)
	if err != nil {
		return e, &ConnectError{Tail: tail, Head: head, Err: err}
	}
	hn, hs, err := g.Slot(head)
	if err != nil {
		return e, &ConnectError{Tail: tail, Head: head, Err: err}
	}
	if tn == hn {
		return e, &ConnectError{Tail: tail, Head: head, Err: ErrSameNode}
	}
	if ts.Flags&OrderFirst == 0 || hs.Flags&OrderSecond == 0 || ts.Flags.Type() != hs.Flags.Type() {
		return e, &ConnectError{Tail: tail, Head: head, Err: ErrIncompatibleTypes}
	}

	if flags == SideEffects && ts.Flags == ChildHead && g.BranchHead(tn, ts.Position) != nil {
		// A branch already has a head: append to the end of the branch.
		last, ok := g.branchTail(tn, ts.Position)
		if !ok {
			return e, &ConnectError{Tail: tail, Head: head, Err: ErrSlotFull}
		}
		return g.Connect(last, hn.SlotRef(SlotFlowIn), SideEffects)
	}

	if ts.IsFull() || hs.IsFull() {
		return e, &ConnectError{Tail: tail, Head: head, Err: ErrSlotFull}
	}

	t := ts.Flags.Type()
	g.edges[t] = append(g.edges[t], e)
	ts.addAdjacent(head)
	hs.addAdjacent(tail)
	tn.dirty, hn.dirty, g.dirty = true, true, true

	if flags != SideEffects {
		return e, nil
	}
	switch t {
	case TypeCodeflow:
		g.onFlowConnected(tn, ts, hn)
	case TypeHierarchical:
		if bs := tn.BranchSlot(ts.Position); bs != nil && !bs.IsFull() {
			if _, err := g.Connect(tn.SlotRef(bs.Index), hn.SlotRef(SlotFlowIn), SideEffects); err != nil {
				return e, err
			}
		}
	case TypeValue:
		// A declaration stays in the scope it was made in; only the
		// expressions feeding a consumer follow it.
		declared := tn.Kind == KindVariable && tn.scope != nil
		if !tn.HasFlowAdjacency() && !declared {
			if hn.internal != nil {
				g.changeScope(tn, hn.internal)
			} else if hn.scope != nil {
				g.changeScope(tn, hn.scope)
			}
		}
		if hn.Kind != KindVariable {
			hn.PropOf(hs).Type = tn.PropOf(ts).Type
		}
	}
	return e, nil
}

// branchTail returns the codeflow output of the last instruction of branch
// pos of n.
func (g *Graph) branchTail(n *Node, pos int) (SlotRef, bool) {
	cur := g.BranchHead(n, pos)
	if cur == nil {
		return SlotRef{}, false
	}
	for next := g.Next(cur); next != nil; next = g.Next(cur) {
		cur = next
	}
	return cur.SlotRef(SlotFlowOut), true
}

// scopeAfter is the scope an instruction reached from slot s of n joins.
func scopeAfter(n *Node, s *Slot) *Scope {
	if s.Flags&IsBranch != 0 {
		return n.BranchScope(s.Position)
	}
	return n.scope
}

// onFlowConnected moves hn to the scope its predecessors imply. Its parent
// edge follows the scope, so an instruction chained after another hangs
// from the same parent.
func (g *Graph) onFlowConnected(tn *Node, ts *Slot, hn *Node) {
	in := hn.FlowInSlot()
	switch {
	case in.AdjacentCount() > 1:
		g.changeScope(hn, g.joinScope(in))
	case ts.Flags&IsBranch != 0:
		g.changeScope(hn, tn.BranchScope(ts.Position))
	default:
		g.changeScope(hn, tn.scope)
	}
}

// joinScope is the scope of an instruction reached from every slot
// adjacent to in: the scope they share, or their lowest common ancestor.
// A partitioned ancestor gives way to its parent.
func (g *Graph) joinScope(in *Slot) *Scope {
	var scopes []*Scope
	for _, adj := range in.adjacent {
		n, s, err := g.Slot(adj)
		if err != nil {
			continue
		}
		if sc := scopeAfter(n, s); sc != nil {
			scopes = append(scopes, sc)
		}
	}
	if len(scopes) == 0 {
		return g.RootScope()
	}
	lca := LowestCommonAncestor(scopes...)
	if lca == nil {
		return g.RootScope()
	}
	if lca.IsPartitioned() && lca.parent != nil {
		return lca.parent
	}
	return lca
}

// ConnectOrMerge feeds the output tail into the input head. Orphans and
// short literals are digested into the head property instead of being
// connected; in that case the returned edge is nil.
func (g *Graph) ConnectOrMerge(tail, head SlotRef) (*Edge, error) {
	tn := g.Node(tail.Node)
	if tn == nil {
		return nil, &ConnectError{Tail: tail, Head: head, Err: ErrStaleHandle}
	}
	ts := tn.Slot(tail.Index)
	hn, hs, err := g.Slot(head)
	if err != nil || ts == nil {
		if err == nil {
			err = ErrUnknownSlot
		}
		return nil, &ConnectError{Tail: tail, Head: head, Err: err}
	}
	if ts.Flags != Output || hs.Flags != Input {
		return nil, &ConnectError{Tail: tail, Head: head, Err: ErrIncompatibleTypes}
	}
	tp, hp := tn.PropOf(ts), hn.PropOf(hs)
	if !lang.ImplicitlyConvertible(tp.Type, hp.Type) {
		return nil, &ConnectError{Tail: tail, Head: head, Err: ErrIncompatibleTypes}
	}

	if !tn.registered {
		hp.Digest(tp)
		g.release(tn.ID)
		return nil, nil
	}
	if tn.Kind == KindLiteral && !tp.Has(PropIsThis) && hn.Kind != KindVariable && len(tp.Token.Word) < maxMergedLiteral {
		hp.Digest(tp)
		if err := g.Destroy(tn.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	e, err := g.Connect(tail, head, SideEffects)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Disconnect removes e. With SideEffects, value inputs fall back to their
// default text and instructions are moved to the scope their remaining
// predecessors imply.
func (g *Graph) Disconnect(e Edge, flags ConnectFlags) error {
	tn, ts, err := g.Slot(e.Tail)
	if err != nil {
		return err
	}
	hn, hs, err := g.Slot(e.Head)
	if err != nil {
		return err
	}
	t := ts.Flags.Type()
	idx := slices.Index(g.edges[t], e)
	if idx < 0 {
		return ErrEdgeNotFound
	}
	g.edges[t] = slices.Delete(g.edges[t], idx, idx+1)
	ts.removeAdjacent(e.Head)
	hs.removeAdjacent(e.Tail)
	tn.dirty, hn.dirty, g.dirty = true, true, true

	if flags != SideEffects {
		return nil
	}
	switch t {
	case TypeValue:
		if hn.Kind != KindVariable {
			p := hn.PropOf(hs)
			if !p.Token.Kind.IsLiteral() {
				p.Token.Kind = literalKind(p.Type)
			}
			p.Token.ReplaceWord(token.DefaultWord(p.Token.Kind))
			if tn.Kind == KindLiteral {
				// The default word takes the place of the literal in the text.
				p.Token.TakePrefixSuffixFrom(&tn.PropOf(ts).Token)
			}
		}
	case TypeCodeflow:
		if hn.FlowInSlot().AdjacentCount() > 0 {
			g.changeScope(hn, g.joinScope(hn.FlowInSlot()))
		} else {
			g.changeScope(hn, g.RootScope())
		}
	case TypeHierarchical:
		if bs := tn.BranchSlot(ts.Position); bs != nil {
			be := Edge{Tail: tn.SlotRef(bs.Index), Head: hn.SlotRef(SlotFlowIn)}
			if slices.Contains(g.edges[TypeCodeflow], be) {
				return g.Disconnect(be, SideEffects)
			}
		}
	}
	return nil
}

func literalKind(t lang.Type) token.Kind {
	switch t {
	case lang.Bool:
		return token.LiteralBool
	case lang.Int, lang.I16:
		return token.LiteralInt
	case lang.Double:
		return token.LiteralDouble
	case lang.String:
		return token.LiteralString
	}
	return token.LiteralAny
}
