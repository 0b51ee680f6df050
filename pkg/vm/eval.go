package vm

import (
	"errors"
	"fmt"

	"nodlang/pkg/graph"
	"nodlang/pkg/lang"
)

var errAbstract = errors.New("node has no implementation")

// eval computes the value of n from its inputs and leaves it in rax.
func (v *VM) eval(n *graph.Node) error {
	switch {
	case n.Variable != nil:
		st := v.variable(n)
		if !st.defined {
			src, slot := v.code.Graph.Source(n.Slot(n.Variable.In))
			if src != nil {
				n.Value().Set(v.source(src, slot).Value)
			}
			st.defined = true
		}

	case n.Invokable != nil:
		if err := v.call(n); err != nil {
			return err
		}

	default:
		for _, in := range n.Inputs() {
			if src, slot := v.code.Graph.Source(in); src != nil {
				n.PropOf(in).Set(v.source(src, slot).Value)
			}
		}
	}

	v.rax = n.Value().Value
	v.visited[n.ID] = true
	return nil
}

// call invokes the function bound to n. By-value arguments are copied from
// the output feeding them, by-reference arguments alias it.
func (v *VM) call(n *graph.Node) error {
	inv := n.Invokable
	if inv.IsAbstract() {
		return fmt.Errorf("call %s: %w", inv.Sig, errAbstract)
	}

	args := make([]*lang.Value, len(inv.Args))
	var refs []*graph.Property
	for i := range inv.Args {
		in := n.ArgSlot(i)
		p := n.PropOf(in)
		args[i] = &p.Value
		src, slot := v.code.Graph.Source(in)
		if src == nil {
			continue
		}
		sp := v.source(src, slot)
		if p.Has(graph.PropIsRef) {
			args[i] = &sp.Value
			refs = append(refs, sp)
			continue
		}
		p.Set(sp.Value)
	}

	ret, err := inv.Fn.Call(args)
	if err != nil {
		return fmt.Errorf("call %s: %w", inv.Sig, err)
	}
	for _, p := range refs {
		p.Set(p.Value)
	}
	n.Value().Set(ret)
	return nil
}

// source returns the property behind output slot of src. A reference to a
// variable stands for the variable itself.
func (v *VM) source(src *graph.Node, slot *graph.Slot) *graph.Property {
	if src.Ref != nil {
		if target := v.code.Graph.Node(src.Ref.Target); target != nil {
			return target.Value()
		}
	}
	return src.PropOf(slot)
}
