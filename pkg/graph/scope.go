package graph

import (
	"slices"

	"nodlang/pkg/token"
)

// Scope groups the nodes of a code block. Blocks with several branches own
// one partition per branch, each a child scope.
type Scope struct {
	Name  string
	Begin token.Token // "{" when the scope comes from braces
	End   token.Token

	owner      *Node
	parent     *Scope
	depth      int
	partitions []*Scope
	children   []*Node
	primary    []*Node
	variables  []*Node
}

func newScope(owner *Node, name string, parent *Scope) *Scope {
	s := &Scope{
		Name:   name,
		owner:  owner,
		parent: parent,
		Begin:  token.NullToken(),
		End:    token.NullToken(),
	}
	if parent != nil {
		s.depth = parent.depth + 1
	}
	return s
}

func (s *Scope) addPartition(name string) *Scope {
	p := newScope(s.owner, name, s)
	s.partitions = append(s.partitions, p)
	return p
}

func (s *Scope) Owner() *Node         { return s.owner }
func (s *Scope) Parent() *Scope       { return s.parent }
func (s *Scope) Depth() int           { return s.depth }
func (s *Scope) Partitions() []*Scope { return s.partitions }
func (s *Scope) IsPartitioned() bool  { return len(s.partitions) > 0 }

// Partition returns partition i, or nil.
func (s *Scope) Partition(i int) *Scope {
	if i < 0 || i >= len(s.partitions) {
		return nil
	}
	return s.partitions[i]
}

// Children lists every node that belongs to s.
func (s *Scope) Children() []*Node { return s.children }

// Primary lists the instructions of s in the order they joined it.
func (s *Scope) Primary() []*Node { return s.primary }

// Variables lists the variables declared in s.
func (s *Scope) Variables() []*Node { return s.variables }

func (s *Scope) Contains(n *Node) bool { return slices.Contains(s.children, n) }

// FindVariable looks identifier up in s, then in its ancestors when recurse
// is set.
func (s *Scope) FindVariable(identifier string, recurse bool) *Node {
	for sc := s; sc != nil; sc = sc.parent {
		for _, v := range sc.variables {
			if v.Name == identifier {
				return v
			}
		}
		if !recurse {
			break
		}
	}
	return nil
}

// add makes n a member of s and registers it as an instruction or a
// variable. It returns false when a variable of the same name is already
// declared in s.
func (s *Scope) add(n *Node, primary bool) bool {
	if !slices.Contains(s.children, n) {
		s.children = append(s.children, n)
	}
	if primary && !slices.Contains(s.primary, n) {
		s.primary = append(s.primary, n)
	}
	if n.Kind != KindVariable || slices.Contains(s.variables, n) {
		return true
	}
	if other := s.FindVariable(n.Name, false); other != nil {
		return false
	}
	s.variables = append(s.variables, n)
	return true
}

func (s *Scope) remove(n *Node) {
	s.children = slices.DeleteFunc(s.children, func(c *Node) bool { return c == n })
	s.primary = slices.DeleteFunc(s.primary, func(c *Node) bool { return c == n })
	s.variables = slices.DeleteFunc(s.variables, func(c *Node) bool { return c == n })
}

// Leaves returns the last instructions of s. Partitioned scopes return the
// leaves of every partition, and a block that ends a scope is replaced by
// its own leaves.
func (s *Scope) Leaves() []*Node {
	if s.IsPartitioned() {
		var leaves []*Node
		for _, p := range s.partitions {
			leaves = append(leaves, p.Leaves()...)
		}
		return leaves
	}
	if len(s.primary) == 0 {
		return nil
	}
	last := s.primary[len(s.primary)-1]
	if last.internal != nil {
		if inner := last.internal.Leaves(); len(inner) > 0 {
			return inner
		}
	}
	return []*Node{last}
}

// LowestCommonAncestor returns the deepest scope every scope in scopes is
// nested in.
func LowestCommonAncestor(scopes ...*Scope) *Scope {
	if len(scopes) == 0 {
		return nil
	}
	lca := scopes[0]
	for _, s := range scopes[1:] {
		lca = commonAncestor(lca, s)
		if lca == nil {
			return nil
		}
	}
	return lca
}

func commonAncestor(a, b *Scope) *Scope {
	for a != nil && b != nil && a.depth > b.depth {
		a = a.parent
	}
	for a != nil && b != nil && b.depth > a.depth {
		b = b.parent
	}
	for a != b {
		if a == nil || b == nil {
			return nil
		}
		a, b = a.parent, b.parent
	}
	return a
}
