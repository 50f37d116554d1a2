package tree

import "fmt"

// Edge is an undirected branch in canonical form: A < B.
type Edge struct {
	A, B NodeID
}

// NewEdge returns the canonical edge between a and b.
func NewEdge(a, b NodeID) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Other returns the endpoint of e that is not n.
func (e Edge) Other(n NodeID) NodeID {
	if e.A == n {
		return e.B
	}
	return e.A
}

// Has reports whether n is an endpoint of e.
func (e Edge) Has(n NodeID) bool { return e.A == n || e.B == n }

func (e Edge) String() string { return fmt.Sprintf("%d-%d", e.A, e.B) }

// Internal reports whether both endpoints of e are internal nodes.
func (t *Tree) Internal(e Edge) bool {
	return !t.IsLeaf(e.A) && !t.IsLeaf(e.B)
}

// Adjacent reports whether a and b share a branch.
func (t *Tree) Adjacent(a, b NodeID) bool { return t.SlotOf(a, b) >= 0 }

// Walk visits every attached node in depth-first preorder starting at
// Start. fn receives the node and the neighbour it was reached from (None
// for the start). Neighbours are visited in slot order, so the order is a
// pure function of the topology and slot layout.
func (t *Tree) Walk(fn func(node, parent NodeID)) {
	start := t.Start()
	if start == None {
		return
	}
	type frame struct{ node, parent NodeID }
	stack := []frame{{start, None}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(f.node, f.parent)
		n := &t.nodes[f.node]
		for s := n.degree - 1; s >= 0; s-- {
			if next := n.links[s].To; next != f.parent {
				stack = append(stack, frame{next, f.node})
			}
		}
	}
}

// AppendEdges appends every branch to dst in traversal order.
func (t *Tree) AppendEdges(dst []Edge) []Edge {
	t.Walk(func(node, parent NodeID) {
		if parent != None {
			dst = append(dst, NewEdge(parent, node))
		}
	})
	return dst
}

// Edges returns every branch in traversal order.
func (t *Tree) Edges() []Edge {
	return t.AppendEdges(make([]Edge, 0, 2*t.numTaxa-3))
}

// AppendInternalEdges appends every branch joining two internal nodes.
func (t *Tree) AppendInternalEdges(dst []Edge) []Edge {
	t.Walk(func(node, parent NodeID) {
		if parent != None && !t.IsLeaf(node) && !t.IsLeaf(parent) {
			dst = append(dst, NewEdge(parent, node))
		}
	})
	return dst
}

// InternalEdges returns the internal branches in traversal order.
func (t *Tree) InternalEdges() []Edge {
	return t.AppendInternalEdges(make([]Edge, 0, t.numTaxa))
}

// Subtree appends the attached leaves on the far side of from -> to.
func (t *Tree) Subtree(dst []NodeID, from, to NodeID) []NodeID {
	type frame struct{ node, parent NodeID }
	stack := []frame{{to, from}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.IsLeaf(f.node) {
			dst = append(dst, f.node)
			continue
		}
		n := &t.nodes[f.node]
		for s := n.degree - 1; s >= 0; s-- {
			if next := n.links[s].To; next != f.parent {
				stack = append(stack, frame{next, f.node})
			}
		}
	}
	return dst
}

// PathLength returns the number of branches between a and b, or -1 when
// they are not connected.
func (t *Tree) PathLength(a, b NodeID) int {
	if a == b {
		return 0
	}
	type frame struct {
		node, parent NodeID
		depth        int
	}
	stack := []frame{{a, None, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == b {
			return f.depth
		}
		n := &t.nodes[f.node]
		for s := 0; s < n.degree; s++ {
			if next := n.links[s].To; next != f.parent {
				stack = append(stack, frame{next, f.node, f.depth + 1})
			}
		}
	}
	return -1
}

// TotalLength returns the sum of all branch lengths.
func (t *Tree) TotalLength() float64 {
	var sum float64
	t.Walk(func(node, parent NodeID) {
		if parent != None {
			sum += t.Length(parent, node)
		}
	})
	return sum
}
