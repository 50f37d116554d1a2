package tree

import (
	"fmt"
	"math"
)

// Snapshot is an exact copy of the topology and branch lengths of a tree.
// Take one with [Tree.SnapshotInto]; the buffer is reused across calls.
type Snapshot struct {
	nodes []Node
}

// SnapshotInto copies t into s, growing the buffer only when needed.
func (t *Tree) SnapshotInto(s *Snapshot) {
	if cap(s.nodes) < len(t.nodes) {
		s.nodes = make([]Node, len(t.nodes))
	}
	s.nodes = s.nodes[:len(t.nodes)]
	copy(s.nodes, t.nodes)
}

// Restore overwrites t with the state captured in s. Branch lengths come
// back bit-identical.
func (t *Tree) Restore(s *Snapshot) {
	if len(s.nodes) != len(t.nodes) {
		panic("tree: restore from snapshot of a different arena")
	}
	copy(t.nodes, s.nodes)
}

// Validate checks the structural invariants: degrees, link targets,
// reciprocity with bit-identical lengths, finite non-negative lengths, and
// that every attached node is reachable from Start.
func (t *Tree) Validate() error {
	attached := 0
	for i := range t.nodes {
		id := NodeID(i)
		n := &t.nodes[i]
		if n.degree == 0 {
			continue
		}
		attached++
		if t.IsLeaf(id) && n.degree != 1 {
			return fmt.Errorf("%w: leaf %d has degree %d", ErrInconsistent, id, n.degree)
		}
		if !t.IsLeaf(id) && n.degree != 3 {
			return fmt.Errorf("%w: internal node %d has degree %d", ErrInconsistent, id, n.degree)
		}
		for s := 0; s < n.degree; s++ {
			l := n.links[s]
			if l.To < 0 || int(l.To) >= len(t.nodes) || l.To == id {
				return fmt.Errorf("%w: node %d slot %d points to %d", ErrInconsistent, id, s, l.To)
			}
			back := t.SlotOf(l.To, id)
			if back < 0 {
				return fmt.Errorf("%w: %d lists %d but not the reverse", ErrInconsistent, id, l.To)
			}
			if math.Float64bits(t.nodes[l.To].links[back].Length) != math.Float64bits(l.Length) {
				return fmt.Errorf("%w: branch %d-%d has asymmetric length", ErrInconsistent, id, l.To)
			}
			if math.IsNaN(l.Length) || math.IsInf(l.Length, 0) || l.Length < 0 {
				return fmt.Errorf("%w: branch %d-%d has length %v", ErrInconsistent, id, l.To, l.Length)
			}
		}
	}
	if attached == 0 {
		return nil
	}
	reached := 0
	t.Walk(func(NodeID, NodeID) { reached++ })
	if reached != attached {
		return fmt.Errorf("%w: %d of %d attached nodes reachable", ErrInconsistent, reached, attached)
	}
	return nil
}
