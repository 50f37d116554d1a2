package nni

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Variant selects which branch lengths a probe optimizes.
type Variant int

const (
	// NNI5 optimizes the central branch and the four branches around it,
	// unless the central branch alone already beats the current score.
	NNI5 Variant = iota
	// NNI1 optimizes only the central branch of the swapped quartet.
	NNI1
)

// String returns the variant name used in option files.
func (v Variant) String() string {
	switch v {
	case NNI1:
		return "nni1"
	case NNI5:
		return "nni5"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant converts "nni1" or "nni5" to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "nni1", "1":
		return NNI1, nil
	case "nni5", "5", "":
		return NNI5, nil
	default:
		return 0, fmt.Errorf("unknown NNI variant %q (want nni1 or nni5)", s)
	}
}

// Branch indices into Move.Lengths.
const (
	Central = iota // p-q
	P0             // p to its first other neighbour
	P1             // p to its second other neighbour
	Q0             // q to its first other neighbour
	Q1             // q to its second other neighbour
)

// Move is one probed rearrangement of the branch Node1-Node2.
//
// With p = Node1 and q = Node2, swap type s exchanges the subtree in p's
// s-th other slot with the subtree in q's first other slot. "Other slots"
// are the two slots not pointing across the central branch, in slot order.
// Lengths holds the optimized branch lengths of the rearranged quartet,
// indexed by Central, P0, P1, Q0 and Q1, addressed by slot position so that
// they can be written back after the swap is reapplied.
type Move struct {
	Node1, Node2 tree.NodeID
	Swap         int
	LogL         float64
	Delta        float64
	Lengths      [5]float64
}

// Edge returns the central branch of m.
func (m Move) Edge() tree.Edge { return tree.NewEdge(m.Node1, m.Node2) }

func (m Move) String() string {
	return fmt.Sprintf("nni(%d-%d swap %d, logl %.4f, delta %+.4f)", m.Node1, m.Node2, m.Swap, m.LogL, m.Delta)
}

// quartet addresses the five branches around p-q by slot.
type quartet struct {
	p, q           tree.NodeID
	pq, qp         int // slot of q in p, slot of p in q
	p0, p1, q0, q1 int
}

func quartetOf(t *tree.Tree, p, q tree.NodeID) quartet {
	pq, qp := t.SlotOf(p, q), t.SlotOf(q, p)
	if pq < 0 || qp < 0 {
		panic(fmt.Sprintf("nni: %d-%d is not a branch", p, q))
	}
	p0, p1 := t.OtherSlots(p, pq)
	q0, q1 := t.OtherSlots(q, qp)
	return quartet{p: p, q: q, pq: pq, qp: qp, p0: p0, p1: p1, q0: q0, q1: q1}
}

// swap applies swap type s. Applying it twice restores the tree.
func (x quartet) swap(t *tree.Tree, s int) {
	ps := x.p0
	if s == 1 {
		ps = x.p1
	}
	t.Swap(x.p, ps, x.q, x.q0)
}

func (x quartet) lengths(t *tree.Tree) [5]float64 {
	return [5]float64{
		Central: t.LinkAt(x.p, x.pq).Length,
		P0:      t.LinkAt(x.p, x.p0).Length,
		P1:      t.LinkAt(x.p, x.p1).Length,
		Q0:      t.LinkAt(x.q, x.q0).Length,
		Q1:      t.LinkAt(x.q, x.q1).Length,
	}
}

func (x quartet) setLengths(t *tree.Tree, l [5]float64) {
	t.SetLength(x.p, x.q, l[Central])
	t.SetLength(x.p, t.Neighbor(x.p, x.p0), l[P0])
	t.SetLength(x.p, t.Neighbor(x.p, x.p1), l[P1])
	t.SetLength(x.q, t.Neighbor(x.q, x.q0), l[Q0])
	t.SetLength(x.q, t.Neighbor(x.q, x.q1), l[Q1])
}

// SortMoves orders moves by descending log-likelihood. Ties keep the order
// in which the branches were probed.
func SortMoves(moves []Move) {
	slices.SortStableFunc(moves, func(a, b Move) int { return cmp.Compare(b.LogL, a.LogL) })
}

// SelectConflictFree appends to dst the moves of sorted that share no
// endpoint with a better move already selected. sorted must be ordered by
// [SortMoves]. claimed is scratch space indexed by node id; it is cleared
// before returning.
func SelectConflictFree(dst, sorted []Move, claimed []bool) []Move {
	start := len(dst)
	for _, m := range sorted {
		if claimed[m.Node1] || claimed[m.Node2] {
			continue
		}
		claimed[m.Node1] = true
		claimed[m.Node2] = true
		dst = append(dst, m)
	}
	for _, m := range dst[start:] {
		claimed[m.Node1] = false
		claimed[m.Node2] = false
	}
	return dst
}
