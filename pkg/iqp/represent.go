package iqp

import "github.com/matzehuels/iqpnni/pkg/tree"

// repLeaf is a representative leaf and its distance in branches below the
// subtree root.
type repLeaf struct {
	leaf   tree.NodeID
	height int
}

// represent returns up to KRepresent leaves of the subtree behind slot s of
// v, nearest first. Equal heights are ordered at random. Sets are cached
// per directed slot until the next reset.
func (e *Engine) represent(v tree.NodeID, s int) []repLeaf {
	k := int(v)*3 + s
	if e.repValid[k] {
		return e.reps[k]
	}
	w := e.t.Neighbor(v, s)
	out := e.reps[k][:0]
	if e.t.IsLeaf(w) {
		out = append(out, repLeaf{leaf: w})
	} else {
		s1, s2 := e.t.OtherSlots(w, e.t.SlotOf(w, v))
		a, b := e.represent(w, s1), e.represent(w, s2)
		i, j := 0, 0
		for len(out) < e.opts.KRepresent && (i < len(a) || j < len(b)) {
			var takeA bool
			switch {
			case j == len(b):
				takeA = true
			case i == len(a):
				takeA = false
			case a[i].height == b[j].height:
				takeA = e.rng.IntN(2) == 0
			default:
				takeA = a[i].height < b[j].height
			}
			var r repLeaf
			if takeA {
				r, i = a[i], i+1
			} else {
				r, j = b[j], j+1
			}
			out = append(out, repLeaf{leaf: r.leaf, height: r.height + 1})
		}
	}
	e.reps[k] = out
	e.repValid[k] = true
	return out
}
