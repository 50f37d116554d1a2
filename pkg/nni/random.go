package nni

import (
	"math/rand/v2"

	"github.com/matzehuels/iqpnni/pkg/likelihood"
)

// RandomNNIs perturbs the tree with count random NNIs and returns the
// log-likelihood after one optimization sweep. Moves are drawn in rounds of
// at most a fifth of the internal branches; within a round no two moves
// share an endpoint.
func (e *Engine) RandomNNIs(rng *rand.Rand, count int) float64 {
	e.edges = e.t.AppendInternalEdges(e.edges[:0])
	if len(e.edges) == 0 || count <= 0 {
		return likelihood.OptimizeAll(e.o, e.t, 1)
	}
	perRound := max(1, len(e.edges)/5)

	done := 0
	for done < count {
		want := min(perRound, count-done)
		e.edges = e.t.AppendInternalEdges(e.edges[:0])
		e.selected = e.selected[:0]
		for tries := 0; len(e.selected) < want && tries < 100*len(e.edges); tries++ {
			edge := e.edges[rng.IntN(len(e.edges))]
			if e.claimed[edge.A] || e.claimed[edge.B] {
				continue
			}
			e.claimed[edge.A], e.claimed[edge.B] = true, true
			e.selected = append(e.selected, Move{Node1: edge.A, Node2: edge.B, Swap: rng.IntN(2)})
		}
		for _, m := range e.selected {
			e.claimed[m.Node1], e.claimed[m.Node2] = false, false
			quartetOf(e.t, m.Node1, m.Node2).swap(e.t, m.Swap)
		}
		done += len(e.selected)
	}
	e.o.InvalidateAll()
	return likelihood.OptimizeAll(e.o, e.t, 1)
}
