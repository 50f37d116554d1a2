// Package parsimony scores trees by the Fitch parsimony criterion.
//
// Parsimony scores are cheap compared to likelihoods, so the NNI engine can
// use them to skip rearrangements that do not look promising before asking
// the likelihood oracle.
package parsimony

import (
	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Scorer computes Fitch parsimony scores for trees over one alignment. It
// reuses internal buffers and is not safe for concurrent use.
type Scorer struct {
	weights []int
	tips    [][]uint8 // per taxon, one state mask per pattern
	sets    [][]uint8 // per node, scratch state sets
	order   []visit
}

type visit struct{ node, parent tree.NodeID }

// NewScorer prepares a scorer for trees with numNodes arena slots.
func NewScorer(aln *alignment.Alignment, numNodes int) *Scorer {
	s := &Scorer{
		weights: aln.Weights,
		tips:    make([][]uint8, aln.NumTaxa()),
		sets:    make([][]uint8, numNodes),
		order:   make([]visit, 0, numNodes),
	}
	for taxon := range s.tips {
		m := make([]uint8, aln.NumPatterns())
		for p, col := range aln.Patterns {
			m[p] = Mask(col[taxon])
		}
		s.tips[taxon] = m
	}
	return s
}

// Mask returns the Fitch state set of a single alignment state.
func Mask(state uint8) uint8 {
	if state >= alignment.NumStates {
		return 0x0f
	}
	return 1 << state
}

// Score returns the weighted Fitch parsimony score of t.
func (s *Scorer) Score(t *tree.Tree) int {
	start := t.Start()
	if start == tree.None {
		return 0
	}
	s.order = s.order[:0]
	t.Walk(func(node, parent tree.NodeID) {
		s.order = append(s.order, visit{node, parent})
	})

	score := 0
	for i := len(s.order) - 1; i >= 1; i-- {
		v := s.order[i]
		if t.IsLeaf(v.node) {
			continue
		}
		set := s.buffer(v.node)
		first := true
		for slot := 0; slot < t.Degree(v.node); slot++ {
			c := t.Neighbor(v.node, slot)
			if c == v.parent {
				continue
			}
			child := s.setOf(t, c)
			if first {
				copy(set, child)
				first = false
				continue
			}
			score += s.merge(set, child)
		}
	}
	x := t.Neighbor(start, 0)
	score += s.count(s.tips[start], s.setOf(t, x))
	return score
}

// merge intersects child into set, falling back to the union, and returns
// the weighted number of state changes.
func (s *Scorer) merge(set, child []uint8) int {
	cost := 0
	for p := range set {
		if in := set[p] & child[p]; in != 0 {
			set[p] = in
		} else {
			set[p] |= child[p]
			cost += s.weights[p]
		}
	}
	return cost
}

func (s *Scorer) count(a, b []uint8) int {
	cost := 0
	for p := range a {
		if a[p]&b[p] == 0 {
			cost += s.weights[p]
		}
	}
	return cost
}

func (s *Scorer) setOf(t *tree.Tree, n tree.NodeID) []uint8 {
	if t.IsLeaf(n) {
		return s.tips[n]
	}
	return s.sets[n]
}

func (s *Scorer) buffer(n tree.NodeID) []uint8 {
	if s.sets[n] == nil {
		s.sets[n] = make([]uint8, len(s.weights))
	}
	return s.sets[n]
}
