package iqp

import "github.com/matzehuels/iqpnni/pkg/tree"

// resetVotes drops every cached representative set, vote and partial sum.
// The tree changes after each reinsertion, so nothing carries over.
func (e *Engine) resetVotes() {
	clear(e.repValid)
	clear(e.votes)
	clear(e.partialValid)
}

// castVotes lets every attached internal node vote on where del belongs.
// Each triple of representatives, one per slot, is resolved as a quartet
// with del; the winning slot of the node gets one vote.
func (e *Engine) castVotes(del tree.NodeID) {
	for id := e.t.NumTaxa(); id < e.t.NumNodes(); id++ {
		v := tree.NodeID(id)
		if e.t.Degree(v) != 3 {
			continue
		}
		r0, r1, r2 := e.represent(v, 0), e.represent(v, 1), e.represent(v, 2)
		for _, a := range r0 {
			for _, b := range r1 {
				for _, c := range r2 {
					e.votes[id*3+e.assess(a.leaf, b.leaf, c.leaf, del)]++
				}
			}
		}
	}
}

func (e *Engine) assess(l0, l1, l2, del tree.NodeID) int {
	if e.opts.Assess == Parsimony {
		return AssessParsimony(e.opts.Alignment, l0, l1, l2, del, e.tie)
	}
	return AssessDistance(e.opts.Distances, l0, l1, l2, del)
}

func (e *Engine) tie() int { return e.rng.IntN(3) }

// partial returns the votes cast inside the subtree rooted at node, seen
// from dad, that point toward dad.
func (e *Engine) partial(node, dad tree.NodeID) int {
	if e.t.IsLeaf(node) {
		return 0
	}
	s := e.t.SlotOf(node, dad)
	k := int(node)*3 + s
	if e.partialValid[k] {
		return e.partials[k]
	}
	sum := e.votes[k]
	s1, s2 := e.t.OtherSlots(node, s)
	sum += e.partial(e.t.Neighbor(node, s1), node)
	sum += e.partial(e.t.Neighbor(node, s2), node)
	e.partials[k] = sum
	e.partialValid[k] = true
	return sum
}

// bonus returns the number of votes pointing at branch a-b for the leaf
// whose votes were last cast.
func (e *Engine) bonus(a, b tree.NodeID) int {
	return e.partial(a, b) + e.partial(b, a)
}

// bestBranch collects the branches with the highest bonus in traversal
// order and picks one of them uniformly at random.
func (e *Engine) bestBranch() (tree.Edge, int) {
	e.edges = e.t.AppendEdges(e.edges[:0])
	e.ties = e.ties[:0]
	best := 0
	for _, edge := range e.edges {
		score := e.bonus(edge.A, edge.B)
		switch {
		case score > best:
			best = score
			e.ties = append(e.ties[:0], edge)
		case score == best:
			e.ties = append(e.ties, edge)
		}
	}
	return e.ties[e.rng.IntN(len(e.ties))], best
}
