package iqp

import (
	"math/rand/v2"

	"github.com/matzehuels/iqpnni/pkg/tree"
)

// BuildStartTree builds a tree over numTaxa taxa by quartet puzzling:
// taxa 0, 1 and 2 form a star and every other taxon is grafted, in random
// order, onto the branch its quartets vote for. Branch lengths are
// tree.DefaultLength, halved wherever a graft split a branch.
func BuildStartTree(numTaxa int, rng *rand.Rand, opts Options) (*tree.Tree, error) {
	t, err := tree.Star(numTaxa, tree.DefaultLength)
	if err != nil {
		return nil, err
	}
	e, err := New(t, nil, rng, opts)
	if err != nil {
		return nil, err
	}
	for _, i := range rng.Perm(numTaxa - 3) {
		if _, err := e.Reinsert(tree.NodeID(i + 3)); err != nil {
			return nil, err
		}
	}
	return t, nil
}
