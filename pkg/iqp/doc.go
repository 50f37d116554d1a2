// Package iqp implements the Important Quartet Puzzling perturbation.
//
// A perturbation deletes k random leaves from the tree and puts them back
// one at a time. For each leaf the engine lets every internal node of the
// reduced tree vote on where the leaf belongs: the node draws a few
// representative leaves from each of its three subtrees, and every triple of
// representatives together with the deleted leaf forms a quartet whose
// resolution points toward one of the three subtrees. Votes are summed along
// the tree so that every branch collects the votes pointing at it, and the
// leaf is grafted onto the branch with the most votes.
//
// Quartets are resolved either by a distance matrix (the pairing with the
// smallest sum of within-pair distances wins) or by parsimony (the pairing
// supported by the most alignment columns wins).
//
// All random choices come from the *rand.Rand passed to [New], so a run is
// reproducible from its seed.
package iqp
