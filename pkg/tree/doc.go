// Package tree implements the unrooted binary tree that the search engines
// rearrange.
//
// # Arena layout
//
// A tree over n taxa owns a fixed arena of 2n-2 nodes. Leaf ids 0..n-1 are
// taxon indices; internal ids n..2n-3 are recycled as leaves are deleted and
// grafted back. Every node stores its neighbours in up to three slots, each
// carrying the length of the branch to that neighbour:
//
//	t, _ := tree.Star(5, tree.DefaultLength)
//	t.Graft(3, tree.NewEdge(0, 5), tree.DefaultLength)
//	t.Graft(4, tree.NewEdge(1, 5), tree.DefaultLength)
//
// # Rearrangements
//
// [Tree.Swap] is the primitive behind nearest neighbour interchange: it
// exchanges two subtrees hanging off the ends of an internal branch. Applying
// the same swap twice restores the original slots and lengths exactly, which
// is what lets the NNI engine probe a move and undo it without drift.
//
// [Tree.DeleteLeaf] and [Tree.Graft] implement the leaf removal and
// reinsertion used by the IQP perturbation. [Tree.SnapshotInto] and
// [Tree.Restore] capture and roll back the whole arena.
package tree
