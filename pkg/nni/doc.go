// Package nni implements nearest-neighbour-interchange hill climbing on an
// unrooted binary tree.
//
// Every internal branch p-q separates four subtrees, two hanging from p and
// two from q. An NNI exchanges one subtree of p with one subtree of q; of
// the three possible arrangements, the current one and two alternatives,
// the engine probes the two alternatives. A probe swaps the subtrees in
// place, asks the likelihood oracle to optimize the affected branch
// lengths, records the result as a [Move] and restores the tree exactly.
//
// # Steps
//
// One [Engine.Step] probes every internal branch, keeps the moves that
// improve on the current log-likelihood, picks a subset of them that share
// no endpoint, and applies that subset at once. Because the probes were
// scored independently, the combined tree is checked: it must score at
// least as well as the best single move. When it does not, the step is
// rolled back and only the best move is applied. A combined tree that
// fails to improve on the starting score is rolled back and retried with
// half as many moves.
//
// [Engine.Search] repeats steps until none applies a move, which is the
// local optimum the IQP perturbation starts from.
//
// # Buffers
//
// An Engine owns every buffer it needs, sized once for the taxon count of
// its tree. It keeps no package-level state, but it is bound to one tree
// and one oracle and is not safe for concurrent use.
package nni
