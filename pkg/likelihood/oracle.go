// Package likelihood defines the likelihood oracle the search engines query
// and ships a Jukes-Cantor implementation of it.
//
// The engines never look inside the model: they ask for the log-likelihood
// of the tree evaluated at a branch, ask for one branch length to be
// optimized, and report which cached state went stale after they moved a
// subtree. Any implementation must guarantee that optimizing a branch never
// lowers the log-likelihood and that evaluating the same topology and branch
// lengths twice returns the same value.
package likelihood

import "github.com/matzehuels/iqpnni/pkg/tree"

// Oracle computes log-likelihoods for one tree.
type Oracle interface {
	// Evaluate returns the log-likelihood of the tree computed at e.
	Evaluate(e tree.Edge) float64

	// OptimizeBranch sets the length of e to a local optimum and returns the
	// new length and log-likelihood. The log-likelihood never decreases.
	OptimizeBranch(e tree.Edge) (length, logl float64)

	// Invalidate drops cached state that depends on the neighbourhood of
	// either endpoint of e. Call it after a topology change at e.
	Invalidate(e tree.Edge)

	// InvalidateAll drops every cached state.
	InvalidateAll()
}

// SiteEvaluator is implemented by oracles that can report per-pattern
// log-likelihoods, as needed by the resampling bootstrap.
type SiteEvaluator interface {
	PatternLogLikelihoods(e tree.Edge, dst []float64) []float64
}

// DefaultRounds is the number of sweeps OptimizeAll makes when asked for a
// full optimization.
const DefaultRounds = 5

// roundTolerance stops OptimizeAll once a sweep gains less than this.
const roundTolerance = 1e-4

// OptimizeAll optimizes every branch of t in traversal order for up to
// rounds sweeps and returns the final log-likelihood.
func OptimizeAll(o Oracle, t *tree.Tree, rounds int) float64 {
	edges := t.Edges()
	if len(edges) == 0 {
		return 0
	}
	if rounds < 1 {
		rounds = 1
	}
	logl := o.Evaluate(edges[0])
	for r := 0; r < rounds; r++ {
		prev := logl
		for _, e := range edges {
			_, logl = o.OptimizeBranch(e)
		}
		if logl-prev < roundTolerance {
			break
		}
	}
	return logl
}
