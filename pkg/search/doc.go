// Package search drives the iterated tree search.
//
// A search starts from a user tree or one built by quartet puzzling,
// optimizes its branch lengths and climbs to a local optimum with NNI. Every
// following iteration perturbs the best tree, either by deleting and
// reinserting leaves (IQP) or by random NNIs, climbs again and keeps the
// result only when it beats the best log-likelihood by more than
// Options.TolLikelihood. Otherwise the best tree is restored from its Newick
// string and the next perturbation deletes more leaves.
//
// The number of iterations is governed by a [stoprule.Rule], an optional
// time limit and the context passed to [Searcher.Run]. A [Runner] wraps
// searches with a result cache keyed by alignment, starting tree and
// options.
//
// All randomness comes from one PCG stream seeded by Options.Seed, so a
// search with the same inputs and options is reproducible.
package search
