package candidate

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/iqpnni/pkg/alignment"
)

// DefaultEpsilon is the RELL score difference below which two trees tie for
// a replicate.
const DefaultEpsilon = 0.5

// Bootstrap tracks, for each resampled replicate of the alignment, the
// candidate with the best RELL score: the per-pattern log-likelihoods of
// the tree weighted by the replicate's pattern counts.
type Bootstrap struct {
	weights [][]float64
	best    []float64
	counts  []int
	trees   []int
	eps     float64
	rng     *rand.Rand
}

// NewBootstrap draws replicates resampled alignments from aln. Each
// replicate resamples NumSites columns with replacement and stores the
// resulting count per pattern. eps <= 0 selects DefaultEpsilon.
func NewBootstrap(aln *alignment.Alignment, replicates int, eps float64, rng *rand.Rand) *Bootstrap {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	sites := make([]int, 0, aln.NumSites)
	for p, w := range aln.Weights {
		for range w {
			sites = append(sites, p)
		}
	}
	b := &Bootstrap{
		weights: make([][]float64, replicates),
		best:    make([]float64, replicates),
		counts:  make([]int, replicates),
		trees:   make([]int, replicates),
		eps:     eps,
		rng:     rng,
	}
	for r := range b.weights {
		w := make([]float64, len(aln.Weights))
		for range sites {
			w[sites[rng.IntN(len(sites))]]++
		}
		b.weights[r] = w
		b.best[r] = math.Inf(-1)
		b.trees[r] = -1
	}
	return b
}

// Replicates returns the number of replicates.
func (b *Bootstrap) Replicates() int { return len(b.weights) }

// Update scores candidate id on every replicate. A clearly better score
// takes the replicate over; a score within epsilon of the best takes it
// with probability 1/(ties+1), so every tied tree is equally likely to
// hold it in the end.
func (b *Bootstrap) Update(id int, sites []float64) int {
	updated := 0
	for r, w := range b.weights {
		rell := floats.Dot(sites, w)
		better := rell > b.best[r]+b.eps
		tied := !better && rell > b.best[r]-b.eps && b.rng.Float64() <= 1/float64(b.counts[r]+1)
		if !better && !tied {
			continue
		}
		if rell <= b.best[r]+b.eps {
			b.counts[r]++
		} else {
			b.counts[r] = 1
		}
		if rell > b.best[r] {
			b.best[r] = rell
		}
		b.trees[r] = id
		updated++
	}
	return updated
}

// Winners returns the candidate id holding each replicate, -1 for a
// replicate that has seen no candidate.
func (b *Bootstrap) Winners() []int { return append([]int(nil), b.trees...) }

// Frequencies returns, per candidate id below n, the fraction of
// replicates it holds.
func (b *Bootstrap) Frequencies(n int) []float64 {
	freq := make([]float64, n)
	if len(b.trees) == 0 {
		return freq
	}
	for _, id := range b.trees {
		if id >= 0 && id < n {
			freq[id]++
		}
	}
	floats.Scale(1/float64(len(b.trees)), freq)
	return freq
}
