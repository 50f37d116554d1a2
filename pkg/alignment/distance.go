package alignment

import "math"

// MaxDistance caps saturated or undefined pairwise distances.
const MaxDistance = 10.0

// DistanceMatrix is a symmetric matrix of pairwise evolutionary distances.
type DistanceMatrix struct {
	n int
	d []float64
}

// NewDistanceMatrix returns an n x n zero matrix.
func NewDistanceMatrix(n int) *DistanceMatrix {
	return &DistanceMatrix{n: n, d: make([]float64, n*n)}
}

// Size returns the number of taxa.
func (m *DistanceMatrix) Size() int { return m.n }

// At returns the distance between taxa i and j.
func (m *DistanceMatrix) At(i, j int) float64 { return m.d[i*m.n+j] }

// Set writes the distance between i and j on both sides of the diagonal.
func (m *DistanceMatrix) Set(i, j int, v float64) {
	m.d[i*m.n+j] = v
	m.d[j*m.n+i] = v
}

// Distances computes Jukes-Cantor corrected distances from the proportion
// of differing sites, ignoring sites where either taxon is unknown.
func (a *Alignment) Distances() *DistanceMatrix {
	n := a.NumTaxa()
	m := NewDistanceMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var diff, total int
			for p, col := range a.Patterns {
				ci, cj := col[i], col[j]
				if ci == Unknown || cj == Unknown {
					continue
				}
				total += a.Weights[p]
				if ci != cj {
					diff += a.Weights[p]
				}
			}
			m.Set(i, j, jukesCantor(diff, total))
		}
	}
	return m
}

func jukesCantor(diff, total int) float64 {
	if total == 0 {
		return MaxDistance
	}
	p := float64(diff) / float64(total)
	arg := 1 - 4*p/3
	if arg <= 0 {
		return MaxDistance
	}
	d := -0.75 * math.Log(arg)
	if d > MaxDistance {
		return MaxDistance
	}
	return d
}
