package likelihood

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

const (
	// MinLength and MaxLength bound optimized branch lengths.
	MinLength = 1e-6
	MaxLength = 10.0

	scaleThreshold = 0x1p-256
	scaleFactor    = 0x1p256
	newtonSteps    = 50
	newtonEpsilon  = 1e-9
)

var logScaleFactor = math.Log(scaleFactor)

// JC69 is an [Oracle] under the Jukes-Cantor model with equal base
// frequencies and no rate heterogeneity.
//
// It keeps one conditional likelihood vector per directed neighbour slot:
// the vector stored for slot s of node v describes the subtree on v's side
// of the branch to that neighbour. Vectors are computed lazily and dropped
// by Invalidate.
//
// A JC69 is bound to one tree and is not safe for concurrent use.
type JC69 struct {
	t       *tree.Tree
	nPat    int
	weights []float64

	tips    [][]float64 // per taxon, nPat*4
	partial [][]float64 // per node*3+slot, nPat*4
	scale   [][]float64 // per node*3+slot, log scaling per pattern
	valid   []bool

	zeros []float64

	// branch buffers reused by OptimizeBranch and Evaluate
	c0, c1, off []float64
}

var (
	_ Oracle        = (*JC69)(nil)
	_ SiteEvaluator = (*JC69)(nil)
)

// NewJC69 returns an oracle computing likelihoods of t for aln. Leaf i of t
// must correspond to aln.Names[i].
func NewJC69(aln *alignment.Alignment, t *tree.Tree) *JC69 {
	nPat := aln.NumPatterns()
	m := &JC69{
		t:       t,
		nPat:    nPat,
		weights: make([]float64, nPat),
		tips:    make([][]float64, aln.NumTaxa()),
		partial: make([][]float64, 3*t.NumNodes()),
		scale:   make([][]float64, 3*t.NumNodes()),
		valid:   make([]bool, 3*t.NumNodes()),
		zeros:   make([]float64, nPat),
		c0:      make([]float64, nPat),
		c1:      make([]float64, nPat),
		off:     make([]float64, nPat),
	}
	for p, w := range aln.Weights {
		m.weights[p] = float64(w)
	}
	for taxon := range m.tips {
		v := make([]float64, 4*nPat)
		for p, col := range aln.Patterns {
			c := col[taxon]
			for x := 0; x < 4; x++ {
				if c == alignment.Unknown || int(c) == x {
					v[4*p+x] = 1
				}
			}
		}
		m.tips[taxon] = v
	}
	return m
}

// Evaluate returns the log-likelihood of the tree computed at e.
func (m *JC69) Evaluate(e tree.Edge) float64 {
	m.prepare(e)
	return m.logAt(m.t.Length(e.A, e.B))
}

// OptimizeBranch maximizes the likelihood over the length of e with a
// safeguarded Newton-Raphson iteration. A step is only taken when it
// improves the log-likelihood, so the result is never worse than the start.
func (m *JC69) OptimizeBranch(e tree.Edge) (float64, float64) {
	m.prepare(e)
	start := m.t.Length(e.A, e.B)
	best := start
	bestLogl := m.logAt(best)

	for i := 0; i < newtonSteps; i++ {
		d1, d2 := m.derivatives(best)
		var step float64
		if d2 < 0 {
			step = -d1 / d2
		} else {
			step = math.Copysign(math.Max(0.5*best, 1e-4), d1)
		}
		improved := false
		for halvings := 0; halvings < 30; halvings++ {
			cand := math.Min(MaxLength, math.Max(MinLength, best+step))
			if cand == best {
				break
			}
			if l := m.logAt(cand); l > bestLogl {
				improved = true
				converged := math.Abs(cand-best) < newtonEpsilon*math.Max(1, best) || l-bestLogl < 1e-12
				best, bestLogl = cand, l
				if converged {
					i = newtonSteps
				}
				break
			}
			step /= 2
		}
		if !improved {
			break
		}
	}

	if best != start {
		m.t.SetLength(e.A, e.B, best)
		m.clearFrom(e.A, e.B, false)
		m.clearFrom(e.B, e.A, false)
	}
	return best, bestLogl
}

// Invalidate drops every vector whose subtree contains an endpoint of e.
func (m *JC69) Invalidate(e tree.Edge) {
	m.clearFrom(e.A, tree.None, true)
	m.clearFrom(e.B, tree.None, true)
}

// InvalidateAll drops every cached vector.
func (m *JC69) InvalidateAll() {
	for i := range m.valid {
		m.valid[i] = false
	}
}

// PatternLogLikelihoods writes the log-likelihood of every pattern at e to
// dst, growing it as needed.
func (m *JC69) PatternLogLikelihoods(e tree.Edge, dst []float64) []float64 {
	m.prepare(e)
	if cap(dst) < m.nPat {
		dst = make([]float64, m.nPat)
	}
	dst = dst[:m.nPat]
	E := math.Exp(-4.0 / 3.0 * m.t.Length(e.A, e.B))
	for p := range dst {
		dst[p] = math.Log(math.Max(m.c0[p]+E*m.c1[p], math.SmallestNonzeroFloat64)) + m.off[p]
	}
	return dst
}

// prepare fills the per-pattern coefficients of the likelihood at e as a
// function of its length: L_p(l) = c0 + c1*exp(-4l/3), times exp(off).
func (m *JC69) prepare(e tree.Edge) {
	a, b := e.A, e.B
	va, sa := m.vector(a, m.t.SlotOf(a, b))
	vb, sb := m.vector(b, m.t.SlotOf(b, a))
	for p := 0; p < m.nPat; p++ {
		x, y := va[4*p:4*p+4], vb[4*p:4*p+4]
		sumA := x[0] + x[1] + x[2] + x[3]
		sumB := y[0] + y[1] + y[2] + y[3]
		dot := x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3]
		m.c0[p] = sumA * sumB / 16
		m.c1[p] = (dot - sumA*sumB/4) / 4
		m.off[p] = sa[p] + sb[p]
	}
}

func (m *JC69) logAt(l float64) float64 {
	E := math.Exp(-4.0 / 3.0 * l)
	var sum float64
	for p := 0; p < m.nPat; p++ {
		f := math.Max(m.c0[p]+E*m.c1[p], math.SmallestNonzeroFloat64)
		sum += m.weights[p] * (math.Log(f) + m.off[p])
	}
	return sum
}

func (m *JC69) derivatives(l float64) (d1, d2 float64) {
	E := math.Exp(-4.0 / 3.0 * l)
	for p := 0; p < m.nPat; p++ {
		f := math.Max(m.c0[p]+E*m.c1[p], math.SmallestNonzeroFloat64)
		g := m.c1[p] * (-4.0 / 3.0) * E / f
		h := m.c1[p] * (16.0 / 9.0) * E / f
		d1 += m.weights[p] * g
		d2 += m.weights[p] * (h - g*g)
	}
	return d1, d2
}

// vector returns the conditional likelihoods and log scalers of the
// subtree on v's side of the branch in slot s, computing them if needed.
func (m *JC69) vector(v tree.NodeID, s int) ([]float64, []float64) {
	if m.t.IsLeaf(v) {
		return m.tips[v], m.zeros
	}
	k := int(v)*3 + s
	if m.valid[k] {
		return m.partial[k], m.scale[k]
	}
	if m.partial[k] == nil {
		m.partial[k] = make([]float64, 4*m.nPat)
		m.scale[k] = make([]float64, m.nPat)
	}
	out, outScale := m.partial[k], m.scale[k]

	s1, s2 := m.t.OtherSlots(v, s)
	w1, w2 := m.t.LinkAt(v, s1), m.t.LinkAt(v, s2)
	v1, sc1 := m.vector(w1.To, m.t.SlotOf(w1.To, v))
	v2, sc2 := m.vector(w2.To, m.t.SlotOf(w2.To, v))
	e1 := math.Exp(-4.0 / 3.0 * w1.Length)
	e2 := math.Exp(-4.0 / 3.0 * w2.Length)
	d1, d2 := (1-e1)/4, (1-e2)/4

	for p := 0; p < m.nPat; p++ {
		x, y, o := v1[4*p:4*p+4], v2[4*p:4*p+4], out[4*p:4*p+4]
		t1 := d1 * (x[0] + x[1] + x[2] + x[3])
		t2 := d2 * (y[0] + y[1] + y[2] + y[3])
		for st := 0; st < 4; st++ {
			o[st] = (t1 + e1*x[st]) * (t2 + e2*y[st])
		}
		outScale[p] = sc1[p] + sc2[p]
		if floats.Max(o) < scaleThreshold {
			floats.Scale(scaleFactor, o)
			outScale[p] -= logScaleFactor
		}
	}
	m.valid[k] = true
	return out, outScale
}

// clearFrom walks away from x (not crossing back to from) and drops the
// vectors that look back toward x. With force set, x and its immediate
// neighbours are cleared even if already invalid, which is required after
// a topology change because their dependencies moved.
func (m *JC69) clearFrom(x, from tree.NodeID, force bool) {
	leaf := m.t.IsLeaf(x)
	for s := 0; s < m.t.Degree(x); s++ {
		w := m.t.Neighbor(x, s)
		if w == from {
			continue
		}
		if leaf {
			m.clearFrom(w, x, force)
			continue
		}
		k := int(x)*3 + s
		if !m.valid[k] && !force {
			continue
		}
		m.valid[k] = false
		m.clearFrom(w, x, false)
	}
}
