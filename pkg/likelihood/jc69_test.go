package likelihood

import (
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/newick"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

func testAlignment(t *testing.T) *alignment.Alignment {
	t.Helper()
	a, err := alignment.New(
		[]string{"A", "B", "C", "D", "E"},
		[]string{
			"ACGTACGTACGTACGTAAGG",
			"ACGTACGTACGAACGTAAGC",
			"ACGAACGTTCGAACGTTAGC",
			"ACGAACCTTCGAACGATAGC",
			"ACGAACCTTCGAAGGATAGN",
		},
	)
	if err != nil {
		t.Fatalf("alignment.New: %v", err)
	}
	return a
}

func testTree(t *testing.T, a *alignment.Alignment, nwk string) *tree.Tree {
	t.Helper()
	tr, err := newick.Parse(nwk, a.Names)
	if err != nil {
		t.Fatalf("newick.Parse: %v", err)
	}
	return tr
}

func jc(l float64, same bool) float64 {
	e := math.Exp(-4.0 / 3.0 * l)
	if same {
		return 0.25 + 0.75*e
	}
	return 0.25 - 0.25*e
}

func TestEvaluateMatchesBruteForce(t *testing.T) {
	a, err := alignment.New([]string{"x", "y", "z"}, []string{"ACG", "ACT", "AGT"})
	if err != nil {
		t.Fatal(err)
	}
	tr, err := newick.Parse("(x:0.1,y:0.2,z:0.3);", a.Names)
	if err != nil {
		t.Fatal(err)
	}
	m := NewJC69(a, tr)

	lengths := []float64{0.1, 0.2, 0.3}
	seqs := []string{"ACG", "ACT", "AGT"}
	var want float64
	for site := 0; site < 3; site++ {
		var lik float64
		for root := 0; root < 4; root++ {
			term := 0.25
			for i, s := range seqs {
				state := map[byte]int{'A': 0, 'C': 1, 'G': 2, 'T': 3}[s[site]]
				term *= jc(lengths[i], state == root)
			}
			lik += term
		}
		want += math.Log(lik)
	}

	for _, e := range tr.Edges() {
		if got := m.Evaluate(e); math.Abs(got-want) > 1e-10 {
			t.Errorf("Evaluate(%v) = %.12f, want %.12f", e, got, want)
		}
	}
}

func TestEvaluateIndependentOfEdge(t *testing.T) {
	a := testAlignment(t)
	tr := testTree(t, a, "((A:0.05,B:0.1):0.07,C:0.2,(D:0.1,E:0.15):0.3);")
	m := NewJC69(a, tr)

	edges := tr.Edges()
	ref := m.Evaluate(edges[0])
	for _, e := range edges[1:] {
		if got := m.Evaluate(e); math.Abs(got-ref) > 1e-9 {
			t.Errorf("Evaluate(%v) = %v, want %v", e, got, ref)
		}
	}
}

func TestOptimizeBranchNeverDecreases(t *testing.T) {
	a := testAlignment(t)
	tr := testTree(t, a, "((A:2,B:0.000001):5,C:0.2,(D:0.1,E:3):0.3);")
	m := NewJC69(a, tr)

	for round := 0; round < 3; round++ {
		for _, e := range tr.Edges() {
			before := m.Evaluate(e)
			l, after := m.OptimizeBranch(e)
			if after < before {
				t.Errorf("OptimizeBranch(%v) lowered logl %v -> %v", e, before, after)
			}
			if l < MinLength || l > MaxLength {
				t.Errorf("OptimizeBranch(%v) length %v out of bounds", e, l)
			}
			if got := tr.Length(e.A, e.B); got != l {
				t.Errorf("tree length %v, optimizer reported %v", got, l)
			}
			if got := m.Evaluate(e); got != after {
				t.Errorf("Evaluate after optimize = %v, want %v", got, after)
			}
		}
	}
	if err := tr.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestInvalidateAfterSwap(t *testing.T) {
	a := testAlignment(t)
	tr := testTree(t, a, "((A:0.05,B:0.1):0.07,C:0.2,(D:0.1,E:0.15):0.3);")
	m := NewJC69(a, tr)
	OptimizeAll(m, tr, 2)

	e := tr.InternalEdges()[0]
	p, q := e.A, e.B
	ps, _ := tr.OtherSlots(p, tr.SlotOf(p, q))
	qs, _ := tr.OtherSlots(q, tr.SlotOf(q, p))
	tr.Swap(p, ps, q, qs)
	m.Invalidate(e)

	fresh := NewJC69(a, tr.Clone())
	for _, edge := range tr.Edges() {
		got, want := m.Evaluate(edge), fresh.Evaluate(edge)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("Evaluate(%v) after swap = %v, fresh oracle says %v", edge, got, want)
		}
	}
}

func TestOptimizeAllImproves(t *testing.T) {
	a := testAlignment(t)
	tr := testTree(t, a, "((A,B),C,(D,E));")
	m := NewJC69(a, tr)

	before := m.Evaluate(tr.Edges()[0])
	after := OptimizeAll(m, tr, DefaultRounds)
	if after < before {
		t.Errorf("OptimizeAll lowered logl %v -> %v", before, after)
	}
	if math.IsNaN(after) || math.IsInf(after, 0) {
		t.Errorf("OptimizeAll returned %v", after)
	}
}

func TestPatternLogLikelihoodsSum(t *testing.T) {
	a := testAlignment(t)
	tr := testTree(t, a, "((A:0.05,B:0.1):0.07,C:0.2,(D:0.1,E:0.15):0.3);")
	m := NewJC69(a, tr)
	e := tr.Edges()[2]

	sites := m.PatternLogLikelihoods(e, nil)
	if len(sites) != a.NumPatterns() {
		t.Fatalf("len = %d, want %d", len(sites), a.NumPatterns())
	}
	var sum float64
	for p, v := range sites {
		sum += float64(a.Weights[p]) * v
	}
	if got := m.Evaluate(e); math.Abs(got-sum) > 1e-9 {
		t.Errorf("weighted pattern sum = %v, Evaluate = %v", sum, got)
	}
}

func TestScalingOnDeepTrees(t *testing.T) {
	const n = 600
	names := make([]string, n)
	seqs := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("t%d", i)
		seqs[i] = "ACGTTGCAACGT"
	}
	a, err := alignment.New(names, seqs)
	if err != nil {
		t.Fatal(err)
	}
	// a caterpillar with long branches: unscaled vectors would underflow
	tr, err := tree.Star(n, MaxLength)
	if err != nil {
		t.Fatal(err)
	}
	for leaf := tree.NodeID(3); leaf < n; leaf++ {
		if _, err := tr.Graft(leaf, tree.NewEdge(leaf-1, tr.Neighbor(leaf-1, 0)), MaxLength); err != nil {
			t.Fatal(err)
		}
	}
	m := NewJC69(a, tr)
	got := m.Evaluate(tr.Edges()[0])
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("Evaluate = %v, want finite", got)
	}
	// leaves are practically independent, each site contributes log(1/4) per taxon
	want := n * 12 * math.Log(0.25)
	if math.Abs(got-want) > 1.0 {
		t.Errorf("Evaluate = %v, want about %v", got, want)
	}
}
