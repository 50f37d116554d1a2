package iqp

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/likelihood"
	"github.com/matzehuels/iqpnni/pkg/newick"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

var letters = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

func parse(t *testing.T, nwk string, n int) *tree.Tree {
	t.Helper()
	tr, err := newick.Parse(nwk, letters[:n])
	if err != nil {
		t.Fatalf("newick.Parse(%s): %v", nwk, err)
	}
	return tr
}

// treeDistances returns the number of branches between every pair of
// leaves, an additive metric for tr.
func treeDistances(tr *tree.Tree) *alignment.DistanceMatrix {
	n := tr.NumTaxa()
	d := alignment.NewDistanceMatrix(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.Set(i, j, float64(tr.PathLength(tree.NodeID(i), tree.NodeID(j))))
		}
	}
	return d
}

func newRand(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }

func TestBonusFavoursTrueBranch(t *testing.T) {
	truth := parse(t, "((A,B),(C,D),E);", 5)
	d := treeDistances(truth)
	tr := truth.Clone()
	const del = tree.NodeID(4)
	joined, err := tr.DeleteLeaf(del)
	if err != nil {
		t.Fatal(err)
	}

	e, err := New(tr, nil, newRand(1), Options{Distances: d})
	if err != nil {
		t.Fatal(err)
	}
	e.resetVotes()
	e.castVotes(del)
	for _, edge := range tr.Edges() {
		want := 2
		if edge == joined {
			want = 4
		}
		if got := e.bonus(edge.A, edge.B); got != want {
			t.Errorf("bonus(%v) = %d, want %d", edge, got, want)
		}
	}

	// The winning branch is the only one where grafting reproduces the
	// distances exactly.
	var exact []tree.Edge
	for _, edge := range tr.Edges() {
		c := tr.Clone()
		if _, err := c.Graft(del, edge, tree.DefaultLength); err != nil {
			t.Fatal(err)
		}
		misfit := 0.0
		for i := 0; i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				misfit += math.Abs(float64(c.PathLength(tree.NodeID(i), tree.NodeID(j))) - d.At(i, j))
			}
		}
		if misfit == 0 {
			exact = append(exact, edge)
		}
	}
	if len(exact) != 1 || exact[0] != joined {
		t.Fatalf("exact branches = %v, want only %v", exact, joined)
	}

	got, err := e.Reinsert(del)
	if err != nil {
		t.Fatal(err)
	}
	if got != joined {
		t.Errorf("Reinsert chose %v, want %v", got, joined)
	}
	if newick.Canonical(tr) != newick.Canonical(truth) {
		t.Errorf("tree = %s, want %s", newick.Canonical(tr), newick.Canonical(truth))
	}
}

func TestBuildStartTreeRecoversAdditiveTree(t *testing.T) {
	for _, nwk := range []string{
		"((A,B),C,(D,(E,(F,(G,H)))));",
		"((A,E),(B,F),((C,G),(D,H)));",
	} {
		truth := parse(t, nwk, 8)
		for seed := uint64(1); seed <= 5; seed++ {
			tr, err := BuildStartTree(8, newRand(seed), Options{Distances: treeDistances(truth)})
			if err != nil {
				t.Fatalf("BuildStartTree: %v", err)
			}
			if err := tr.Validate(); err != nil {
				t.Fatal(err)
			}
			if got, want := newick.Canonical(tr), newick.Canonical(truth); got != want {
				t.Errorf("%s seed %d: tree = %s, want %s", nwk, seed, got, want)
			}
		}
	}
}

func TestDeleteAndReinsertKeepsTreeBinary(t *testing.T) {
	for _, assess := range []Assessment{Distance, Parsimony} {
		tr, o, a := jcFixture(t)
		before := tr.NumLeaves()
		e, err := New(tr, o, newRand(3), Options{Assess: assess, Distances: a.Distances(), Alignment: a})
		if err != nil {
			t.Fatal(err)
		}
		k, err := e.DeleteLeaves(2)
		if err != nil {
			t.Fatal(err)
		}
		if k != 2 || len(e.Deleted()) != 2 || tr.NumLeaves() != before-2 {
			t.Fatalf("%v: deleted %d (%v), %d leaves left", assess, k, e.Deleted(), tr.NumLeaves())
		}
		for _, leaf := range e.Deleted() {
			if tr.Attached(leaf) {
				t.Errorf("%v: deleted leaf %d still attached", assess, leaf)
			}
		}
		if err := e.ReinsertLeaves(); err != nil {
			t.Fatal(err)
		}
		if tr.NumLeaves() != before {
			t.Errorf("%v: %d leaves after reinsertion, want %d", assess, tr.NumLeaves(), before)
		}
		if err := tr.Validate(); err != nil {
			t.Fatalf("%v: %v", assess, err)
		}
		for id := 0; id < tr.NumNodes(); id++ {
			want := 3
			if tr.IsLeaf(tree.NodeID(id)) {
				want = 1
			}
			if got := tr.Degree(tree.NodeID(id)); got != want {
				t.Errorf("%v: node %d has degree %d, want %d", assess, id, got, want)
			}
		}
	}
}

func TestDeleteLeavesBound(t *testing.T) {
	rng := newRand(9)
	for n := 5; n <= 8; n++ {
		for k := 0; k <= n+2; k++ {
			d := alignment.NewDistanceMatrix(n)
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					d.Set(i, j, rng.Float64())
				}
			}
			tr, err := BuildStartTree(n, rng, Options{Distances: d})
			if err != nil {
				t.Fatal(err)
			}
			e, err := New(tr, nil, rng, Options{Distances: d})
			if err != nil {
				t.Fatal(err)
			}
			got, err := e.DeleteLeaves(k)
			if err != nil {
				t.Fatalf("n=%d k=%d: %v", n, k, err)
			}
			if want := min(k, n-4); got != want {
				t.Errorf("n=%d k=%d: deleted %d, want %d", n, k, got, want)
			}
			if tr.NumLeaves() < 4 {
				t.Errorf("n=%d k=%d: %d leaves left", n, k, tr.NumLeaves())
			}
			seen := make(map[tree.NodeID]bool)
			for _, leaf := range e.Deleted() {
				if seen[leaf] {
					t.Errorf("n=%d k=%d: leaf %d deleted twice", n, k, leaf)
				}
				seen[leaf] = true
			}
		}
	}
}

func jcFixture(t *testing.T) (*tree.Tree, *likelihood.JC69, *alignment.Alignment) {
	t.Helper()
	a, err := alignment.New(letters[:6], []string{
		"AAAAAAAAAACCCCCCCCCCGGGGGGGGGGTTTTTACGT",
		"AAAAAAAAAACCCCCCCCCCGGGGGGGGGGTTTTTACGA",
		"CCCCCCCCCCAAAAAAAAAAGGGGGGGGGGTTTTTACGT",
		"CCCCCCCCCCAAAAAAAAAAGGGGGGGGGGTTTTTAGGT",
		"CCCCCCCCCCCCCCCCCCCCTTTTTTTTTTTTTTTACGT",
		"CCCCCCCCCCCCCCCCCCCCTTTTTTTTTTTTTTTCCGT",
	})
	if err != nil {
		t.Fatal(err)
	}
	tr, err := newick.Parse("((A,B),(C,D),(E,F));", a.Names)
	if err != nil {
		t.Fatal(err)
	}
	return tr, likelihood.NewJC69(a, tr), a
}

func TestPerturbIsReproducible(t *testing.T) {
	var trees [2]string
	for i := range trees {
		tr, o, a := jcFixture(t)
		e, err := New(tr, o, newRand(42), Options{Distances: a.Distances()})
		if err != nil {
			t.Fatal(err)
		}
		logl, err := e.Perturb(2)
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(logl) || math.IsInf(logl, 0) || logl >= 0 {
			t.Fatalf("logl = %v", logl)
		}
		if got := o.Evaluate(tr.Edges()[0]); math.Abs(got-logl) > 1e-8 {
			t.Errorf("oracle reports %v after Perturb returned %v", got, logl)
		}
		if err := tr.Validate(); err != nil {
			t.Fatal(err)
		}
		trees[i] = newick.Format(tr, a.Names)
	}
	if trees[0] != trees[1] {
		t.Errorf("same seed gave %s and %s", trees[0], trees[1])
	}
}

func TestAssessDistance(t *testing.T) {
	d := alignment.NewDistanceMatrix(4)
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			d.Set(i, j, 1)
		}
	}
	if got := AssessDistance(d, 0, 1, 2, 3); got != 2 {
		t.Errorf("all-equal distances resolved to %d, want 2", got)
	}
	d.Set(1, 3, 0.5)
	if got := AssessDistance(d, 0, 1, 2, 3); got != 1 {
		t.Errorf("close pair (1,3) resolved to %d, want 1", got)
	}
	d.Set(0, 3, 0.1)
	if got := AssessDistance(d, 0, 1, 2, 3); got != 0 {
		t.Errorf("close pair (0,3) resolved to %d, want 0", got)
	}
}

func TestAssessParsimony(t *testing.T) {
	a, err := alignment.New([]string{"w", "x", "y", "z"}, []string{
		"AAGN",
		"CCTC",
		"AATA",
		"CCGC",
	})
	if err != nil {
		t.Fatal(err)
	}
	noTie := func() int { t.Fatal("unexpected tie"); return 0 }
	if got := AssessParsimony(a, 0, 1, 2, 3, noTie); got != 1 {
		t.Errorf("resolved to %d, want 1", got)
	}

	flat, err := alignment.New([]string{"w", "x", "y", "z"}, []string{"A", "C", "G", "T"})
	if err != nil {
		t.Fatal(err)
	}
	if got := AssessParsimony(flat, 0, 1, 2, 3, func() int { return 2 }); got != 2 {
		t.Errorf("tie resolved to %d, want the tie breaker's 2", got)
	}
}

func TestSchedule(t *testing.T) {
	s := NewSchedule(30, 0)
	if lo, hi := s.Bounds(); lo != 10 || hi != 20 || s.K() != 10 {
		t.Fatalf("bounds = %d..%d k = %d, want 10..20 k = 10", lo, hi, s.K())
	}
	for i := 0; i < 2; i++ {
		s.Increase()
	}
	if s.K() != 10 {
		t.Errorf("k = %d after two misses, want 10", s.K())
	}
	s.Increase()
	if s.K() != 11 {
		t.Errorf("k = %d after three misses, want 11", s.K())
	}
	s.Reset()
	if s.K() != 10 {
		t.Errorf("k = %d after reset, want 10", s.K())
	}

	if _, hi := NewSchedule(500, 0).Bounds(); hi != 100 {
		t.Errorf("max for 500 taxa = %d, want 100", hi)
	}

	fixed := NewSchedule(20, 0.1)
	for i := 0; i < 50; i++ {
		fixed.Increase()
	}
	if fixed.K() != 2 {
		t.Errorf("fixed k = %d, want 2", fixed.K())
	}
	if k := NewSchedule(5, 0.01).K(); k != 1 {
		t.Errorf("tiny proportion k = %d, want 1", k)
	}

	capped := NewSchedule(24, 0)
	for i := 0; i < 1000; i++ {
		capped.Increase()
	}
	if capped.K() != 20 {
		t.Errorf("k = %d after many misses, want the cap 20", capped.K())
	}
}

func TestNewRejectsMissingInputs(t *testing.T) {
	tr := parse(t, "((A,B),C,(D,E));", 5)
	if _, err := New(tr, nil, newRand(1), Options{}); err == nil {
		t.Error("distance assessment without a matrix accepted")
	}
	if _, err := New(tr, nil, newRand(1), Options{Assess: Parsimony}); err == nil {
		t.Error("parsimony assessment without an alignment accepted")
	}
	if _, err := New(tr, nil, newRand(1), Options{KRepresent: -1, Distances: alignment.NewDistanceMatrix(5)}); err == nil {
		t.Error("negative k_represent accepted")
	}
}
