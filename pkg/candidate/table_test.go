package candidate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/newick"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

var letters = []string{"A", "B", "C", "D", "E", "F"}

func parse(t *testing.T, nwk string) *tree.Tree {
	t.Helper()
	tr, err := newick.Parse(nwk, letters)
	if err != nil {
		t.Fatalf("newick.Parse(%s): %v", nwk, err)
	}
	return tr
}

func TestAddDeduplicates(t *testing.T) {
	tb := NewTable(Options{Names: letters})
	a := parse(t, "((A,B),C,(D,(E,F)));")
	same := parse(t, "((F,E),D,(C,(B,A)));")
	other := parse(t, "((A,C),B,(D,(E,F)));")

	if id, ok := tb.Add(a, -10, nil); id != 0 || !ok {
		t.Fatalf("first Add = %d, %v", id, ok)
	}
	if id, ok := tb.Add(same, -10+UpdateMargin/2, nil); id != 0 || ok {
		t.Errorf("marginal revisit = %d, %v; want 0, false", id, ok)
	}
	if id, ok := tb.Add(same, -9, nil); id != 0 || !ok {
		t.Errorf("improving revisit = %d, %v; want 0, true", id, ok)
	}
	if id, ok := tb.Add(other, -20, nil); id != 1 || !ok {
		t.Errorf("new topology = %d, %v; want 1, true", id, ok)
	}

	r := tb.At(0)
	if r.LogL != -9 || r.Visits != 3 {
		t.Errorf("record = %+v, want logl -9 after 3 visits", r)
	}
	if r.Newick != newick.Format(same, letters) {
		t.Errorf("newick = %s, want the improving tree", r.Newick)
	}
	if tb.Len() != 2 || tb.Duplicates() != 2 {
		t.Errorf("len = %d dups = %d, want 2 and 2", tb.Len(), tb.Duplicates())
	}
	if best := tb.Best(1); len(best) != 1 || best[0].ID != 0 {
		t.Errorf("Best(1) = %+v", best)
	}
	if got, ok := tb.Get(newick.Canonical(other)); !ok || got.ID != 1 {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}

func TestCutoff(t *testing.T) {
	tb := NewTable(Options{Cutoff: -50})
	if _, ok := tb.Add(parse(t, "((A,B),C,(D,(E,F)));"), -60, nil); ok {
		t.Error("tree below the cutoff was added")
	}
	if _, ok := tb.Add(parse(t, "((A,B),C,(D,(E,F)));"), -40, nil); !ok {
		t.Error("tree above the cutoff was rejected")
	}
}

func permutations(items []string) [][]string {
	if len(items) <= 1 {
		return [][]string{append([]string(nil), items...)}
	}
	var out [][]string
	for i := range items {
		rest := append(append([]string(nil), items[:i]...), items[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{items[i]}, p...))
		}
	}
	return out
}

func TestCapacityDoubles(t *testing.T) {
	tb := NewTable(Options{})
	start := tb.Capacity()
	for _, p := range permutations(letters) {
		if tb.Len() > start {
			break
		}
		nwk := "((" + p[0] + "," + p[1] + ")," + p[2] + ",(" + p[3] + ",(" + p[4] + "," + p[5] + ")));"
		tb.Add(parse(t, nwk), -1, nil)
	}
	if tb.Len() <= start {
		t.Fatalf("only %d distinct topologies", tb.Len())
	}
	if tb.Capacity() != 2*start {
		t.Errorf("capacity = %d, want %d", tb.Capacity(), 2*start)
	}
	for id, r := range tb.Records() {
		if r.ID != id {
			t.Fatalf("record %d has id %d", id, r.ID)
		}
	}
}

func bootstrapAlignment(t *testing.T) *alignment.Alignment {
	t.Helper()
	a, err := alignment.New(letters, []string{
		"AAAACCGT",
		"AAAACCGT",
		"CCAACCGA",
		"CCAACCGA",
		"GGTTACGT",
		"GGTTACGT",
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestBootstrapWeights(t *testing.T) {
	a := bootstrapAlignment(t)
	b := NewBootstrap(a, 20, 0, rand.New(rand.NewPCG(1, 2)))
	if b.Replicates() != 20 {
		t.Fatalf("replicates = %d", b.Replicates())
	}
	for r, w := range b.weights {
		sum := 0.0
		for _, x := range w {
			sum += x
		}
		if int(sum) != a.NumSites {
			t.Errorf("replicate %d resamples %v sites, want %d", r, sum, a.NumSites)
		}
	}
}

// constSites reports the same log-likelihood for every pattern.
type constSites struct{ v float64 }

func (c constSites) PatternLogLikelihoods(_ tree.Edge, dst []float64) []float64 {
	return append(dst[:0], c.v)
}

func TestCollectorFeedsBootstrap(t *testing.T) {
	a := bootstrapAlignment(t)
	boot := NewBootstrap(a, 50, 0, rand.New(rand.NewPCG(3, 4)))
	tb := NewTable(Options{Bootstrap: boot, KeepSiteLogL: true})

	worse := parse(t, "((A,C),B,(D,(E,F)));")
	better := parse(t, "((A,B),C,(D,(E,F)));")

	sites := make([]float64, a.NumPatterns())
	for i := range sites {
		sites[i] = -2
	}
	tb.Add(worse, -2*float64(a.NumSites), sites)
	for i := range sites {
		sites[i] = -1
	}
	tb.Add(better, -float64(a.NumSites), sites)

	freq := tb.Frequencies()
	if len(freq) != 2 || freq[0] != 0 || freq[1] != 1 {
		t.Errorf("frequencies = %v, want [0 1]", freq)
	}
	if got := tb.At(1).SiteLogL; len(got) != a.NumPatterns() || got[0] != -1 {
		t.Errorf("stored site log-likelihoods = %v", got)
	}

	c := NewCollector(NewTable(Options{}), constSites{v: -1})
	c.Record(better, tree.Edge{}, -3)
	if c.Table().Len() != 1 || c.Table().At(0).SiteLogL != nil {
		t.Errorf("collector without site needs stored %+v", c.Table().At(0))
	}
}

func TestJSONSink(t *testing.T) {
	tb := NewTable(Options{})
	tb.Add(parse(t, "((A,B),C,(D,(E,F)));"), -5, nil)
	tb.Add(parse(t, "((A,C),B,(D,(E,F)));"), -6, nil)

	var buf bytes.Buffer
	sink := NewJSONSink(&buf)
	if err := tb.Save(context.Background(), sink, "run-1"); err != nil {
		t.Fatal(err)
	}
	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	n := 0
	for sc.Scan() {
		var rec struct {
			RunID string  `json:"run_id"`
			ID    int     `json:"id"`
			LogL  float64 `json:"logl"`
		}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatal(err)
		}
		if rec.RunID != "run-1" || rec.ID != n {
			t.Errorf("line %d = %+v", n, rec)
		}
		n++
	}
	if n != 2 {
		t.Errorf("wrote %d lines, want 2", n)
	}
}
