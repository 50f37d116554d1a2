package parsimony

import (
	"testing"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/newick"
)

func TestScore(t *testing.T) {
	a, err := alignment.New(
		[]string{"A", "B", "C", "D"},
		// site 1 supports AB|CD, site 2 supports AC|BD, site 3 is constant,
		// site 4 is a singleton, site 5 has a gap
		[]string{"AAAAA", "ACACA", "CAAAC", "CCAA-"},
	)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		nwk  string
		want int
	}{
		{"((A,B),C,D);", 1 + 2 + 0 + 1 + 1},
		{"((A,C),B,D);", 2 + 1 + 0 + 1 + 1},
		{"((A,D),B,C);", 2 + 2 + 0 + 1 + 1},
	}
	for _, tt := range tests {
		tr, err := newick.Parse(tt.nwk, a.Names)
		if err != nil {
			t.Fatal(err)
		}
		s := NewScorer(a, tr.NumNodes())
		if got := s.Score(tr); got != tt.want {
			t.Errorf("Score(%s) = %d, want %d", tt.nwk, got, tt.want)
		}
	}
}

func TestScoreUsesWeights(t *testing.T) {
	a, err := alignment.New(
		[]string{"A", "B", "C", "D"},
		[]string{"AAA", "AAA", "CCC", "CCC"},
	)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := newick.Parse("((A,C),B,D);", a.Names)
	if err != nil {
		t.Fatal(err)
	}
	if got := NewScorer(a, tr.NumNodes()).Score(tr); got != 6 {
		t.Errorf("Score = %d, want 6", got)
	}
}

func TestMask(t *testing.T) {
	if Mask(2) != 4 {
		t.Errorf("Mask(2) = %d, want 4", Mask(2))
	}
	if Mask(alignment.Unknown) != 0x0f {
		t.Errorf("Mask(Unknown) = %d, want 15", Mask(alignment.Unknown))
	}
}
