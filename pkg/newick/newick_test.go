package newick

import (
	"errors"
	"testing"

	"github.com/matzehuels/iqpnni/pkg/tree"
)

var taxa = []string{"A", "B", "C", "D", "E"}

func TestParseFormatRoundTrip(t *testing.T) {
	in := "((A:0.1,B:0.2):0.05,(C:0.3,D:0.4):0.0625,E:0.5);"
	tr, err := Parse(in, taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tr.NumLeaves(); got != 5 {
		t.Fatalf("NumLeaves() = %d, want 5", got)
	}

	out := Format(tr, taxa)
	again, err := Parse(out, taxa)
	if err != nil {
		t.Fatalf("Parse(Format()): %v", err)
	}
	if got := Format(again, taxa); got != out {
		t.Errorf("second round trip changed output:\n got  %s\n want %s", got, out)
	}
	if Canonical(tr) != Canonical(again) {
		t.Error("round trip changed the topology")
	}
}

func TestFormatExactLengths(t *testing.T) {
	in := "(A:0.1234567890123456789,B:1e-7,(C:0.3,D:0.4):0.1);"
	tr, err := Parse(in, taxa[:4])
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	again, err := Parse(Format(tr, nil), []string{"0", "1", "2", "3"})
	if err != nil {
		t.Fatalf("Parse ids: %v", err)
	}
	for _, pair := range [][2]tree.NodeID{{0, 4}, {1, 4}} {
		if tr.Length(pair[0], pair[1]) != again.Length(pair[0], pair[1]) {
			t.Errorf("length %v not preserved: %v vs %v", pair, tr.Length(pair[0], pair[1]), again.Length(pair[0], pair[1]))
		}
	}
}

func TestParseRooted(t *testing.T) {
	tr, err := Parse("(((A,B),C):0.1,(D,E):0.2);", taxa)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	unrooted, err := Parse("((A,B),C,(D,E));", taxa)
	if err != nil {
		t.Fatalf("Parse unrooted: %v", err)
	}
	if Canonical(tr) != Canonical(unrooted) {
		t.Errorf("Canonical differs: %s vs %s", Canonical(tr), Canonical(unrooted))
	}
}

func TestCanonicalIgnoresRootingAndOrder(t *testing.T) {
	a, err := Parse("((A,B),C,(D,E));", taxa)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("((E,D),(B,A),C);", taxa)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Parse("((A,C),B,(D,E));", taxa)
	if err != nil {
		t.Fatal(err)
	}

	if Canonical(a) != Canonical(b) {
		t.Errorf("equal topologies differ: %s vs %s", Canonical(a), Canonical(b))
	}
	if Canonical(a) == Canonical(c) {
		t.Errorf("different topologies share %s", Canonical(a))
	}
	if got, want := Canonical(a), "(0,1,(2,(3,4)));"; got != want {
		t.Errorf("Canonical() = %s, want %s", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"unknown taxon", "((A,B),C,(D,X));", ErrUnknownTaxon},
		{"duplicate", "((A,B),C,(D,A));", ErrDuplicate},
		{"missing", "((A,B),C,D);", ErrMissingTaxa},
		{"polytomy", "((A,B,C),D,E);", ErrNotBinary},
		{"unbalanced", "((A,B),C,(D,E);", ErrSyntax},
		{"bad length", "((A:x,B),C,(D,E));", ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in, taxa)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestLabels(t *testing.T) {
	got, err := Labels("(('x y':1,B),C,(D,E));")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"x y", "B", "C", "D", "E"}
	if len(got) != len(want) {
		t.Fatalf("Labels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Labels()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
