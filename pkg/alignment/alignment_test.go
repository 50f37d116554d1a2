package alignment

import (
	"errors"
	"math"
	"strings"
	"testing"
)

const fasta = `>t1 first taxon
ACGTAC
>t2
ACGTAA
>t3
AC-TAA
>t4
ACGTAC
`

func TestParseFASTA(t *testing.T) {
	a, err := Parse([]byte(fasta))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := a.NumTaxa(); got != 4 {
		t.Errorf("NumTaxa() = %d, want 4", got)
	}
	if a.Names[0] != "t1" {
		t.Errorf("Names[0] = %q, want t1", a.Names[0])
	}
	if a.NumSites != 6 {
		t.Errorf("NumSites = %d, want 6", a.NumSites)
	}
	// columns: AAAA CCCC GG-G TTTT AAAA CAAC -> A-column repeats
	if got := a.NumPatterns(); got != 5 {
		t.Errorf("NumPatterns() = %d, want 5", got)
	}
	total := 0
	for _, w := range a.Weights {
		total += w
	}
	if total != 6 {
		t.Errorf("sum of weights = %d, want 6", total)
	}
	if a.Patterns[2][2] != Unknown {
		t.Errorf("gap encoded as %d, want Unknown", a.Patterns[2][2])
	}
}

func TestParsePHYLIP(t *testing.T) {
	in := "3 8\nalpha ACGT ACGT\nbeta  ACGT\nACGA\ngamma ACGTTCGT\n"
	a, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	for i, n := range want {
		if a.Names[i] != n {
			t.Errorf("Names[%d] = %q, want %q", i, a.Names[i], n)
		}
	}
	if a.NumSites != 8 {
		t.Errorf("NumSites = %d, want 8", a.NumSites)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "   \n", ErrEmpty},
		{"two taxa", ">a\nAC\n>b\nAC\n", ErrTooFewTaxa},
		{"ragged", ">a\nAC\n>b\nACG\n>c\nAC\n", ErrLengthDiffers},
		{"bad char", ">a\nA1\n>b\nAC\n>c\nAC\n", ErrBadCharacter},
		{"duplicate", ">a\nAC\n>a\nAC\n>c\nAC\n", ErrDuplicateName},
		{"unknown format", "#NEXUS\n", ErrFormat},
		{"short phylip", "3 4\na ACGT\nb ACGT\n", ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("Read() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDistances(t *testing.T) {
	a, err := New(
		[]string{"a", "b", "c"},
		[]string{"AAAAAAAAAA", "AAAAAAAAAC", "CCCCCCCCCC"},
	)
	if err != nil {
		t.Fatal(err)
	}
	d := a.Distances()

	want := -0.75 * math.Log(1-4*0.1/3)
	if got := d.At(0, 1); math.Abs(got-want) > 1e-12 {
		t.Errorf("d(a,b) = %v, want %v", got, want)
	}
	if d.At(0, 1) != d.At(1, 0) {
		t.Error("matrix is not symmetric")
	}
	if got := d.At(0, 2); got != MaxDistance {
		t.Errorf("saturated distance = %v, want %v", got, MaxDistance)
	}
}

func TestInformative(t *testing.T) {
	a, err := New(
		[]string{"a", "b", "c", "d"},
		[]string{"AA", "AA", "CA", "CC"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Informative(0) {
		t.Error("AACC column should be informative")
	}
	if a.Informative(1) {
		t.Error("AAAC column should not be informative")
	}
}
