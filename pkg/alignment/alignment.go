// Package alignment reads DNA alignments and compresses them into weighted
// site patterns.
//
// Every column of the alignment becomes a pattern; identical columns are
// stored once with a weight equal to their multiplicity. Nucleotides map to
// states 0..3 (A, C, G, T/U); gaps, ambiguity codes and missing data map to
// [Unknown].
package alignment

import (
	"errors"
	"fmt"
	"strings"
)

// NumStates is the number of nucleotide states.
const NumStates = 4

// Unknown is the state code for gaps, ambiguity codes and missing data.
const Unknown uint8 = 4

// Sentinel errors for malformed input.
var (
	ErrEmpty         = errors.New("alignment is empty")
	ErrTooFewTaxa    = errors.New("alignment needs at least three taxa")
	ErrLengthDiffers = errors.New("sequences differ in length")
	ErrBadCharacter  = errors.New("unexpected character in sequence")
	ErrDuplicateName = errors.New("duplicate sequence name")
	ErrFormat        = errors.New("unrecognised alignment format")
)

// Alignment is a pattern-compressed DNA alignment.
type Alignment struct {
	// Names holds the taxon names; taxon i is leaf i of every tree.
	Names []string

	// Patterns holds one state per taxon for each distinct column.
	Patterns [][]uint8

	// Weights holds the number of columns each pattern stands for.
	Weights []int

	// NumSites is the number of columns before compression.
	NumSites int
}

// New builds an alignment from aligned sequences.
func New(names, seqs []string) (*Alignment, error) {
	if len(names) != len(seqs) {
		return nil, fmt.Errorf("%d names for %d sequences", len(names), len(seqs))
	}
	if len(seqs) == 0 {
		return nil, ErrEmpty
	}
	if len(seqs) < 3 {
		return nil, ErrTooFewTaxa
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, n)
		}
		seen[n] = true
	}

	width := len(seqs[0])
	if width == 0 {
		return nil, ErrEmpty
	}
	coded := make([][]uint8, len(seqs))
	for i, s := range seqs {
		if len(s) != width {
			return nil, fmt.Errorf("%w: %q has %d sites, %q has %d", ErrLengthDiffers, names[i], len(s), names[0], width)
		}
		row := make([]uint8, width)
		for j := 0; j < width; j++ {
			c, ok := encode(s[j])
			if !ok {
				return nil, fmt.Errorf("%w: %q at site %d of %q", ErrBadCharacter, s[j], j+1, names[i])
			}
			row[j] = c
		}
		coded[i] = row
	}

	a := &Alignment{Names: append([]string(nil), names...), NumSites: width}
	index := make(map[string]int)
	col := make([]byte, len(seqs))
	for j := 0; j < width; j++ {
		for i := range coded {
			col[i] = coded[i][j]
		}
		key := string(col)
		if p, ok := index[key]; ok {
			a.Weights[p]++
			continue
		}
		index[key] = len(a.Patterns)
		a.Patterns = append(a.Patterns, append([]uint8(nil), col...))
		a.Weights = append(a.Weights, 1)
	}
	return a, nil
}

// NumTaxa returns the number of sequences.
func (a *Alignment) NumTaxa() int { return len(a.Names) }

// NumPatterns returns the number of distinct columns.
func (a *Alignment) NumPatterns() int { return len(a.Patterns) }

// Informative reports whether pattern p is parsimony-informative: at least
// two states each occur in at least two taxa.
func (a *Alignment) Informative(p int) bool {
	var counts [NumStates]int
	for _, c := range a.Patterns[p] {
		if c < NumStates {
			counts[c]++
		}
	}
	n := 0
	for _, c := range counts {
		if c >= 2 {
			n++
		}
	}
	return n >= 2
}

func encode(c byte) (uint8, bool) {
	switch c {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'G', 'g':
		return 2, true
	case 'T', 't', 'U', 'u':
		return 3, true
	case '-', '?', '.', '~', '*':
		return Unknown, true
	}
	if strings.IndexByte("RYKMSWBDHVNrykmswbdhvn", c) >= 0 {
		return Unknown, true
	}
	return 0, false
}
