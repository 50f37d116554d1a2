package iqp

import (
	"fmt"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Assessment selects how quartets are resolved.
type Assessment int

const (
	// Distance resolves a quartet by the smallest sum of within-pair
	// distances.
	Distance Assessment = iota
	// Parsimony resolves a quartet by the number of alignment columns
	// supporting each pairing.
	Parsimony
)

// String returns the name used in option files.
func (a Assessment) String() string {
	switch a {
	case Distance:
		return "distance"
	case Parsimony:
		return "parsimony"
	default:
		return fmt.Sprintf("Assessment(%d)", int(a))
	}
}

// ParseAssessment converts "distance" or "parsimony" to an Assessment.
func ParseAssessment(s string) (Assessment, error) {
	switch s {
	case "distance", "dist", "":
		return Distance, nil
	case "parsimony", "pars":
		return Parsimony, nil
	default:
		return 0, fmt.Errorf("unknown quartet assessment %q (want distance or parsimony)", s)
	}
}

// AssessDistance resolves the quartet of l0, l1, l2 and the deleted leaf
// del. It returns i when del pairs with li: the pairing whose two
// within-pair distances sum to the least. Pairing with l0 wins only when
// strictly best; between l1 and l2, l1 wins only when strictly better.
func AssessDistance(d *alignment.DistanceMatrix, l0, l1, l2, del tree.NodeID) int {
	at := func(a, b tree.NodeID) float64 { return d.At(int(a), int(b)) }
	dist0 := at(l0, del) + at(l1, l2)
	dist1 := at(l1, del) + at(l0, l2)
	dist2 := at(l2, del) + at(l0, l1)
	if dist0 < dist1 && dist0 < dist2 {
		return 0
	}
	if dist1 < dist2 {
		return 1
	}
	return 2
}

// AssessParsimony resolves the quartet by counting, with pattern weights,
// the columns where del shares a state with li while the other two leaves
// share a state with each other. Columns with an unknown state are
// skipped. A three-way tie is broken by tie, which must return 0, 1 or 2.
func AssessParsimony(aln *alignment.Alignment, l0, l1, l2, del tree.NodeID, tie func() int) int {
	var score [3]int
	for p, col := range aln.Patterns {
		c0, c1, c2, cd := col[l0], col[l1], col[l2], col[del]
		if c0 >= alignment.NumStates || c1 >= alignment.NumStates ||
			c2 >= alignment.NumStates || cd >= alignment.NumStates {
			continue
		}
		w := aln.Weights[p]
		if cd == c0 && c1 == c2 {
			score[0] += w
		}
		if cd == c1 && c0 == c2 {
			score[1] += w
		}
		if cd == c2 && c0 == c1 {
			score[2] += w
		}
	}
	if score[0] == score[1] && score[0] == score[2] {
		return tie()
	}
	if score[0] > score[1] && score[0] > score[2] {
		return 0
	}
	if score[1] < score[2] {
		return 2
	}
	return 1
}
