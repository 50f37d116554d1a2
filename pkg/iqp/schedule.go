package iqp

import "math"

// Schedule adapts the number of leaves deleted per perturbation.
//
// With a fixed deletion proportion every perturbation deletes the same
// number of leaves. Otherwise the search starts at a small k and, after
// roughly n/k unsuccessful iterations at the current k, moves to k+1 until
// it reaches the cap. A new best tree sends k back to the minimum.
type Schedule struct {
	numTaxa  int
	k        int
	min, max int
	stay     int
}

// Schedule bounds when no deletion proportion is given.
const (
	scheduleMin    = 10
	scheduleMaxLow = 20
	scheduleMaxTop = 100
)

// NewSchedule returns a schedule for numTaxa taxa. A proportion p in (0, 1)
// fixes k at round(p*numTaxa), at least one; zero selects the adaptive
// schedule.
func NewSchedule(numTaxa int, p float64) *Schedule {
	s := &Schedule{numTaxa: numTaxa}
	if p > 0 {
		k := max(1, int(math.Round(p*float64(numTaxa))))
		s.k, s.min, s.max = k, k, k
		s.stay = numTaxa / k
		return s
	}
	s.min = scheduleMin
	s.max = min(max(numTaxa/2, scheduleMaxLow), scheduleMaxTop)
	s.k = s.min
	s.stay = numTaxa / s.k
	return s
}

// K returns the current number of leaves to delete. The IQP engine caps
// it so that four leaves remain.
func (s *Schedule) K() int { return s.k }

// Bounds returns the minimum and maximum k.
func (s *Schedule) Bounds() (lo, hi int) { return s.min, s.max }

// Reset returns k to the minimum after a new best tree.
func (s *Schedule) Reset() {
	s.k = s.min
	s.stay = s.numTaxa / s.k
}

// Increase records an unsuccessful iteration and raises k once the current
// value has been tried for its share of iterations.
func (s *Schedule) Increase() {
	if s.k >= s.max {
		return
	}
	s.stay--
	if s.stay > 0 {
		return
	}
	s.k++
	s.stay = s.numTaxa / s.k
}
