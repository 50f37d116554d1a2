package nni

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Estimator predicts how much a hill climb can still gain from the climbs
// that came before it: how many moves a climb usually applies, and how much
// each applied move usually gains.
type Estimator struct {
	conf   float64
	counts []float64
	gains  []float64
	sorted []float64
}

// NewEstimator returns an estimator reporting the conf quantile of its
// history.
func NewEstimator(conf float64) *Estimator {
	return &Estimator{conf: conf}
}

// AddCount records the number of moves one climb applied.
func (s *Estimator) AddCount(n int) { s.counts = append(s.counts, float64(n)) }

// AddGain records the average gain per move of one step.
func (s *Estimator) AddGain(g float64) { s.gains = append(s.gains, g) }

// Ready reports whether both histories have at least one entry.
func (s *Estimator) Ready() bool { return len(s.counts) > 0 && len(s.gains) > 0 }

// Count returns the estimated number of moves of a climb.
func (s *Estimator) Count() float64 { return s.quantile(s.counts) }

// Gain returns the estimated gain per move.
func (s *Estimator) Gain() float64 { return s.quantile(s.gains) }

// Hopeless reports whether a climb at cur, having applied moves so far,
// is not expected to get past best.
func (s *Estimator) Hopeless(cur, best float64, applied int) bool {
	return cur+s.Gain()*(s.Count()-float64(applied)) <= best
}

func (s *Estimator) quantile(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s.sorted = append(s.sorted[:0], x...)
	slices.Sort(s.sorted)
	return stat.Quantile(s.conf, stat.Empirical, s.sorted, nil)
}
