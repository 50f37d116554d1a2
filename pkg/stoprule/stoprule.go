// Package stoprule decides when a tree search has run long enough.
//
// A fixed rule runs a set number of iterations. A predicted rule watches
// the iterations that found a new best tree, models the gaps between them
// as geometric, and stops once another improvement is unlikely at the
// configured confidence, but never before MinIterations or after
// MaxIterations.
package stoprule

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mode selects the stopping strategy.
type Mode int

const (
	// Fixed stops after MaxIterations.
	Fixed Mode = iota
	// Predicted stops once the expected wait for the next improvement
	// exceeds what the confidence allows.
	Predicted
)

func (m Mode) String() string {
	switch m {
	case Fixed:
		return "fixed"
	case Predicted:
		return "predicted"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "fixed" or "predicted" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fixed", "":
		return Fixed, nil
	case "predicted", "auto":
		return Predicted, nil
	default:
		return 0, fmt.Errorf("unknown stop rule %q (want fixed or predicted)", s)
	}
}

// Defaults.
const (
	DefaultMinIterations = 100
	DefaultMaxIterations = 1000
	DefaultConfidence    = 0.95
)

// Options configures a Rule.
type Options struct {
	Mode          Mode
	MinIterations int
	MaxIterations int
	Confidence    float64
}

// Rule tracks improving iterations and answers whether to stop.
type Rule struct {
	opts     Options
	improved []int
	gaps     []float64
}

// New returns a rule with defaults filled in.
func New(opts Options) *Rule {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.MinIterations <= 0 {
		opts.MinIterations = min(DefaultMinIterations, opts.MaxIterations)
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = DefaultConfidence
	}
	return &Rule{opts: opts}
}

// AddImproved records that iteration iter found a new best tree.
// Iterations must be added in increasing order.
func (r *Rule) AddImproved(iter int) {
	prev := 0
	if n := len(r.improved); n > 0 {
		prev = r.improved[n-1]
		if iter <= prev {
			return
		}
	}
	r.improved = append(r.improved, iter)
	r.gaps = append(r.gaps, float64(iter-prev))
}

// Improved returns the improving iterations seen so far.
func (r *Rule) Improved() []int { return append([]int(nil), r.improved...) }

// LastImproved returns the last improving iteration, or 0.
func (r *Rule) LastImproved() int {
	if len(r.improved) == 0 {
		return 0
	}
	return r.improved[len(r.improved)-1]
}

// Predict returns the last iteration the rule lets run, given the
// improvements seen so far.
func (r *Rule) Predict() int {
	if r.opts.Mode == Fixed {
		return r.opts.MaxIterations
	}
	if len(r.gaps) == 0 {
		return r.opts.MinIterations
	}
	// Geometric waiting time with success probability 1/mean gap: the
	// chance of no improvement within m iterations is (1-p)^m.
	p := 1 / stat.Mean(r.gaps, nil)
	wait := 1
	if p < 1 {
		wait = int(math.Ceil(math.Log(1-r.opts.Confidence) / math.Log(1-p)))
	}
	predicted := r.LastImproved() + wait
	return min(max(predicted, r.opts.MinIterations), r.opts.MaxIterations)
}

// Stop reports whether iteration iter should not run. Iterations are
// numbered from 1, the optimization of the starting tree.
func (r *Rule) Stop(iter int) bool {
	return iter > r.Predict()
}
