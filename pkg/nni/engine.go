package nni

import (
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/iqpnni/pkg/likelihood"
	"github.com/matzehuels/iqpnni/pkg/parsimony"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultEpsilon is the gain over the current log-likelihood a probed
	// move needs to count as positive.
	DefaultEpsilon = 1e-6

	// DefaultMinStepGain is the smallest gain for which a step reports its
	// moves as applied. Smaller gains end the search.
	DefaultMinStepGain = 0.1

	// DefaultTolerance is the gain over the starting score a batch of moves
	// must reach; smaller gains halve the batch.
	DefaultTolerance = 1e-3

	// DefaultSlack absorbs rounding differences when the combined tree is
	// compared with the best single move. The probe and the full
	// optimization evaluate the likelihood at different branches.
	DefaultSlack = 1e-5

	// DefaultMaxSteps bounds the number of steps of one Search.
	DefaultMaxSteps = 1000

	// DefaultSpeedConf is the quantile used by the move-budget estimator.
	DefaultSpeedConf = 0.95
)

// Recorder receives every tree the engine scores: each probed
// rearrangement and each applied step. The tree must not be modified and
// must not be retained; it is restored as soon as Record returns.
type Recorder interface {
	Record(t *tree.Tree, e tree.Edge, logl float64)
}

// Options configures an Engine. The zero value selects NNI5 with the
// default thresholds.
type Options struct {
	Variant     Variant
	Epsilon     float64
	MinStepGain float64
	Tolerance   float64
	Slack       float64
	MaxSteps    int

	// SpeedNNI restricts every step after the first of a Search to the
	// branches around the moves applied by the previous step.
	SpeedNNI bool

	// SpeedConf is the quantile the estimator takes of past move counts
	// and per-move gains.
	SpeedConf float64

	// Prefilter, when set, skips the likelihood probe of every swap whose
	// parsimony score is not below the current score plus PrefilterSlack.
	Prefilter      *parsimony.Scorer
	PrefilterSlack int

	Recorder Recorder
	Logger   *log.Logger
}

// Engine probes and applies NNIs on one tree with one oracle.
type Engine struct {
	t    *tree.Tree
	o    likelihood.Oracle
	opts Options
	log  *log.Logger
	est  *Estimator

	edges    []tree.Edge
	moves    []Move
	selected []Move
	claimed  []bool
	affected map[tree.Edge]struct{}
	restrict bool
	snap     tree.Snapshot
}

// New returns an engine for t, which must stay bound to o for the lifetime
// of the engine. Buffers are sized for the taxon count of t.
func New(t *tree.Tree, o likelihood.Oracle, opts Options) *Engine {
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.MinStepGain <= 0 {
		opts.MinStepGain = DefaultMinStepGain
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.Slack <= 0 {
		opts.Slack = DefaultSlack
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.SpeedConf <= 0 || opts.SpeedConf > 1 {
		opts.SpeedConf = DefaultSpeedConf
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	inner := max(t.NumTaxa()-3, 1)
	e := &Engine{
		t:        t,
		o:        o,
		opts:     opts,
		log:      logger,
		est:      NewEstimator(opts.SpeedConf),
		edges:    make([]tree.Edge, 0, inner),
		moves:    make([]Move, 0, 2*inner),
		selected: make([]Move, 0, inner),
		claimed:  make([]bool, t.NumNodes()),
		affected: make(map[tree.Edge]struct{}, 8*inner),
	}
	t.SnapshotInto(&e.snap)
	return e
}

// Estimator returns the move-budget estimator fed by Search.
func (e *Engine) Estimator() *Estimator { return e.est }

// Evaluate probes the internal branches of the tree and returns the
// positive moves, best first. cur must be the log-likelihood of the tree as
// it stands. The returned slice is owned by the engine and valid until the
// next call. The tree is left bit-identical to how it was found.
func (e *Engine) Evaluate(cur float64) []Move {
	e.moves = e.moves[:0]
	e.edges = e.t.AppendInternalEdges(e.edges[:0])

	base := 0
	if e.opts.Prefilter != nil {
		base = e.opts.Prefilter.Score(e.t)
	}
	for _, edge := range e.edges {
		if e.restrict {
			if _, ok := e.affected[edge]; !ok {
				continue
			}
		}
		if m, ok := e.probe(quartetOf(e.t, edge.A, edge.B), cur, base); ok {
			e.moves = append(e.moves, m)
		}
	}
	SortMoves(e.moves)
	return e.moves
}

// probe scores both swaps of one quartet and returns the better one, and
// whether it beats cur by more than epsilon.
func (e *Engine) probe(x quartet, cur float64, base int) (Move, bool) {
	saved := x.lengths(e.t)
	central := tree.NewEdge(x.p, x.q)
	best := Move{Node1: x.p, Node2: x.q, LogL: math.Inf(-1)}

	for s := 0; s < 2; s++ {
		x.swap(e.t, s)
		if e.opts.Prefilter != nil && e.opts.Prefilter.Score(e.t) >= base+e.opts.PrefilterSlack {
			x.swap(e.t, s)
			continue
		}
		e.o.Invalidate(central)
		logl := e.optimizeQuartet(x, cur)
		if e.opts.Recorder != nil {
			e.opts.Recorder.Record(e.t, central, logl)
		}
		if logl > best.LogL {
			best.Swap = s
			best.LogL = logl
			best.Delta = logl - cur
			best.Lengths = x.lengths(e.t)
		}
		x.swap(e.t, s)
		x.setLengths(e.t, saved)
		e.o.Invalidate(central)
	}
	return best, best.LogL > cur+e.opts.Epsilon
}

// optimizeQuartet optimizes the branches of a swapped quartet according
// to the variant and returns the log-likelihood.
func (e *Engine) optimizeQuartet(x quartet, cur float64) float64 {
	central := tree.NewEdge(x.p, x.q)
	_, logl := e.o.OptimizeBranch(central)
	if e.opts.Variant == NNI1 || logl > cur {
		return logl
	}
	order := [5]tree.Edge{
		tree.NewEdge(x.p, e.t.Neighbor(x.p, x.p0)),
		tree.NewEdge(x.p, e.t.Neighbor(x.p, x.p1)),
		central,
		tree.NewEdge(x.q, e.t.Neighbor(x.q, x.q0)),
		tree.NewEdge(x.q, e.t.Neighbor(x.q, x.q1)),
	}
	for _, b := range order {
		_, logl = e.o.OptimizeBranch(b)
	}
	return logl
}

// markAffected collects the branches within two steps of the moves just
// applied; the next restricted Evaluate only probes those.
func (e *Engine) markAffected(moves []Move) {
	clear(e.affected)
	for _, m := range moves {
		for _, x := range [2]tree.NodeID{m.Node1, m.Node2} {
			for s := 0; s < e.t.Degree(x); s++ {
				y := e.t.Neighbor(x, s)
				e.affected[tree.NewEdge(x, y)] = struct{}{}
				if e.t.IsLeaf(y) {
					continue
				}
				for r := 0; r < e.t.Degree(y); r++ {
					e.affected[tree.NewEdge(y, e.t.Neighbor(y, r))] = struct{}{}
				}
			}
		}
	}
	e.restrict = true
}
