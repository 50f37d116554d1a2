package iqp

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/likelihood"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

const (
	// DefaultKRepresent is the number of representative leaves drawn from
	// each subtree.
	DefaultKRepresent = 4

	// DefaultRounds is the number of optimization sweeps after the deleted
	// leaves are back in the tree.
	DefaultRounds = 1
)

// minLeaves is the size the tree never shrinks below during a
// perturbation; a quartet needs three leaves left plus the deleted one.
const minLeaves = 4

// Options configures an Engine.
type Options struct {
	// KRepresent bounds each representative set. Zero selects
	// DefaultKRepresent.
	KRepresent int

	// Assess picks the quartet test. Distance needs Distances, Parsimony
	// needs Alignment.
	Assess    Assessment
	Distances *alignment.DistanceMatrix
	Alignment *alignment.Alignment

	// Rounds is the number of OptimizeAll sweeps a Perturb ends with.
	Rounds int

	Logger *log.Logger
}

// Engine removes and reinserts leaves of one tree.
type Engine struct {
	t    *tree.Tree
	o    likelihood.Oracle
	rng  *rand.Rand
	opts Options
	log  *log.Logger

	reps         [][]repLeaf
	repValid     []bool
	votes        []int
	partials     []int
	partialValid []bool
	edges        []tree.Edge
	ties         []tree.Edge
	deleted      []tree.NodeID
}

// New returns an engine for t bound to o. All random choices are drawn
// from rng.
func New(t *tree.Tree, o likelihood.Oracle, rng *rand.Rand, opts Options) (*Engine, error) {
	if opts.KRepresent == 0 {
		opts.KRepresent = DefaultKRepresent
	}
	if opts.KRepresent < 1 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "k_represent must be positive, got %d", opts.KRepresent)
	}
	if opts.Rounds <= 0 {
		opts.Rounds = DefaultRounds
	}
	switch opts.Assess {
	case Distance:
		if opts.Distances == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "distance assessment needs a distance matrix")
		}
		if opts.Distances.Size() != t.NumTaxa() {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "distance matrix has %d taxa, tree has %d",
				opts.Distances.Size(), t.NumTaxa())
		}
	case Parsimony:
		if opts.Alignment == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "parsimony assessment needs an alignment")
		}
		if opts.Alignment.NumTaxa() != t.NumTaxa() {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "alignment has %d taxa, tree has %d",
				opts.Alignment.NumTaxa(), t.NumTaxa())
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown quartet assessment %d", int(opts.Assess))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	slots := 3 * t.NumNodes()
	e := &Engine{
		t:            t,
		o:            o,
		rng:          rng,
		opts:         opts,
		log:          logger,
		reps:         make([][]repLeaf, slots),
		repValid:     make([]bool, slots),
		votes:        make([]int, slots),
		partials:     make([]int, slots),
		partialValid: make([]bool, slots),
		edges:        make([]tree.Edge, 0, 2*t.NumTaxa()),
		ties:         make([]tree.Edge, 0, 2*t.NumTaxa()),
	}
	for i := range e.reps {
		e.reps[i] = make([]repLeaf, 0, opts.KRepresent)
	}
	return e, nil
}

// Deleted returns the leaves removed by the last DeleteLeaves, in
// deletion order. The slice is owned by the engine.
func (e *Engine) Deleted() []tree.NodeID { return e.deleted }

// DeleteLeaves removes k distinct random leaves, keeping at least four in
// the tree. It returns how many were removed.
func (e *Engine) DeleteLeaves(k int) (int, error) {
	leaves := e.t.Leaves()
	k = min(k, len(leaves)-minLeaves)
	e.deleted = e.deleted[:0]
	if k <= 0 {
		return 0, nil
	}
	perm := e.rng.Perm(len(leaves))
	for _, i := range perm[:k] {
		if _, err := e.t.DeleteLeaf(leaves[i]); err != nil {
			return len(e.deleted), fmt.Errorf("delete leaf %d: %w", leaves[i], err)
		}
		e.deleted = append(e.deleted, leaves[i])
	}
	return k, nil
}

// Reinsert grafts one detached leaf onto the branch with the most quartet
// votes and returns that branch.
func (e *Engine) Reinsert(leaf tree.NodeID) (tree.Edge, error) {
	e.resetVotes()
	e.castVotes(leaf)
	edge, votes := e.bestBranch()
	if _, err := e.t.Graft(leaf, edge, tree.DefaultLength); err != nil {
		return edge, fmt.Errorf("graft leaf %d onto %v: %w", leaf, edge, err)
	}
	e.log.Debug("leaf reinserted", "leaf", leaf, "branch", edge, "votes", votes)
	return edge, nil
}

// ReinsertLeaves puts every leaf removed by the last DeleteLeaves back, in
// deletion order.
func (e *Engine) ReinsertLeaves() error {
	for _, leaf := range e.deleted {
		if _, err := e.Reinsert(leaf); err != nil {
			return err
		}
	}
	e.deleted = e.deleted[:0]
	return nil
}

// Perturb deletes k leaves, reinserts them by quartet voting and
// re-optimizes the branch lengths. It returns the new log-likelihood.
func (e *Engine) Perturb(k int) (float64, error) {
	removed, err := e.DeleteLeaves(k)
	if err != nil {
		return 0, err
	}
	if err := e.ReinsertLeaves(); err != nil {
		return 0, err
	}
	e.o.InvalidateAll()
	logl := likelihood.OptimizeAll(e.o, e.t, e.opts.Rounds)
	e.log.Debug("tree perturbed", "deleted", removed, "logl", logl)
	return logl, nil
}
