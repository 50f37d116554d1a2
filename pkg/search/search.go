package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/candidate"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/iqp"
	"github.com/matzehuels/iqpnni/pkg/likelihood"
	"github.com/matzehuels/iqpnni/pkg/newick"
	"github.com/matzehuels/iqpnni/pkg/nni"
	"github.com/matzehuels/iqpnni/pkg/observability"
	"github.com/matzehuels/iqpnni/pkg/parsimony"
	"github.com/matzehuels/iqpnni/pkg/stoprule"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

// minTaxa is the smallest alignment with more than one unrooted topology.
const minTaxa = 4

// Stop reasons reported in Result.StopReason.
const (
	StopRule      = "stop-rule"
	StopTimeLimit = "time-limit"
	StopCancelled = "cancelled"
)

// State is the phase of the current iteration.
type State int

const (
	Perturbing State = iota
	SearchingNNI
	Evaluating
)

func (s State) String() string {
	switch s {
	case Perturbing:
		return "perturbing"
	case SearchingNNI:
		return "searching-nni"
	case Evaluating:
		return "evaluating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of a search.
type Result struct {
	RunID      string        `json:"run_id"`
	Newick     string        `json:"newick"`
	LogL       float64       `json:"logl"`
	StartLogL  float64       `json:"start_logl"`
	Iterations int           `json:"iterations"`
	Improved   []int         `json:"improved"`
	Predicted  int           `json:"predicted"`
	StopReason string        `json:"stop_reason"`
	Elapsed    time.Duration `json:"elapsed"`

	// Candidates holds the distinct topologies seen, best first, when the
	// candidate table is enabled. Support is the RELL bootstrap frequency
	// of each record id.
	Candidates []candidate.Record `json:"candidates,omitempty"`
	Support    []float64          `json:"support,omitempty"`
}

// Searcher runs the iterated perturbation and hill-climbing search on one
// alignment. A Searcher runs once and is not safe for concurrent use.
type Searcher struct {
	aln  *alignment.Alignment
	opts Options
	log  *log.Logger
	rng  *rand.Rand

	t      *tree.Tree
	oracle *likelihood.JC69
	nni    *nni.Engine
	iqp    *iqp.Engine
	sched  *iqp.Schedule
	stop   *stoprule.Rule
	table  *candidate.Table
	rec    *candidate.Collector
	trace  *Trace

	state      State
	cur, best  float64
	bestNewick string
}

// New prepares a search. It builds the starting tree, by quartet puzzling
// unless opts.StartTree is set, and every engine bound to it.
func New(aln *alignment.Alignment, opts Options) (*Searcher, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if aln.NumTaxa() < minTaxa {
		return nil, errors.New(errors.ErrCodeDegenerate, "need at least %d taxa, alignment has %d", minTaxa, aln.NumTaxa())
	}

	s := &Searcher{
		aln:  aln,
		opts: opts,
		log:  opts.Logger,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}

	assess, _ := iqp.ParseAssessment(opts.Quartet)
	iqpOpts := iqp.Options{
		KRepresent: opts.KRepresent,
		Assess:     assess,
		Logger:     opts.Logger,
	}
	if assess == iqp.Distance {
		iqpOpts.Distances = aln.Distances()
	} else {
		iqpOpts.Alignment = aln
	}

	var err error
	if opts.StartTree != "" {
		s.t, err = newick.Parse(opts.StartTree, aln.Names)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTree, err, "start tree")
		}
	} else {
		s.t, err = iqp.BuildStartTree(aln.NumTaxa(), s.rng, iqpOpts)
		if err != nil {
			return nil, err
		}
	}
	s.oracle = likelihood.NewJC69(aln, s.t)

	variant, _ := nni.ParseVariant(opts.NNIVariant)
	nniOpts := nni.Options{
		Variant:   variant,
		SpeedNNI:  opts.SpeedNNI,
		SpeedConf: opts.SpeedConf,
		Logger:    opts.Logger,
	}
	if opts.Prefilter {
		nniOpts.Prefilter = parsimony.NewScorer(aln, s.t.NumNodes())
		nniOpts.PrefilterSlack = opts.PrefilterSlack
	}
	if opts.Candidates {
		tableOpts := candidate.Options{
			Cutoff: opts.LoglCutoff,
			Names:  aln.Names,
			Logger: opts.Logger,
		}
		if opts.BootstrapReplicates > 0 {
			tableOpts.Bootstrap = candidate.NewBootstrap(aln, opts.BootstrapReplicates, opts.BootstrapEpsilon, s.rng)
		}
		s.table = candidate.NewTable(tableOpts)
		s.rec = candidate.NewCollector(s.table, s.oracle)
		nniOpts.Recorder = s.rec
	}
	s.nni = nni.New(s.t, s.oracle, nniOpts)

	if s.iqp, err = iqp.New(s.t, s.oracle, s.rng, iqpOpts); err != nil {
		return nil, err
	}
	s.sched = iqp.NewSchedule(aln.NumTaxa(), opts.DeleteProportion)

	mode, _ := stoprule.ParseMode(opts.StopRule)
	s.stop = stoprule.New(stoprule.Options{
		Mode:          mode,
		MinIterations: opts.MinIterations,
		MaxIterations: opts.MaxIterations,
		Confidence:    opts.StopConfidence,
	})
	return s, nil
}

// SetTrace makes Run write every iteration's tree and scores to tr.
func (s *Searcher) SetTrace(tr *Trace) { s.trace = tr }

// Table returns the candidate table, or nil when candidates are off.
func (s *Searcher) Table() *candidate.Table { return s.table }

// State returns the phase of the running iteration.
func (s *Searcher) State() State { return s.state }

// Tree returns the working tree. After Run it holds the best tree.
func (s *Searcher) Tree() *tree.Tree { return s.t }

// Run optimizes the starting tree and iterates perturbation and NNI search
// until the stop rule, the time limit or ctx ends it. Cancellation is only
// checked between iterations; a cancelled search returns the best tree so
// far together with ctx.Err().
func (s *Searcher) Run(ctx context.Context) (*Result, error) {
	hooks := observability.Search()
	started := time.Now()
	res := &Result{RunID: uuid.NewString()}

	res.StartLogL = likelihood.OptimizeAll(s.oracle, s.t, likelihood.DefaultRounds)
	hooks.OnSearchStart(ctx, s.aln.NumTaxa(), s.aln.NumPatterns(), res.StartLogL)
	s.log.Info("starting tree", "taxa", s.aln.NumTaxa(), "patterns", s.aln.NumPatterns(), "logl", res.StartLogL)

	s.state = SearchingNNI
	climb, err := s.nni.Search(res.StartLogL, res.StartLogL, false)
	if err != nil {
		hooks.OnSearchComplete(ctx, 1, res.StartLogL, time.Since(started), err)
		return nil, err
	}
	s.cur, s.best = climb.LogL, climb.LogL
	s.bestNewick = newick.Format(s.t, s.aln.Names)
	s.record()
	s.stop.AddImproved(1)
	if err := s.trace.start(s.best, s.bestNewick); err != nil {
		return nil, err
	}
	s.log.Info("initial NNI search", "steps", climb.Steps, "applied", climb.Applied, "logl", s.best)

	iter := 2
	res.StopReason = StopRule
	for ; !s.stop.Stop(iter); iter++ {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCancelled
			break
		}
		if s.opts.TimeLimit > 0 && time.Since(started) > s.opts.TimeLimit {
			res.StopReason = StopTimeLimit
			break
		}
		if err := s.iterate(ctx, iter); err != nil {
			hooks.OnSearchComplete(ctx, iter, s.best, time.Since(started), err)
			return nil, err
		}
	}

	res.Newick = s.bestNewick
	res.LogL = s.best
	res.Iterations = iter - 1
	res.Improved = s.stop.Improved()
	res.Predicted = s.stop.Predict()
	res.Elapsed = time.Since(started)
	if s.table != nil {
		res.Candidates = s.table.Best(s.table.Len())
		res.Support = s.table.Frequencies()
	}
	if res.StopReason != StopRule && res.Predicted > res.Iterations {
		s.log.Warn("search stopped before the predicted iteration", "predicted", res.Predicted, "ran", res.Iterations)
	}
	s.log.Info("search finished", "iterations", res.Iterations, "logl", res.LogL,
		"improved", len(res.Improved), "reason", res.StopReason, "elapsed", res.Elapsed.Round(time.Millisecond))

	var runErr error
	if res.StopReason == StopCancelled {
		runErr = ctx.Err()
	}
	hooks.OnSearchComplete(ctx, res.Iterations, res.LogL, res.Elapsed, runErr)
	return res, runErr
}

// iterate runs one perturbation, one hill climb and the evaluation of the
// result against the best tree.
func (s *Searcher) iterate(ctx context.Context, iter int) error {
	hooks := observability.Search()
	started := time.Now()

	s.state = Perturbing
	perturbed, err := s.perturb()
	if err != nil {
		return err
	}

	s.state = SearchingNNI
	heuristic := iter > s.opts.SpeedUpAfter
	climb, err := s.nni.Search(perturbed, s.best, heuristic)
	if err != nil {
		return err
	}
	hooks.OnNNISearch(ctx, iter, climb.Steps, climb.Applied, climb.Skipped)
	s.cur = climb.LogL

	if err := s.trace.iteration(iter, perturbed, s.cur, newick.Format(s.t, s.aln.Names)); err != nil {
		return err
	}
	if !climb.Skipped {
		s.record()
	}

	s.state = Evaluating
	if s.cur > s.best+s.opts.TolLikelihood {
		s.best = s.cur
		s.bestNewick = newick.Format(s.t, s.aln.Names)
		s.stop.AddImproved(iter)
		s.sched.Reset()
		s.log.Info("new best tree", "iter", iter, "logl", s.best, "k", s.sched.K())
		hooks.OnNewBest(ctx, iter, s.best)
	} else {
		s.log.Debug("iteration rejected", "iter", iter, "logl", s.cur, "best", s.best)
		hooks.OnRollback(ctx, iter, s.cur, s.best)
		s.sched.Increase()
		if s.cur > s.best-sameScoreMargin {
			s.sched.Increase()
		}
		if err := s.restoreBest(); err != nil {
			return err
		}
	}
	hooks.OnIteration(ctx, iter, s.cur, s.best, time.Since(started))
	return nil
}

// perturb moves the working tree away from the best tree and returns its
// log-likelihood after branch optimization.
func (s *Searcher) perturb() (float64, error) {
	if s.opts.Perturbation == PerturbRandomNNI {
		return s.nni.RandomNNIs(s.rng, s.opts.RandomNNIs), nil
	}
	return s.iqp.Perturb(s.sched.K())
}

// restoreBest rebuilds the best tree from its Newick string. Branch lengths
// round-trip exactly, so the restored tree scores the best log-likelihood.
func (s *Searcher) restoreBest() error {
	best, err := newick.Parse(s.bestNewick, s.aln.Names)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "restore best tree")
	}
	if err := s.t.Assign(best); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "restore best tree")
	}
	s.oracle.InvalidateAll()
	s.cur = s.best
	return nil
}

// record adds the working tree to the candidate table.
func (s *Searcher) record() {
	if s.table == nil {
		return
	}
	s.rec.Record(s.t, s.t.Edges()[0], s.cur)
}
