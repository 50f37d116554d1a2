package nni

import (
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/likelihood"
)

// StepResult describes one NNI step.
type StepResult struct {
	// Positive is the number of probed moves that beat the starting score.
	Positive int

	// Moves are the moves physically applied, best first. The slice is
	// owned by the engine.
	Moves []Move

	// Applied is the number of moves the step counts as applied. It is
	// zero when the gain stayed below the minimum step gain, even if Moves
	// is not empty.
	Applied int

	// LogL is the log-likelihood of the tree after the step.
	LogL float64

	// Rollbacks counts how often the tree was restored to its pre-step
	// state before a smaller batch was applied.
	Rollbacks int
}

// Step runs one probe-select-apply round starting from log-likelihood cur.
func (e *Engine) Step(cur float64) (StepResult, error) {
	moves := e.Evaluate(cur)
	if len(moves) == 0 {
		return StepResult{LogL: cur}, nil
	}
	e.selected = SelectConflictFree(e.selected[:0], moves, e.claimed)
	res, err := e.Apply(e.selected, cur)
	res.Positive = len(moves)
	if err != nil {
		return res, err
	}
	if e.opts.SpeedNNI {
		e.markAffected(res.Moves)
	}
	return res, nil
}

// Apply applies a conflict-free batch of moves, sorted best first, to a
// tree scoring before.
//
// The batch starts at full size. If the optimized tree scores below the
// best move of the batch, the tree is restored and only that move is
// applied; if the single move also scores below its own probe, the oracle
// is inconsistent and an [errors.InconsistentError] is returned. A batch
// that does not improve on before by the tolerance is restored and retried
// at half the size. A single move that lowers the tree below before is
// inconsistent as well; one that gains less than the tolerance is undone
// and the step applies nothing. Every restore is exact.
func (e *Engine) Apply(batch []Move, before float64) (StepResult, error) {
	res := StepResult{LogL: before}
	if len(batch) == 0 {
		return res, nil
	}
	e.t.SnapshotInto(&e.snap)
	claimed := batch[0].LogL - e.opts.Slack

	lambda := 1.0
	for {
		n := max(1, int(float64(len(batch))*lambda))
		logl := e.applyMoves(batch[:n])

		if logl < claimed {
			if n == 1 {
				e.rollback()
				return res, e.inconsistent(batch[0].LogL, logl, n)
			}
			e.log.Debug("combined moves score below best move, rolling back",
				"moves", n, "logl", logl, "best", batch[0].LogL)
			e.rollback()
			res.Rollbacks++
			n = 1
			logl = e.applyMoves(batch[:1])
			if logl < claimed {
				e.rollback()
				return res, e.inconsistent(batch[0].LogL, logl, n)
			}
		}

		if logl > before+e.opts.Tolerance {
			res.Moves = batch[:n]
			res.Applied = n
			res.LogL = logl
			if logl-before < e.opts.MinStepGain {
				res.Applied = 0
			}
			return res, nil
		}

		e.rollback()
		res.Rollbacks++
		if n == 1 {
			if logl < before {
				return res, e.inconsistent(before, logl, n)
			}
			return res, nil
		}
		lambda /= 2
		e.log.Debug("moves did not improve the tree, halving batch",
			"moves", n, "logl", logl, "before", before, "lambda", lambda)
	}
}

func (e *Engine) applyMoves(moves []Move) float64 {
	for _, m := range moves {
		x := quartetOf(e.t, m.Node1, m.Node2)
		x.swap(e.t, m.Swap)
		x.setLengths(e.t, m.Lengths)
		e.o.Invalidate(m.Edge())
	}
	logl := likelihood.OptimizeAll(e.o, e.t, 1)
	if e.opts.Recorder != nil {
		e.opts.Recorder.Record(e.t, moves[0].Edge(), logl)
	}
	return logl
}

func (e *Engine) rollback() {
	e.t.Restore(&e.snap)
	e.o.InvalidateAll()
}

func (e *Engine) inconsistent(claimed, observed float64, moves int) error {
	e.log.Error("tree scores below its best move", "claimed", claimed, "observed", observed, "moves", moves)
	return &errors.InconsistentError{Stage: "nni step", Claimed: claimed, Observed: observed, Moves: moves}
}
