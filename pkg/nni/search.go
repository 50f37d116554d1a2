package nni

import "github.com/matzehuels/iqpnni/pkg/likelihood"

// Result summarizes one hill climb.
type Result struct {
	LogL    float64
	Steps   int
	Applied int  // moves applied over all steps that counted
	Skipped bool // the estimator judged the climb hopeless and stopped it
}

// Search climbs from a tree scoring cur until a step applies no move.
//
// When heuristic is set and the estimator has history, the climb stops as
// soon as cur plus the expected gain of the moves still expected falls to
// best or below. After a climb that applied moves, every branch is
// optimized once more and the move count is added to the estimator.
func (e *Engine) Search(cur, best float64, heuristic bool) (Result, error) {
	res := Result{LogL: cur}
	e.restrict = false

	for res.Steps < e.opts.MaxSteps {
		if heuristic && e.est.Ready() && e.est.Hopeless(res.LogL, best, res.Applied) {
			res.Skipped = true
			return res, nil
		}
		step, err := e.Step(res.LogL)
		if err != nil {
			return res, err
		}
		res.Steps++
		if step.Applied == 0 {
			res.LogL = step.LogL
			break
		}
		e.est.AddGain((step.LogL - res.LogL) / float64(step.Applied))
		res.Applied += step.Applied
		res.LogL = step.LogL
	}
	e.restrict = false

	if res.Applied > 0 {
		res.LogL = likelihood.OptimizeAll(e.o, e.t, likelihood.DefaultRounds)
		e.est.AddCount(res.Applied)
	}
	return res, nil
}
