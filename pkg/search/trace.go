package search

import (
	"fmt"
	"io"
)

// Trace receives the per-iteration output of a search: every tree the
// iterations end on, and the likelihood after each perturbation and each
// hill climb. Either writer may be nil.
type Trace struct {
	// Trees gets one Newick line per iteration.
	Trees io.Writer

	// Scores gets tab-separated "iteration logl" lines: one for the
	// starting tree, then two per iteration (after the perturbation and
	// after the hill climb).
	Scores io.Writer
}

func (tr *Trace) start(logl float64, nwk string) error {
	if tr == nil {
		return nil
	}
	if err := tr.tree(nwk); err != nil {
		return err
	}
	return tr.score(1, logl)
}

func (tr *Trace) iteration(iter int, perturbed, climbed float64, nwk string) error {
	if tr == nil {
		return nil
	}
	if err := tr.score(iter, perturbed); err != nil {
		return err
	}
	if err := tr.score(iter, climbed); err != nil {
		return err
	}
	return tr.tree(nwk)
}

func (tr *Trace) tree(nwk string) error {
	if tr.Trees == nil {
		return nil
	}
	_, err := fmt.Fprintln(tr.Trees, nwk)
	return err
}

func (tr *Trace) score(iter int, logl float64) error {
	if tr.Scores == nil {
		return nil
	}
	_, err := fmt.Fprintf(tr.Scores, "%d\t%.6f\n", iter, logl)
	return err
}
