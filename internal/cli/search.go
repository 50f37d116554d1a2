package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/buildinfo"
	"github.com/matzehuels/iqpnni/pkg/candidate"
	"github.com/matzehuels/iqpnni/pkg/errors"
	"github.com/matzehuels/iqpnni/pkg/search"
)

// Output file suffixes, appended to the output prefix.
const (
	suffixTree       = ".treefile"
	suffixResult     = ".result.json"
	suffixCandidates = ".candidates.jsonl"
	suffixTrees      = ".treels"
	suffixScores     = ".lh"
)

// searchOpts holds the command-line flags of the search command that are
// not search options.
type searchOpts struct {
	config    string // TOML option file
	output    string // output prefix
	startTree string // Newick file with the starting tree
	trace     bool   // write per-iteration trees and scores
	refresh   bool   // ignore cached results
	cache     cacheOpts
	mongoURI  string
	mongoDB   string
}

// resultFile is the JSON document written next to the tree file.
type resultFile struct {
	Version string `json:"version"`
	*search.Result
}

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var so searchOpts
	var flags search.Options

	cmd := &cobra.Command{
		Use:   "search <alignment>",
		Short: "Search for the maximum-likelihood tree of an alignment",
		Long: `Search reads a FASTA or PHYLIP DNA alignment and runs the NNI + IQP tree
search. Options come from defaults, then the --config TOML file, then flags.

Outputs, written next to the output prefix:
  <prefix>.treefile          best tree (Newick)
  <prefix>.result.json       best tree, scores and candidate trees
  <prefix>.candidates.jsonl  candidate trees (with --candidates)
  <prefix>.treels, .lh       per-iteration trees and scores (with --trace)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadSearchOptions(so.config, flags, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return c.runSearch(cmd.Context(), args[0], opts, so)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&so.config, "config", "c", "", "TOML file with search options")
	f.StringVarP(&so.output, "output", "o", "", "output prefix (default: alignment path without extension)")
	f.StringVarP(&so.startTree, "tree", "t", "", "Newick file with the starting tree (default: quartet puzzling)")
	f.BoolVar(&so.trace, "trace", false, "write per-iteration trees and log-likelihoods")
	f.BoolVar(&so.refresh, "refresh", false, "ignore cached results")
	f.BoolVar(&so.cache.noCache, "no-cache", false, "disable the result cache")
	f.StringVar(&so.cache.redisURL, "redis", "", "cache results in Redis at this URL (redis://host:port/db)")
	f.StringVar(&so.cache.namespace, "cache-namespace", "", "prefix cache keys with this namespace")
	f.StringVar(&so.mongoURI, "mongo", "", "also store candidate trees in MongoDB at this URI")
	f.StringVar(&so.mongoDB, "mongo-db", appName, "MongoDB database for candidate trees")

	f.Uint64Var(&flags.Seed, "seed", search.DefaultSeed, "random seed")
	f.IntVarP(&flags.MaxIterations, "iterations", "n", 0, "maximum number of iterations (default 1000)")
	f.IntVar(&flags.MinIterations, "min-iterations", 0, "minimum iterations of the predicted stop rule (default 100)")
	f.StringVar(&flags.StopRule, "stop-rule", "", "stop rule: fixed (default), predicted")
	f.Float64Var(&flags.StopConfidence, "stop-confidence", 0, "confidence of the predicted stop rule (default 0.95)")
	f.DurationVar(&flags.TimeLimit, "time-limit", 0, "stop after this wall-clock time (e.g. 10m)")
	f.StringVar(&flags.Perturbation, "perturbation", "", "perturbation: iqp (default), random-nni")
	f.Float64Var(&flags.DeleteProportion, "p-delete", 0, "fixed proportion of leaves deleted per IQP step (default: adaptive)")
	f.IntVar(&flags.KRepresent, "k-represent", 0, "representative leaves per subtree (default 4)")
	f.StringVar(&flags.Quartet, "quartet", "", "quartet test: distance (default), parsimony")
	f.StringVar(&flags.NNIVariant, "nni", "", "NNI branch optimization: nni5 (default), nni1")
	f.BoolVar(&flags.SpeedNNI, "speed-nni", false, "re-evaluate only branches near applied moves")
	f.IntVar(&flags.SpeedUpAfter, "speed-up-after", 0, "abandon hopeless hill climbs after this iteration (default 100)")
	f.BoolVar(&flags.Prefilter, "prefilter", false, "skip NNI probes that do not improve parsimony")
	f.IntVar(&flags.PrefilterSlack, "prefilter-slack", 0, "parsimony steps a probed swap may lose")
	f.BoolVar(&flags.Candidates, "candidates", false, "collect every distinct topology visited")
	f.Float64Var(&flags.LoglCutoff, "logl-cutoff", 0, "ignore candidate trees at or below this log-likelihood")
	f.IntVarP(&flags.BootstrapReplicates, "bootstrap", "b", 0, "RELL bootstrap replicates over the candidate trees")

	return cmd
}

// flagFields maps search flags to the option field they set.
var flagFields = map[string]func(dst *search.Options, src search.Options){
	"seed":            func(d *search.Options, s search.Options) { d.Seed = s.Seed },
	"iterations":      func(d *search.Options, s search.Options) { d.MaxIterations = s.MaxIterations },
	"min-iterations":  func(d *search.Options, s search.Options) { d.MinIterations = s.MinIterations },
	"stop-rule":       func(d *search.Options, s search.Options) { d.StopRule = s.StopRule },
	"stop-confidence": func(d *search.Options, s search.Options) { d.StopConfidence = s.StopConfidence },
	"time-limit":      func(d *search.Options, s search.Options) { d.TimeLimit = s.TimeLimit },
	"perturbation":    func(d *search.Options, s search.Options) { d.Perturbation = s.Perturbation },
	"p-delete":        func(d *search.Options, s search.Options) { d.DeleteProportion = s.DeleteProportion },
	"k-represent":     func(d *search.Options, s search.Options) { d.KRepresent = s.KRepresent },
	"quartet":         func(d *search.Options, s search.Options) { d.Quartet = s.Quartet },
	"nni":             func(d *search.Options, s search.Options) { d.NNIVariant = s.NNIVariant },
	"speed-nni":       func(d *search.Options, s search.Options) { d.SpeedNNI = s.SpeedNNI },
	"speed-up-after":  func(d *search.Options, s search.Options) { d.SpeedUpAfter = s.SpeedUpAfter },
	"prefilter":       func(d *search.Options, s search.Options) { d.Prefilter = s.Prefilter },
	"prefilter-slack": func(d *search.Options, s search.Options) { d.PrefilterSlack = s.PrefilterSlack },
	"candidates":      func(d *search.Options, s search.Options) { d.Candidates = s.Candidates },
	"logl-cutoff":     func(d *search.Options, s search.Options) { d.LoglCutoff = s.LoglCutoff },
	"bootstrap":       func(d *search.Options, s search.Options) { d.BootstrapReplicates = s.BootstrapReplicates },
}

// loadSearchOptions reads the option file, if any, and overrides it with
// every flag the user set.
func loadSearchOptions(path string, flags search.Options, changed func(string) bool) (search.Options, error) {
	var opts search.Options
	if path != "" {
		var err error
		if opts, err = search.LoadOptions(path); err != nil {
			return search.Options{}, err
		}
	}
	for name, set := range flagFields {
		if changed(name) {
			set(&opts, flags)
		}
	}
	if opts.BootstrapReplicates > 0 {
		opts.Candidates = true
	}
	return opts, nil
}

// outputPrefix returns the prefix output files are named by.
func outputPrefix(alignmentPath, output string) (string, error) {
	prefix := output
	if prefix == "" {
		prefix = strings.TrimSuffix(alignmentPath, filepath.Ext(alignmentPath))
	}
	if err := errors.ValidateOutputPrefix(prefix); err != nil {
		return "", err
	}
	return prefix, nil
}

func (c *CLI) runSearch(ctx context.Context, path string, opts search.Options, so searchOpts) error {
	prefix, err := outputPrefix(path, so.output)
	if err != nil {
		return err
	}

	prog := newProgress(c.Logger)
	aln, err := readAlignment(path)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Read %d taxa, %d sites, %d patterns", aln.NumTaxa(), aln.NumSites, aln.NumPatterns()))

	if so.startTree != "" {
		data, err := os.ReadFile(so.startTree)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFileNotFound, err, "read start tree")
		}
		opts.StartTree = strings.TrimSpace(string(data))
	}
	opts.Refresh = so.refresh
	opts.Logger = c.Logger

	store, err := newCache(ctx, so.cache)
	if err != nil {
		return err
	}
	defer store.Close()

	var trace *search.Trace
	if so.trace {
		trees, err := os.Create(prefix + suffixTrees)
		if err != nil {
			return err
		}
		defer trees.Close()
		scores, err := os.Create(prefix + suffixScores)
		if err != nil {
			return err
		}
		defer scores.Close()
		trace = &search.Trace{Trees: trees, Scores: scores}
	}

	runner := search.NewRunner(store, newKeyer(so.cache), c.Logger)
	res, cached, err := runner.Execute(ctx, aln, opts, trace)
	if err != nil && (res == nil || ctx.Err() == nil) {
		return err
	}
	runErr := err

	files, err := writeResult(ctx, prefix, res, so)
	if err != nil {
		return err
	}

	printResult(res, cached)
	for _, f := range files {
		printFile(f)
	}
	if cached && so.trace {
		printDetail("Cached result: no trace written (use --refresh to rerun)")
	}
	if runErr != nil {
		printWarning("Search interrupted after %d iterations; the best tree so far was saved", res.Iterations)
		return runErr
	}
	fmt.Println()
	printNextStep("Draw the tree", fmt.Sprintf("%s draw %s", appName, prefix+suffixTree))
	if len(res.Candidates) > 0 {
		printNextStep("Browse candidates", fmt.Sprintf("%s candidates -i %s", appName, prefix+suffixResult))
	}
	return nil
}

// readAlignment reads an alignment file, mapping failures to error codes.
func readAlignment(path string) (*alignment.Alignment, error) {
	aln, err := alignment.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "alignment %s", path)
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInvalidAlignment, err, "alignment %s", path)
	}
	return aln, nil
}

// writeResult writes the tree, result and candidate files and returns
// their paths.
func writeResult(ctx context.Context, prefix string, res *search.Result, so searchOpts) ([]string, error) {
	var files []string

	treePath := prefix + suffixTree
	if err := os.WriteFile(treePath, []byte(res.Newick+"\n"), 0644); err != nil {
		return nil, err
	}
	files = append(files, treePath)

	data, err := json.MarshalIndent(resultFile{Version: buildinfo.Short(), Result: res}, "", "  ")
	if err != nil {
		return nil, err
	}
	resultPath := prefix + suffixResult
	if err := os.WriteFile(resultPath, data, 0644); err != nil {
		return nil, err
	}
	files = append(files, resultPath)

	if len(res.Candidates) == 0 {
		return files, nil
	}
	candPath := prefix + suffixCandidates
	f, err := os.Create(candPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := saveCandidates(ctx, candidate.NewJSONSink(f), res); err != nil {
		return nil, err
	}
	files = append(files, candPath)

	if so.mongoURI != "" {
		sink, err := candidate.NewMongoSink(ctx, so.mongoURI, so.mongoDB, "")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "candidate store")
		}
		if err := saveCandidates(ctx, sink, res); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "candidate store")
		}
		files = append(files, fmt.Sprintf("mongodb %s.%s (run %s)", so.mongoDB, candidate.DefaultCollection, res.RunID))
	}
	return files, nil
}

func saveCandidates(ctx context.Context, sink candidate.Sink, res *search.Result) error {
	if err := sink.Save(ctx, res.RunID, res.Candidates); err != nil {
		_ = sink.Close(ctx)
		return err
	}
	return sink.Close(ctx)
}

// printResult prints the search summary.
func printResult(res *search.Result, cached bool) {
	printSuccess("Best tree %s", StyleNumber.Render(fmt.Sprintf("logL %.4f", res.LogL)))
	fmt.Println(formatStats(res.Iterations, len(res.Improved), res.Elapsed, cached))
	printKeyValue("Start logL", fmt.Sprintf("%.4f", res.StartLogL))
	printKeyValue("Stopped by", res.StopReason)
	if res.StopReason != search.StopRule {
		printKeyValue("Predicted", fmt.Sprintf("%d iterations", res.Predicted))
	}
	if len(res.Candidates) > 0 {
		printKeyValue("Candidates", fmt.Sprintf("%d topologies", len(res.Candidates)))
	}
	printKeyValue("Run", res.RunID)
}
