package search

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/iqpnni/pkg/alignment"
	"github.com/matzehuels/iqpnni/pkg/cache"
	"github.com/matzehuels/iqpnni/pkg/observability"
)

// Runner runs searches with result caching. A finished search is stored
// under a key built from the alignment, the starting tree and the options,
// so rerunning the same search returns the stored result.
//
// The Runner is stateless except for the cache and logger; multiple
// goroutines can use the same Runner with different inputs.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute returns the result of searching aln with opts and whether it
// came from the cache. Cached results are ignored when opts.Refresh is set.
// trace may be nil; it is not written on a cache hit. Cancelled searches
// return their best tree but are never cached.
func (r *Runner) Execute(ctx context.Context, aln *alignment.Alignment, opts Options, trace *Trace) (*Result, bool, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	key := r.ResultKey(aln, opts)
	hooks := observability.Cache()

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var res Result
			if err := json.Unmarshal(data, &res); err == nil {
				hooks.OnCacheHit(ctx, key)
				r.Logger.Debug("cached result", "key", key, "logl", res.LogL)
				return &res, true, nil
			}
			// Unreadable entries fall through to a fresh search.
		}
		hooks.OnCacheMiss(ctx, key)
	}

	s, err := New(aln, opts)
	if err != nil {
		return nil, false, err
	}
	s.SetTrace(trace)
	res, err := s.Run(ctx)
	if err != nil {
		return res, false, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.ResultTTL); err != nil {
			r.Logger.Warn("could not cache result", "error", err)
		} else {
			hooks.OnCacheSet(ctx, key, len(data))
		}
	}
	return res, false, nil
}

// ResultKey returns the cache key of a search. opts must have defaults set.
func (r *Runner) ResultKey(aln *alignment.Alignment, opts Options) string {
	startHash := ""
	if opts.StartTree != "" {
		startHash = cache.Hash([]byte(opts.StartTree))
	}
	return r.Keyer.ResultKey(AlignmentHash(aln), startHash, opts.Hash())
}

// AlignmentHash fingerprints the taxon names and compressed patterns of
// aln.
func AlignmentHash(aln *alignment.Alignment) string {
	data, _ := json.Marshal(struct {
		Names    []string `json:"names"`
		Patterns [][]uint8 `json:"patterns"`
		Weights  []int    `json:"weights"`
	}{aln.Names, aln.Patterns, aln.Weights})
	return cache.Hash(data)
}
