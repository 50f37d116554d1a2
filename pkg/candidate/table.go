package candidate

import (
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/iqpnni/pkg/newick"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

// UpdateMargin is how much a revisited topology must improve on its stored
// log-likelihood before the record is updated.
const UpdateMargin = 1e-4

// initialCapacity is the record capacity of a fresh table.
const initialCapacity = 64

// Record is one distinct topology seen during a search.
type Record struct {
	ID       int       `json:"id" bson:"id"`
	Topology string    `json:"topology" bson:"topology"`
	LogL     float64   `json:"logl" bson:"logl"`
	SiteLogL []float64 `json:"site_logl,omitempty" bson:"site_logl,omitempty"`
	Newick   string    `json:"newick,omitempty" bson:"newick,omitempty"`
	Visits   int       `json:"visits" bson:"visits"`
}

// Options configures a Table.
type Options struct {
	// Cutoff rejects new topologies whose log-likelihood is not above
	// Cutoff + UpdateMargin. Zero disables the cutoff.
	Cutoff float64

	// Names, when set, makes the table keep a Newick string with branch
	// lengths for every record.
	Names []string

	// KeepSiteLogL stores the per-pattern log-likelihoods with each record.
	KeepSiteLogL bool

	// Bootstrap, when set, receives the per-pattern log-likelihoods of
	// every accepted evaluation.
	Bootstrap *Bootstrap

	Logger *log.Logger
}

// Table deduplicates the topologies visited by a search. Records are
// appended or updated in place and never removed.
//
// A Table is not safe for concurrent use.
type Table struct {
	opts    Options
	log     *log.Logger
	records []Record
	index   map[string]int
	dups    int
}

// NewTable returns an empty table.
func NewTable(opts Options) *Table {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Table{
		opts:    opts,
		log:     logger,
		records: make([]Record, 0, initialCapacity),
		index:   make(map[string]int, initialCapacity),
	}
}

// NeedsSiteLogL reports whether Add uses per-pattern log-likelihoods.
func (tb *Table) NeedsSiteLogL() bool {
	return tb.opts.KeepSiteLogL || tb.opts.Bootstrap != nil
}

// Add records t with log-likelihood logl. sites holds the per-pattern
// log-likelihoods and may be nil when NeedsSiteLogL is false; it is copied
// when kept. Add returns the record id and whether the table changed.
func (tb *Table) Add(t *tree.Tree, logl float64, sites []float64) (int, bool) {
	key := newick.Canonical(t)
	id, seen := tb.index[key]
	if seen {
		tb.dups++
		r := &tb.records[id]
		r.Visits++
		if logl <= r.LogL+UpdateMargin {
			if logl < r.LogL-5 {
				tb.log.Debug("revisited topology scores far below its record", "id", id, "logl", logl, "stored", r.LogL)
			}
			return id, false
		}
		r.LogL = logl
	} else {
		if tb.opts.Cutoff != 0 && logl <= tb.opts.Cutoff+UpdateMargin {
			return -1, false
		}
		tb.grow()
		id = len(tb.records)
		tb.records = append(tb.records, Record{ID: id, Topology: key, LogL: logl, Visits: 1})
		tb.index[key] = id
	}

	r := &tb.records[id]
	if tb.opts.Names != nil {
		r.Newick = newick.Format(t, tb.opts.Names)
	}
	if tb.opts.KeepSiteLogL && sites != nil {
		r.SiteLogL = append(r.SiteLogL[:0], sites...)
	}
	if tb.opts.Bootstrap != nil && sites != nil {
		tb.opts.Bootstrap.Update(id, sites)
	}
	return id, true
}

// grow doubles the record capacity when the table is full.
func (tb *Table) grow() {
	if len(tb.records) < cap(tb.records) {
		return
	}
	next := make([]Record, len(tb.records), 2*cap(tb.records))
	copy(next, tb.records)
	tb.records = next
	tb.log.Debug("candidate table resized", "capacity", cap(next))
}

// Len returns the number of distinct topologies.
func (tb *Table) Len() int { return len(tb.records) }

// Capacity returns the number of records the table holds before it grows.
func (tb *Table) Capacity() int { return cap(tb.records) }

// Duplicates returns how many additions hit a known topology.
func (tb *Table) Duplicates() int { return tb.dups }

// Get returns the record for a canonical topology string.
func (tb *Table) Get(topology string) (Record, bool) {
	id, ok := tb.index[topology]
	if !ok {
		return Record{}, false
	}
	return tb.records[id], true
}

// At returns the record with the given id.
func (tb *Table) At(id int) Record { return tb.records[id] }

// Records returns a copy of all records in insertion order.
func (tb *Table) Records() []Record { return slices.Clone(tb.records) }

// Best returns the records sorted by descending log-likelihood, at most n
// of them (all when n <= 0).
func (tb *Table) Best(n int) []Record {
	out := slices.Clone(tb.records)
	slices.SortStableFunc(out, func(a, b Record) int {
		switch {
		case a.LogL > b.LogL:
			return -1
		case a.LogL < b.LogL:
			return 1
		}
		return 0
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Frequencies returns the bootstrap support of every record, indexed by
// record id, or nil when the table runs no bootstrap.
func (tb *Table) Frequencies() []float64 {
	if tb.opts.Bootstrap == nil {
		return nil
	}
	return tb.opts.Bootstrap.Frequencies(len(tb.records))
}
