package candidate

import (
	"github.com/matzehuels/iqpnni/pkg/likelihood"
	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Collector feeds every scored tree into a Table. It satisfies the NNI
// engine's recorder interface.
type Collector struct {
	table *Table
	sites likelihood.SiteEvaluator
	buf   []float64
}

// NewCollector returns a collector for table. sites supplies per-pattern
// log-likelihoods when the table needs them and may be nil otherwise.
func NewCollector(table *Table, sites likelihood.SiteEvaluator) *Collector {
	return &Collector{table: table, sites: sites}
}

// Table returns the table the collector writes to.
func (c *Collector) Table() *Table { return c.table }

// Record adds t, scored at e, to the table.
func (c *Collector) Record(t *tree.Tree, e tree.Edge, logl float64) {
	var sites []float64
	if c.sites != nil && c.table.NeedsSiteLogL() {
		c.buf = c.sites.PatternLogLikelihoods(e, c.buf[:0])
		sites = c.buf
	}
	c.table.Add(t, logl, sites)
}
