// Package candidate keeps the table of distinct topologies a search has
// scored.
//
// Every tree the NNI engine probes or accepts is keyed by its canonical
// topology string. A revisited topology only updates its record when the
// new score beats the stored one by more than [UpdateMargin]. The table
// grows by doubling and never drops a record.
//
// With a [Bootstrap] attached, each accepted evaluation is also scored on
// resampled copies of the alignment using the tree's per-pattern
// log-likelihoods (RELL), and each replicate remembers its best tree. The
// fraction of replicates a tree holds is its bootstrap support.
//
// Finished tables can be written to a [Sink]: JSON lines or a MongoDB
// collection.
package candidate
