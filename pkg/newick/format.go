package newick

import (
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Format writes t in Newick format with branch lengths, rooted at the
// internal neighbour of the first attached leaf. Lengths use the shortest
// representation that parses back to the identical float64, so
// Parse(Format(t)) restores the branch lengths exactly. Leaves are labelled
// with names, or with their ids when names is nil.
func Format(t *tree.Tree, names []string) string {
	var b strings.Builder
	start := t.Start()
	if start == tree.None {
		return ";"
	}
	x := t.Neighbor(start, 0)
	b.WriteByte('(')
	writeLeaf(&b, start, names)
	writeLength(&b, t.Length(start, x))
	for s := 0; s < t.Degree(x); s++ {
		if c := t.Neighbor(x, s); c != start {
			b.WriteByte(',')
			writeSubtree(&b, t, x, c, names)
		}
	}
	b.WriteString(");")
	return b.String()
}

func writeSubtree(b *strings.Builder, t *tree.Tree, from, to tree.NodeID, names []string) {
	if t.IsLeaf(to) {
		writeLeaf(b, to, names)
	} else {
		b.WriteByte('(')
		first := true
		for s := 0; s < t.Degree(to); s++ {
			c := t.Neighbor(to, s)
			if c == from {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			writeSubtree(b, t, to, c, names)
		}
		b.WriteByte(')')
	}
	writeLength(b, t.Length(from, to))
}

func writeLeaf(b *strings.Builder, id tree.NodeID, names []string) {
	if names == nil {
		b.WriteString(strconv.Itoa(int(id)))
		return
	}
	b.WriteString(quote(names[id]))
}

func writeLength(b *strings.Builder, l float64) {
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(l, 'g', -1, 64))
}

func quote(name string) string {
	if !strings.ContainsAny(name, " ()[]':;,\t") {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Canonical returns a topology-only string that is identical for two trees
// exactly when they have the same unrooted topology. Leaves are written as
// taxon ids, the tree is rooted at the lowest attached taxon, and children
// are ordered by the smallest taxon id they contain.
func Canonical(t *tree.Tree) string {
	start := t.Start()
	if start == tree.None {
		return ";"
	}
	x := t.Neighbor(start, 0)
	s, _ := canonicalSubtree(t, start, x)
	return "(" + strconv.Itoa(int(start)) + "," + strings.TrimSuffix(strings.TrimPrefix(s, "("), ")") + ");"
}

func canonicalSubtree(t *tree.Tree, from, to tree.NodeID) (string, tree.NodeID) {
	if t.IsLeaf(to) {
		return strconv.Itoa(int(to)), to
	}
	type part struct {
		s   string
		min tree.NodeID
	}
	parts := make([]part, 0, 2)
	for s := 0; s < t.Degree(to); s++ {
		c := t.Neighbor(to, s)
		if c == from {
			continue
		}
		str, m := canonicalSubtree(t, to, c)
		parts = append(parts, part{str, m})
	}
	slices.SortFunc(parts, func(a, b part) int { return int(a.min - b.min) })

	var b strings.Builder
	b.WriteByte('(')
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.s)
	}
	b.WriteByte(')')
	return b.String(), parts[0].min
}
