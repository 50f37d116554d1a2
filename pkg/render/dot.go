package render

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Layout engines.
const (
	LayoutNeato = "neato"
	LayoutDot   = "dot"
)

// minEdgeLen keeps very short branches visible in the neato layout.
const minEdgeLen = 0.05

// Options configures tree drawings.
type Options struct {
	// Layout is LayoutNeato (unrooted, the default) or LayoutDot.
	Layout string

	// Lengths labels every edge with its branch length.
	Lengths bool

	// Scale multiplies branch lengths into layout inches for neato.
	// Zero selects a scale that makes the tree about ten inches long.
	Scale float64
}

// ToDOT converts t to an undirected Graphviz graph. Leaves become labelled
// boxes named by names (or their ids when names is nil); internal nodes are
// drawn as points.
func ToDOT(t *tree.Tree, names []string, opts Options) string {
	layout := opts.Layout
	if layout == "" {
		layout = LayoutNeato
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 10 / max(t.TotalLength(), 1e-9)
	}

	var buf bytes.Buffer
	buf.WriteString("graph T {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	if layout == LayoutDot {
		buf.WriteString("  rankdir=LR;\n")
		buf.WriteString("  ranksep=0.3;\n")
		buf.WriteString("  nodesep=0.15;\n")
	} else {
		buf.WriteString("  overlap=false;\n")
		buf.WriteString("  splines=false;\n")
	}
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.1,0.05\"];\n")
	buf.WriteString("  edge [fontsize=10, fontcolor=grey40];\n")
	buf.WriteString("\n")

	t.Walk(func(n, _ tree.NodeID) {
		if t.IsLeaf(n) {
			fmt.Fprintf(&buf, "  n%d [label=%q];\n", n, leafLabel(n, names))
		} else {
			fmt.Fprintf(&buf, "  n%d [shape=point, width=0.05, label=\"\"];\n", n)
		}
	})

	buf.WriteString("\n")
	t.Walk(func(n, parent tree.NodeID) {
		if parent == tree.None {
			return
		}
		l := t.Length(parent, n)
		attrs := ""
		if layout == LayoutNeato {
			attrs = "len=" + strconv.FormatFloat(max(l*scale, minEdgeLen), 'f', 3, 64)
		}
		if opts.Lengths {
			if attrs != "" {
				attrs += ", "
			}
			attrs += fmt.Sprintf("label=%q", strconv.FormatFloat(l, 'g', 4, 64))
		}
		if attrs != "" {
			fmt.Fprintf(&buf, "  n%d -- n%d [%s];\n", parent, n, attrs)
		} else {
			fmt.Fprintf(&buf, "  n%d -- n%d;\n", parent, n)
		}
	})

	buf.WriteString("}\n")
	return buf.String()
}

func leafLabel(n tree.NodeID, names []string) string {
	if int(n) < len(names) {
		return names[n]
	}
	return strconv.Itoa(int(n))
}
