package newick

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/iqpnni/pkg/tree"
)

// Sentinel errors returned by the parser.
var (
	ErrSyntax       = errors.New("newick syntax error")
	ErrNotBinary    = errors.New("tree is not binary")
	ErrUnknownTaxon = errors.New("unknown taxon")
	ErrDuplicate    = errors.New("duplicate taxon")
	ErrMissingTaxa  = errors.New("tree does not contain every taxon")
)

// node is the intermediate parse tree.
type node struct {
	label    string
	length   float64
	hasLen   bool
	children []*node
}

// Parse reads one tree in Newick format. Leaf labels are matched against
// names, and the leaf for names[i] gets node id i. Rooted input (two
// children at the top level) is unrooted by merging the two root branches.
// Missing branch lengths default to [tree.DefaultLength].
func Parse(s string, names []string) (*tree.Tree, error) {
	root, err := parseString(s)
	if err != nil {
		return nil, err
	}
	root, err = unroot(root)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	t, err := tree.New(len(names))
	if err != nil {
		return nil, err
	}
	b := builder{t: t, index: index, seen: make([]bool, len(names)), next: tree.NodeID(len(names))}
	if _, err := b.build(root); err != nil {
		return nil, err
	}
	for i, ok := range b.seen {
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingTaxa, names[i])
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Labels returns the leaf labels of a Newick tree in order of appearance.
func Labels(s string) ([]string, error) {
	root, err := parseString(s)
	if err != nil {
		return nil, err
	}
	var out []string
	var walk func(n *node)
	walk = func(n *node) {
		if len(n.children) == 0 {
			out = append(out, n.label)
			return
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

type builder struct {
	t     *tree.Tree
	index map[string]int
	seen  []bool
	next  tree.NodeID
}

func (b *builder) build(n *node) (tree.NodeID, error) {
	if len(n.children) == 0 {
		i, ok := b.index[n.label]
		if !ok {
			return tree.None, fmt.Errorf("%w: %q", ErrUnknownTaxon, n.label)
		}
		if b.seen[i] {
			return tree.None, fmt.Errorf("%w: %q", ErrDuplicate, n.label)
		}
		b.seen[i] = true
		return tree.NodeID(i), nil
	}
	if int(b.next) >= b.t.NumNodes() {
		return tree.None, fmt.Errorf("%w: more internal nodes than taxa allow", ErrNotBinary)
	}
	x := b.next
	b.next++
	for _, c := range n.children {
		id, err := b.build(c)
		if err != nil {
			return tree.None, err
		}
		length := tree.DefaultLength
		if c.hasLen {
			length = c.length
		}
		if err := b.t.Join(x, id, length); err != nil {
			return tree.None, err
		}
	}
	return x, nil
}

// unroot turns a bifurcating root into a trifurcation and checks that every
// other internal node has exactly two children.
func unroot(root *node) (*node, error) {
	if len(root.children) == 2 {
		a, c := root.children[0], root.children[1]
		if len(a.children) == 0 {
			a, c = c, a
		}
		if len(a.children) == 0 {
			return nil, fmt.Errorf("%w: a tree needs at least three taxa", ErrNotBinary)
		}
		c.length += a.length
		c.hasLen = c.hasLen || a.hasLen
		root = &node{children: append(append([]*node{}, a.children...), c)}
	}
	if len(root.children) != 3 {
		return nil, fmt.Errorf("%w: root has %d children", ErrNotBinary, len(root.children))
	}
	var check func(n *node) error
	check = func(n *node) error {
		for _, c := range n.children {
			if len(c.children) != 0 && len(c.children) != 2 {
				return fmt.Errorf("%w: internal node with %d children", ErrNotBinary, len(c.children))
			}
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return root, check(root)
}

// =============================================================================
// Lexing
// =============================================================================

type parser struct {
	s   string
	pos int
}

func parseString(s string) (*node, error) {
	p := &parser{s: strings.TrimSpace(s)}
	n, err := p.subtree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ';' {
		p.pos++
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, p.errorf("trailing input")
	}
	return n, nil
}

func (p *parser) subtree() (*node, error) {
	p.skipSpace()
	n := &node{}
	if p.peek() == '(' {
		p.pos++
		for {
			c, err := p.subtree()
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, p.errorf("expected ',' or ')'")
			}
			break
		}
	}
	label, err := p.label()
	if err != nil {
		return nil, err
	}
	n.label = label
	if len(n.children) == 0 && label == "" {
		return nil, p.errorf("empty leaf label")
	}
	p.skipSpace()
	if p.peek() == ':' {
		p.pos++
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.s) && !strings.ContainsRune("(),:;[ \t\r\n", rune(p.s[p.pos])) {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.s[start:p.pos], 64)
		if err != nil {
			return nil, p.errorf("bad branch length %q", p.s[start:p.pos])
		}
		if v < 0 {
			v = 0
		}
		n.length, n.hasLen = v, true
	}
	return n, nil
}

func (p *parser) label() (string, error) {
	p.skipSpace()
	if p.peek() == '\'' {
		p.pos++
		var b strings.Builder
		for p.pos < len(p.s) {
			c := p.s[p.pos]
			p.pos++
			if c == '\'' {
				if p.peek() == '\'' {
					b.WriteByte('\'')
					p.pos++
					continue
				}
				return b.String(), nil
			}
			b.WriteByte(c)
		}
		return "", p.errorf("unterminated quoted label")
	}
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("(),:;[ \t\r\n", rune(p.s[p.pos])) {
		p.pos++
	}
	label := p.s[start:p.pos]
	p.skipComment()
	return label, nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		case '[':
			p.skipComment()
		default:
			return
		}
	}
}

func (p *parser) skipComment() {
	if p.peek() != '[' {
		return
	}
	if end := strings.IndexByte(p.s[p.pos:], ']'); end >= 0 {
		p.pos += end + 1
	} else {
		p.pos = len(p.s)
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrSyntax, p.pos, fmt.Sprintf(format, args...))
}
