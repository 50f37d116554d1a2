package tree

import (
	"errors"
	"fmt"
)

// NodeID identifies a node in the tree arena. Leaves use the ids 0..n-1 and
// the id of a leaf equals the index of its taxon; internal nodes use n..2n-3.
type NodeID int

// None marks an empty neighbour slot.
const None NodeID = -1

// DefaultLength is the branch length given to new branches when the caller
// has no better estimate.
const DefaultLength = 0.1

// Sentinel errors for structural operations.
var (
	ErrNotAdjacent   = errors.New("nodes are not adjacent")
	ErrNoFreeNode    = errors.New("no free internal node")
	ErrSlotsFull     = errors.New("node has no free neighbour slot")
	ErrTooFewLeaves  = errors.New("tree must keep at least three leaves")
	ErrDetached      = errors.New("node is not attached to the tree")
	ErrAttached      = errors.New("node is already attached to the tree")
	ErrTaxaMismatch  = errors.New("trees have different taxon counts")
	ErrInconsistent  = errors.New("tree structure is inconsistent")
	ErrTooFewTaxa    = errors.New("a tree needs at least three taxa")
	ErrNotLeaf       = errors.New("node is not a leaf")
	ErrUnknownNodeID = errors.New("node id out of range")
)

// Link is one directed neighbour relation. The reverse relation stored on
// the neighbour always carries a bit-identical Length.
type Link struct {
	To     NodeID
	Length float64
}

// Node holds up to three neighbour links. Slots 0..degree-1 are in use.
type Node struct {
	links  [3]Link
	degree int
}

// Tree is an unrooted binary tree stored as a fixed arena of 2n-2 nodes.
//
// Leaves may be detached (degree 0) while the IQP engine reinserts them;
// internal nodes freed by a deletion are reused by the next graft. All
// mutating operations keep the reciprocity invariant: if A lists B with
// length l, then B lists A with length l.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	nodes   []Node
	numTaxa int
}

// New returns a tree for numTaxa taxa with every node detached.
func New(numTaxa int) (*Tree, error) {
	if numTaxa < 3 {
		return nil, ErrTooFewTaxa
	}
	t := &Tree{
		nodes:   make([]Node, 2*numTaxa-2),
		numTaxa: numTaxa,
	}
	for i := range t.nodes {
		for s := range t.nodes[i].links {
			t.nodes[i].links[s].To = None
		}
	}
	return t, nil
}

// Star returns a tree where taxa 0, 1 and 2 hang off a single internal node
// and every other leaf is detached, ready to be grafted.
func Star(numTaxa int, length float64) (*Tree, error) {
	t, err := New(numTaxa)
	if err != nil {
		return nil, err
	}
	center := NodeID(numTaxa)
	for leaf := NodeID(0); leaf < 3; leaf++ {
		if err := t.Join(center, leaf, length); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumTaxa returns the number of taxa the arena was sized for.
func (t *Tree) NumTaxa() int { return t.numTaxa }

// NumNodes returns the arena size, 2n-2.
func (t *Tree) NumNodes() int { return len(t.nodes) }

// IsLeaf reports whether id is a leaf id.
func (t *Tree) IsLeaf(id NodeID) bool { return int(id) < t.numTaxa }

// Degree returns the number of neighbours of id.
func (t *Tree) Degree(id NodeID) int { return t.nodes[id].degree }

// Attached reports whether id currently belongs to the tree.
func (t *Tree) Attached(id NodeID) bool { return t.nodes[id].degree > 0 }

// Neighbor returns the node in slot s of id.
func (t *Tree) Neighbor(id NodeID, s int) NodeID { return t.nodes[id].links[s].To }

// LinkAt returns the link stored in slot s of id.
func (t *Tree) LinkAt(id NodeID, s int) Link { return t.nodes[id].links[s] }

// SlotOf returns the slot of a that points to b, or -1.
func (t *Tree) SlotOf(a, b NodeID) int {
	n := &t.nodes[a]
	for s := 0; s < n.degree; s++ {
		if n.links[s].To == b {
			return s
		}
	}
	return -1
}

// OtherSlots returns the two slots of internal node id other than exclude.
// It panics when id does not have three neighbours.
func (t *Tree) OtherSlots(id NodeID, exclude int) (int, int) {
	if t.nodes[id].degree != 3 {
		panic(fmt.Sprintf("tree: other slots of node %d with degree %d", id, t.nodes[id].degree))
	}
	switch exclude {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

// Length returns the length of the branch between a and b. It panics when
// the nodes are not adjacent.
func (t *Tree) Length(a, b NodeID) float64 {
	s := t.SlotOf(a, b)
	if s < 0 {
		panic(fmt.Sprintf("tree: length of non-edge %d-%d", a, b))
	}
	return t.nodes[a].links[s].Length
}

// SetLength writes the length of the branch a-b on both sides.
func (t *Tree) SetLength(a, b NodeID, length float64) {
	sa, sb := t.SlotOf(a, b), t.SlotOf(b, a)
	if sa < 0 || sb < 0 {
		panic(fmt.Sprintf("tree: set length of non-edge %d-%d", a, b))
	}
	t.nodes[a].links[sa].Length = length
	t.nodes[b].links[sb].Length = length
}

// Join links a and b through their next free slots.
func (t *Tree) Join(a, b NodeID, length float64) error {
	if err := t.checkID(a); err != nil {
		return err
	}
	if err := t.checkID(b); err != nil {
		return err
	}
	if t.nodes[a].degree >= t.maxDegree(a) || t.nodes[b].degree >= t.maxDegree(b) {
		return ErrSlotsFull
	}
	na, nb := &t.nodes[a], &t.nodes[b]
	na.links[na.degree] = Link{To: b, Length: length}
	na.degree++
	nb.links[nb.degree] = Link{To: a, Length: length}
	nb.degree++
	return nil
}

// FreeInternal returns an internal node that is not in use.
func (t *Tree) FreeInternal() (NodeID, error) {
	for id := t.numTaxa; id < len(t.nodes); id++ {
		if t.nodes[id].degree == 0 {
			return NodeID(id), nil
		}
	}
	return None, ErrNoFreeNode
}

// Swap exchanges the subtree in slot ps of p with the subtree in slot qs of
// q. Each subtree keeps the length of the branch it hangs from, so applying
// the same swap twice restores the tree exactly.
func (t *Tree) Swap(p NodeID, ps int, q NodeID, qs int) {
	a := t.nodes[p].links[ps]
	b := t.nodes[q].links[qs]

	t.nodes[p].links[ps] = b
	t.nodes[q].links[qs] = a

	t.nodes[a.To].links[t.SlotOf(a.To, p)].To = q
	t.nodes[b.To].links[t.SlotOf(b.To, q)].To = p
}

// DeleteLeaf detaches leaf together with its internal neighbour, joining the
// two remaining neighbours by a branch of the summed length. It returns the
// joined edge.
func (t *Tree) DeleteLeaf(leaf NodeID) (Edge, error) {
	if !t.IsLeaf(leaf) {
		return Edge{}, ErrNotLeaf
	}
	if !t.Attached(leaf) {
		return Edge{}, ErrDetached
	}
	if t.NumLeaves() <= 3 {
		return Edge{}, ErrTooFewLeaves
	}
	x := t.nodes[leaf].links[0].To
	sx := t.SlotOf(x, leaf)
	s1, s2 := t.OtherSlots(x, sx)
	l1, l2 := t.nodes[x].links[s1], t.nodes[x].links[s2]
	length := l1.Length + l2.Length

	t.nodes[l1.To].links[t.SlotOf(l1.To, x)] = Link{To: l2.To, Length: length}
	t.nodes[l2.To].links[t.SlotOf(l2.To, x)] = Link{To: l1.To, Length: length}

	t.detach(x)
	t.detach(leaf)
	return NewEdge(l1.To, l2.To), nil
}

// Graft attaches a detached leaf onto edge e through a free internal node.
// The edge length is split in half and the new pendant branch gets length.
// It returns the internal node that was used.
func (t *Tree) Graft(leaf NodeID, e Edge, length float64) (NodeID, error) {
	if !t.IsLeaf(leaf) {
		return None, ErrNotLeaf
	}
	if t.Attached(leaf) {
		return None, ErrAttached
	}
	sa, sb := t.SlotOf(e.A, e.B), t.SlotOf(e.B, e.A)
	if sa < 0 || sb < 0 {
		return None, ErrNotAdjacent
	}
	x, err := t.FreeInternal()
	if err != nil {
		return None, err
	}
	half := t.nodes[e.A].links[sa].Length / 2

	t.nodes[e.A].links[sa] = Link{To: x, Length: half}
	t.nodes[e.B].links[sb] = Link{To: x, Length: half}
	t.nodes[x] = Node{
		links: [3]Link{
			{To: e.A, Length: half},
			{To: e.B, Length: half},
			{To: leaf, Length: length},
		},
		degree: 3,
	}
	t.nodes[leaf] = Node{links: [3]Link{{To: x, Length: length}, {To: None}, {To: None}}, degree: 1}
	return x, nil
}

// NumLeaves returns the number of attached leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for id := 0; id < t.numTaxa; id++ {
		if t.nodes[id].degree > 0 {
			n++
		}
	}
	return n
}

// Leaves returns the attached leaves in id order.
func (t *Tree) Leaves() []NodeID {
	leaves := make([]NodeID, 0, t.numTaxa)
	for id := 0; id < t.numTaxa; id++ {
		if t.nodes[id].degree > 0 {
			leaves = append(leaves, NodeID(id))
		}
	}
	return leaves
}

// Start returns the lowest attached leaf, the anchor for every traversal.
func (t *Tree) Start() NodeID {
	for id := 0; id < t.numTaxa; id++ {
		if t.nodes[id].degree > 0 {
			return NodeID(id)
		}
	}
	return None
}

// Assign copies the topology and branch lengths of other into t.
func (t *Tree) Assign(other *Tree) error {
	if other.numTaxa != t.numTaxa {
		return ErrTaxaMismatch
	}
	copy(t.nodes, other.nodes)
	return nil
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	c := &Tree{nodes: make([]Node, len(t.nodes)), numTaxa: t.numTaxa}
	copy(c.nodes, t.nodes)
	return c
}

// Equal reports whether both trees have identical slots, neighbours and
// bit-identical branch lengths.
func (t *Tree) Equal(other *Tree) bool {
	if t.numTaxa != other.numTaxa {
		return false
	}
	for i := range t.nodes {
		if t.nodes[i] != other.nodes[i] {
			return false
		}
	}
	return true
}

func (t *Tree) detach(id NodeID) {
	t.nodes[id] = Node{links: [3]Link{{To: None}, {To: None}, {To: None}}}
}

func (t *Tree) maxDegree(id NodeID) int {
	if t.IsLeaf(id) {
		return 1
	}
	return 3
}

func (t *Tree) checkID(id NodeID) error {
	if id < 0 || int(id) >= len(t.nodes) {
		return ErrUnknownNodeID
	}
	return nil
}
