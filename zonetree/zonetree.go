// Package zonetree implements the owner-name-indexed container the rest of
// the core operates over: an ordered map from a name's lookup-form key to
// a zone node, supporting exact lookup, predecessor-or-equal lookup (for
// DNSSEC denial-of-existence), ordered traversal, and empty-node pruning.
//
// Grounded on knot-dns's zone-tree.c (trie_get_leq / zone_tree_delete_empty_node)
// for the operation contracts, and on the teacher's Owners []OwnerData +
// OwnerIndex cmap.ConcurrentMap[string,int] pair (tdns/structs.go,
// tdns/dnsutils.go:ComputeIndices) for the concurrent-map-plus-sorted-index
// implementation strategy.
package zonetree

import (
	"sort"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/twotwotwo/sorts"

	"github.com/tornvall/zxfer/dnsname"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

// Flags holds the small per-node flag set spec.md §3 names.
type Flags uint8

const (
	// HasWildcardChild is set on a node that has an immediate child
	// whose owner's leftmost label is "*".
	HasWildcardChild Flags = 1 << iota
)

// Node is the set of RRsets sharing a single owner name, plus the
// bookkeeping the zone tree needs: a weak parent back-reference, a child
// count, a predecessor back-reference in canonical order, and flags.
type Node struct {
	Owner    string
	key      string
	RRsets   map[uint16]rrset.RRset
	Parent   *Node
	Children int
	Flags    Flags

	prev *Node
}

// NewNode creates an empty node for owner.
func NewNode(owner string) *Node {
	return &Node{
		Owner:  owner,
		key:    dnsname.LookupKey(owner),
		RRsets: make(map[uint16]rrset.RRset),
	}
}

// Key returns the node's lookup-form sort key.
func (n *Node) Key() string { return n.key }

// Prev returns the node's predecessor in canonical (lookup-key) order.
// The chain is circular: the leftmost node's Prev is the rightmost node.
func (n *Node) Prev() *Node { return n.prev }

// RRset returns the RRset of the given type at this node, or the zero
// value (IsEmpty() == true) if none is present.
func (n *Node) RRset(rrtype uint16) rrset.RRset {
	return n.RRsets[rrtype]
}

// SetRRset installs rs at this node, keyed by rs.Type. An empty RRset
// (IsEmpty()) is stored as a no-op delete, matching the rule that empty
// RRsets are legal in transit but never persisted.
func (n *Node) SetRRset(rs rrset.RRset) {
	if rs.IsEmpty() {
		delete(n.RRsets, rs.Type)
		return
	}
	n.RRsets[rs.Type] = rs
}

// IsEmptyNonTerminal reports whether n has no RRsets but has children --
// a legal state in DNS (an owner name that exists only because a
// descendant does).
func (n *Node) IsEmptyNonTerminal() bool {
	return len(n.RRsets) == 0 && n.Children > 0
}

// hasContent reports whether n carries either RRsets or children; a node
// with neither is a candidate for pruning.
func (n *Node) hasContent() bool {
	return len(n.RRsets) > 0 || n.Children > 0
}

// Tree is an ordered map from a node's lookup-form key to the node,
// supporting insert, exact lookup, predecessor-or-equal, removal, ordered
// traversal, and empty-node pruning. It is not a balanced tree; this is an
// implementation choice, not part of the contract (see zonetree package
// doc). The concurrent map lets readers look nodes up by key while a
// writer is mid-insert on a different key; the `keys` slice ordering
// itself is protected by `mu` since it must stay fully sorted.
type Tree struct {
	mu    sync.RWMutex
	keys  []string
	byKey cmap.ConcurrentMap[string, *Node]
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{byKey: cmap.New[*Node]()}
}

// Count returns the number of nodes in the tree.
func (t *Tree) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keys)
}

// Insert inserts node, or replaces the existing node at the same owner.
func (t *Tree) Insert(node *Node) error {
	if node == nil || node.Owner == "" {
		return xfrproto.InvalidArgf("zonetree.Insert", "nil tree or owner")
	}
	if node.key == "" {
		node.key = dnsname.LookupKey(node.Owner)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exact := t.search(node.key)
	if exact {
		t.byKey.Set(node.key, node)
		t.linkNeighbors(pos)
		return nil
	}

	t.keys = append(t.keys, "")
	copy(t.keys[pos+1:], t.keys[pos:])
	t.keys[pos] = node.key
	t.byKey.Set(node.key, node)
	t.linkNeighbors(pos)
	return nil
}

// linkNeighbors fixes the circular prev chain around a node freshly
// inserted (or replaced) at position pos in the sorted key slice.
func (t *Tree) linkNeighbors(pos int) {
	n := len(t.keys)
	if n == 1 {
		node, _ := t.byKey.Get(t.keys[0])
		node.prev = node
		return
	}
	cur, _ := t.byKey.Get(t.keys[pos])
	prevIdx := (pos - 1 + n) % n
	nextIdx := (pos + 1) % n
	prevNode, _ := t.byKey.Get(t.keys[prevIdx])
	nextNode, _ := t.byKey.Get(t.keys[nextIdx])
	cur.prev = prevNode
	if nextNode != cur {
		nextNode.prev = cur
	}
}

// search returns the insertion position of key in the sorted keys slice,
// and whether it is already present there. Caller must hold t.mu.
func (t *Tree) search(key string) (pos int, exact bool) {
	pos = sort.SearchStrings(t.keys, key)
	exact = pos < len(t.keys) && t.keys[pos] == key
	return
}

// Get performs an exact lookup by owner name.
func (t *Tree) Get(owner string) (*Node, bool) {
	return t.byKey.Get(dnsname.LookupKey(owner))
}

// PredecessorOrEqual returns either an exact match for owner, or the
// in-order predecessor of owner. If the tree is empty, ok is false and
// both returned nodes are nil. If owner's key precedes every stored key,
// found is nil and previous wraps around to the rightmost node.
func (t *Tree) PredecessorOrEqual(owner string) (found, previous *Node, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.keys) == 0 {
		return nil, nil, false
	}

	key := dnsname.LookupKey(owner)
	pos, exact := t.search(key)
	if exact {
		node, _ := t.byKey.Get(t.keys[pos])
		return node, node.prev, true
	}
	if pos == 0 {
		// Precedes every stored key: wrap around to the rightmost node.
		leftmost, _ := t.byKey.Get(t.keys[0])
		return nil, leftmost.prev, true
	}
	prevNode, _ := t.byKey.Get(t.keys[pos-1])
	return nil, prevNode, true
}

// Remove removes and returns the node at owner, if present.
func (t *Tree) Remove(owner string) (*Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := dnsname.LookupKey(owner)
	pos, exact := t.search(key)
	if !exact {
		return nil, false
	}
	node, _ := t.byKey.Get(key)
	t.removeAt(pos)
	return node, true
}

// removeAt removes the key at position pos and restitches the circular
// prev chain. Caller must hold t.mu.
func (t *Tree) removeAt(pos int) {
	n := len(t.keys)
	key := t.keys[pos]
	node, _ := t.byKey.Get(key)

	if n > 1 {
		nextIdx := (pos + 1) % n
		nextNode, _ := t.byKey.Get(t.keys[nextIdx])
		if nextNode != node {
			nextNode.prev = node.prev
		}
	}

	t.keys = append(t.keys[:pos], t.keys[pos+1:]...)
	t.byKey.Remove(key)
}

// Apply runs fn over every node in ascending lookup-key order. fn must not
// insert or remove tree nodes; it may freely mutate a node's own RRsets.
func (t *Tree) Apply(fn func(*Node) error) error {
	t.mu.RLock()
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	t.mu.RUnlock()

	for _, key := range keys {
		node, ok := t.byKey.Get(key)
		if !ok {
			continue
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEmptyNode prunes node if it carries no RRsets and has no
// children: it decrements the parent's child count, clears
// HasWildcardChild on the parent if node's owner is a wildcard, recurses
// on the parent (unless the parent is the apex, i.e. has no parent of its
// own), and finally removes and discards node itself.
//
// Idempotent: calling it twice on the same (already-removed) node is a
// no-op the second time, since the node is no longer reachable from the
// tree to decrement anything from.
func (t *Tree) DeleteEmptyNode(node *Node) error {
	if node == nil {
		return xfrproto.InvalidArgf("zonetree.DeleteEmptyNode", "nil node")
	}
	if node.hasContent() {
		return nil
	}
	if _, ok := t.byKey.Get(node.key); !ok {
		// Already removed by a previous call: idempotent no-op. Checked
		// before touching the parent so a repeat call never double-counts
		// parent.Children or re-clears a flag someone else has since set.
		return nil
	}

	parent := node.Parent
	if parent != nil {
		parent.Children--
		if dnsname.IsWildcard(node.Owner) {
			parent.Flags &^= HasWildcardChild
		}
		if parent.Parent != nil { // parent is not the apex
			if err := t.DeleteEmptyNode(parent); err != nil {
				return err
			}
		}
	}

	t.Remove(node.Owner)
	return nil
}

// DeepFree discards every node. After DeepFree the tree is empty and safe
// to reuse.
func (t *Tree) DeepFree() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = nil
	t.byKey.Clear()
}

// Rebuild replaces the tree's contents with nodes in bulk, sorting them
// once with twotwotwo/sorts rather than paying for n binary-search
// insertions. Mirrors the teacher's ComputeIndices bulk-load path
// (tdns/dnsutils.go), used when loading a zone from a zone file or
// transfer rather than one owner at a time.
func (t *Tree) Rebuild(nodes []*Node) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byKey = cmap.New[*Node]()
	t.keys = make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.key == "" {
			n.key = dnsname.LookupKey(n.Owner)
		}
		t.keys = append(t.keys, n.key)
		t.byKey.Set(n.key, n)
	}
	sorts.Strings(t.keys)

	for i, key := range t.keys {
		node, _ := t.byKey.Get(key)
		prevIdx := (i - 1 + len(t.keys)) % len(t.keys)
		prevNode, _ := t.byKey.Get(t.keys[prevIdx])
		node.prev = prevNode
	}
}
