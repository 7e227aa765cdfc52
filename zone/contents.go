// Package zone bundles a zone's tree content into the unit IXFR-out reads
// from and IXFR-in/the differ write to: the apex node, the main tree, an
// optional NSEC3 tree, and the serial the content is currently at,
// guarded by a single reader/writer lock.
//
// Grounded on the teacher's ZoneData (tdns/structs.go): a single struct
// gathering owner data plus a mutex, with CurrentSerial tracked
// alongside it. Contents generalizes that to the spec's explicit
// Main/NSEC3 tree split and adds ApplyAndStore, which the teacher does
// not have as a named operation but which is assembled the same way
// ZoneTransferIn commits a transfer's worth of SortFunc output
// (tdns/dnsutils.go).
package zone

import (
	"context"
	"sync"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/dnsname"
	"github.com/tornvall/zxfer/journal"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
	"github.com/tornvall/zxfer/zonetree"
)

// Contents is a single version of a zone's content: its apex node, its
// main tree, and (if the zone uses NSEC3) its NSEC3 tree.
type Contents struct {
	mu sync.RWMutex

	Name   string
	Main   *zonetree.Tree
	NSEC3  *zonetree.Tree
	Apex   *zonetree.Node
	serial uint32
}

// New returns an empty Contents for name, with an apex node already
// inserted into Main.
func New(name string) *Contents {
	apex := zonetree.NewNode(name)
	main := zonetree.New()
	main.Insert(apex)
	return &Contents{Name: name, Main: main, Apex: apex}
}

// RLock/RUnlock/Lock/Unlock expose the content lock directly so callers
// that need to hold it across several operations (a transfer-out session
// walking the tree, for instance) can do so without Contents itself
// needing to know their call pattern.
func (c *Contents) RLock()   { c.mu.RLock() }
func (c *Contents) RUnlock() { c.mu.RUnlock() }
func (c *Contents) Lock()    { c.mu.Lock() }
func (c *Contents) Unlock()  { c.mu.Unlock() }

// Serial returns the zone's current SOA serial. Callers not already
// holding the lock should call this rather than read a cached value, since
// ApplyAndStore can change it between a reader's pipeline stages.
func (c *Contents) Serial() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serial
}

// SetSerial installs serial directly, for use when loading content from a
// zone file or a completed AXFR rather than via ApplyAndStore. Callers
// must hold the write lock.
func (c *Contents) SetSerial(serial uint32) { c.serial = serial }

// SoaRRset returns the apex's current SOA RRset. Callers not already
// holding the lock should take RLock first.
func (c *Contents) SoaRRset() rrset.RRset {
	return c.Apex.RRset(dns.TypeSOA)
}

// ApplyAndStore applies cs to the content in place and, if store is
// non-nil, appends cs to the journal. Both happen under the write lock,
// so a reader taking RLock never observes a zone whose tree reflects cs
// but whose journal does not, or vice versa.
//
// Returns a Semantic error without mutating anything if cs.SerialFrom
// does not match the zone's current serial.
func (c *Contents) ApplyAndStore(ctx context.Context, store journal.Store, cs *changeset.Changeset) error {
	if cs == nil {
		return xfrproto.InvalidArgf("zone.ApplyAndStore", "nil changeset")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cs.SerialFrom != c.serial {
		return xfrproto.Semanticf("zone.ApplyAndStore", nil,
			"changeset starts at serial %d but zone %q is at serial %d", cs.SerialFrom, c.Name, c.serial)
	}

	for _, rs := range cs.Remove {
		node, ok := c.Main.Get(rs.Owner)
		if !ok {
			continue
		}
		removeMatching(node, rs)
		if err := c.Main.DeleteEmptyNode(node); err != nil {
			return xfrproto.Semanticf("zone.ApplyAndStore", err, "pruning %q", rs.Owner)
		}
	}

	for _, rs := range cs.Add {
		node, err := c.ensureNode(rs.Owner)
		if err != nil {
			return err
		}
		addMerging(node, rs)
	}

	c.Apex.SetRRset(cs.SoaTo.Copy())
	c.serial = cs.SerialTo

	if store != nil {
		if err := store.Append(ctx, c.Name, cs); err != nil {
			return err
		}
	}
	return nil
}

// ensureNode returns the node at owner, creating it (and any missing
// empty-non-terminal ancestors up to the apex) if necessary. Caller must
// hold the write lock.
func (c *Contents) ensureNode(owner string) (*zonetree.Node, error) {
	if node, ok := c.Main.Get(owner); ok {
		return node, nil
	}
	if dnsname.LookupKey(owner) == dnsname.LookupKey(c.Apex.Owner) {
		return c.Apex, nil
	}

	parentOwner, ok := dnsname.ParentOf(owner)
	if !ok {
		return nil, xfrproto.Semanticf("zone.ensureNode", nil, "owner %q has no parent within zone %q", owner, c.Name)
	}
	parent, err := c.ensureNode(parentOwner)
	if err != nil {
		return nil, err
	}

	node := zonetree.NewNode(owner)
	node.Parent = parent
	parent.Children++
	if dnsname.IsWildcard(owner) {
		parent.Flags |= zonetree.HasWildcardChild
	}
	if err := c.Main.Insert(node); err != nil {
		return nil, err
	}
	return node, nil
}

// removeMatching deletes from node the records in rs, matched by content
// (record data), ignoring TTL -- the same notion of identity the differ
// uses to decide a record was removed.
func removeMatching(node *zonetree.Node, rs rrset.RRset) {
	existing := node.RRset(rs.Type)
	if existing.IsEmpty() {
		return
	}
	kept := existing.RRs[:0:0]
	for _, rr := range existing.RRs {
		remove := false
		for _, target := range rs.RRs {
			if rrset.ContentEqual(rr, target) {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, rr)
		}
	}
	existing.RRs = kept
	node.SetRRset(existing)
}

// addMerging installs the records in rs into node, replacing any existing
// record with matching content (a TTL-only update) and appending records
// with no existing match.
func addMerging(node *zonetree.Node, rs rrset.RRset) {
	existing := node.RRset(rs.Type)
	if existing.IsEmpty() {
		existing = rrset.New(rs.Owner, rs.Type, rs.Class)
	}
	for _, rr := range rs.RRs {
		idx, ttlMatches := rrset.FindContentMatch(existing.RRs, rr)
		switch {
		case idx < 0:
			existing.RRs = append(existing.RRs, rr)
		case !ttlMatches:
			existing.RRs[idx] = rr
		}
	}
	node.SetRRset(existing)
}
