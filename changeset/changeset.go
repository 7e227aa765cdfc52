// Package changeset models a single SOA-to-SOA delta -- the unit the differ
// produces, IXFR-out replays onto the wire, and IXFR-in reassembles off the
// wire -- plus Sequence, an ordered run of changesets covering a
// contiguous serial range.
//
// Grounded on the teacher's ixfr.DiffSequence/Ixfr pair (tdns/ixfr/diffsequence.go,
// tdns/ixfr/ixfr.go), generalized from "one IXFR response" to "the core's
// internal unit of change" per spec.md's changeset model, and cross-checked
// against knot-dns's changeset_t (zone-diff.c, ixfr.c) for field shape.
package changeset

import (
	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

// Changeset is the set of RRset removals and additions that transform a
// zone from SerialFrom to SerialTo. SoaFrom/SoaTo are the single-RR SOA
// RRsets bracketing the change; they are carried separately from
// Remove/Add since every wire encoding (IXFR message, journal entry)
// treats them specially.
type Changeset struct {
	SoaFrom rrset.RRset
	SoaTo   rrset.RRset

	SerialFrom uint32
	SerialTo   uint32

	// Remove and Add are ordered lists of non-SOA RRsets. Order is
	// significant only in that removals are always replayed before
	// additions for a given changeset; within each list, order is
	// whatever the differ or the wire produced it in.
	Remove []rrset.RRset
	Add    []rrset.RRset
}

// New builds an empty changeset bracketed by soaFrom/soaTo, both of which
// must be single-record SOA RRsets.
func New(soaFrom, soaTo rrset.RRset) (*Changeset, error) {
	if len(soaFrom.RRs) != 1 || len(soaTo.RRs) != 1 {
		return nil, xfrproto.InvalidArgf("changeset.New", "soaFrom/soaTo must each carry exactly one RR")
	}
	return &Changeset{
		SoaFrom:    soaFrom,
		SoaTo:      soaTo,
		SerialFrom: soaSerial(soaFrom),
		SerialTo:   soaSerial(soaTo),
	}, nil
}

// soaSerial extracts the SERIAL field from a single-record SOA RRset. It
// panics if rs does not carry exactly one *dns.SOA record, which is a
// caller contract violation, not a runtime condition the core recovers
// from.
func soaSerial(rs rrset.RRset) uint32 {
	soa, ok := rs.RRs[0].(*dns.SOA)
	if !ok {
		panic("changeset: SOA RRset does not carry a SOA record")
	}
	return soa.Serial
}

// AddRemove appends rs to the REMOVE side. A zero-length rs is a no-op:
// empty RRsets are never meaningful as a changeset entry.
func (c *Changeset) AddRemove(rs rrset.RRset) {
	if rs.IsEmpty() {
		return
	}
	c.Remove = append(c.Remove, rs)
}

// AddAdd appends rs to the ADD side. A zero-length rs is a no-op.
func (c *Changeset) AddAdd(rs rrset.RRset) {
	if rs.IsEmpty() {
		return
	}
	c.Add = append(c.Add, rs)
}

// IsEmpty reports whether the changeset carries no content changes at all
// (SOA serial bump with nothing else). Such a changeset is legal -- a
// re-signed SOA with no RRset content change -- and must still be stored
// and replayed; IsEmpty is informational, not a skip signal.
func (c *Changeset) IsEmpty() bool {
	return len(c.Remove) == 0 && len(c.Add) == 0
}

// Sequence is an ordered, contiguous run of changesets: element i's
// SerialTo equals element i+1's SerialFrom. It is the unit IXFR-out reads
// from the journal and IXFR-in assembles while parsing a multi-changeset
// IXFR response.
type Sequence struct {
	Changesets []*Changeset
}

// NewSequence returns an empty sequence.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Append adds cs to the end of the sequence, verifying serial
// contiguity with the previous entry (if any). A non-contiguous append
// is a caller bug -- the differ and IXFR-in both construct changesets in
// strict serial order -- so it is reported as SEMANTIC rather than
// silently accepted.
func (s *Sequence) Append(cs *Changeset) error {
	if cs == nil {
		return xfrproto.InvalidArgf("changeset.Sequence.Append", "nil changeset")
	}
	if n := len(s.Changesets); n > 0 {
		last := s.Changesets[n-1]
		if last.SerialTo != cs.SerialFrom {
			return xfrproto.Semanticf("changeset.Sequence.Append", nil,
				"non-contiguous serials: previous ends at %d, next starts at %d", last.SerialTo, cs.SerialFrom)
		}
	}
	s.Changesets = append(s.Changesets, cs)
	return nil
}

// IsEmpty reports whether the sequence has no changesets at all.
func (s *Sequence) IsEmpty() bool { return len(s.Changesets) == 0 }

// FirstSerial returns the SerialFrom of the first changeset. Callers must
// check IsEmpty first.
func (s *Sequence) FirstSerial() uint32 { return s.Changesets[0].SerialFrom }

// LastSerial returns the SerialTo of the last changeset. Callers must
// check IsEmpty first.
func (s *Sequence) LastSerial() uint32 { return s.Changesets[len(s.Changesets)-1].SerialTo }

// Covers reports whether the sequence is a single contiguous run from
// serialFrom to serialTo exactly (no gaps, no overshoot).
func (s *Sequence) Covers(serialFrom, serialTo uint32) bool {
	if s.IsEmpty() {
		return serialFrom == serialTo
	}
	return s.FirstSerial() == serialFrom && s.LastSerial() == serialTo
}
