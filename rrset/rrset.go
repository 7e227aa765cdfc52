// Package rrset is the shared resource-record-set representation used by
// the zone tree, the differ, and both transfer engines. Keeping it in one
// package avoids every other package re-deriving RR content/full equality
// rules and deep-copy semantics on its own.
package rrset

import "github.com/miekg/dns"

// RRset is a set of resource records sharing an owner, class, and type. By
// invariant no two RRs in RRs have identical record data; callers that
// build an RRset (the differ, IXFR-in) are responsible for preserving
// that invariant.
type RRset struct {
	Owner string
	Type  uint16
	Class uint16
	RRs   []dns.RR
}

// New returns an empty RRset for owner/type/class.
func New(owner string, rrtype, class uint16) RRset {
	return RRset{Owner: owner, Type: rrtype, Class: class}
}

// FromRR returns a single-record RRset built from rr's header.
func FromRR(rr dns.RR) RRset {
	h := rr.Header()
	return RRset{Owner: h.Name, Type: h.Rrtype, Class: h.Class, RRs: []dns.RR{rr}}
}

// IsEmpty reports whether the set carries zero records. Empty RRsets are
// legal in transit but must be skipped when written to the wire.
func (s RRset) IsEmpty() bool { return len(s.RRs) == 0 }

// Copy returns a deep copy: a new RRs slice holding dns.Copy of each
// record. The differ and IXFR-in both copy RRs into changesets so the
// changeset never aliases zone-tree memory.
func (s RRset) Copy() RRset {
	out := RRset{Owner: s.Owner, Type: s.Type, Class: s.Class}
	if len(s.RRs) == 0 {
		return out
	}
	out.RRs = make([]dns.RR, len(s.RRs))
	for i, rr := range s.RRs {
		out.RRs[i] = dns.Copy(rr)
	}
	return out
}

// ContentEqual reports whether rr1 and rr2 carry identical record data,
// ignoring TTL.
func ContentEqual(rr1, rr2 dns.RR) bool {
	return dns.IsDuplicate(rr1, rr2)
}

// FullEqual reports whether rr1 and rr2 are identical including TTL.
func FullEqual(rr1, rr2 dns.RR) bool {
	return rr1.Header().Ttl == rr2.Header().Ttl && dns.IsDuplicate(rr1, rr2)
}

// find returns the index of the first RR in rrs that content-equals
// (ContentEqual) target, or -1.
func find(rrs []dns.RR, target dns.RR) int {
	for i, rr := range rrs {
		if ContentEqual(rr, target) {
			return i
		}
	}
	return -1
}

// FindContentMatch reports whether any RR in rrs has the same record data
// as target (TTL ignored), and if so whether its TTL also matches.
func FindContentMatch(rrs []dns.RR, target dns.RR) (idx int, ttlMatches bool) {
	idx = find(rrs, target)
	if idx < 0 {
		return -1, false
	}
	return idx, rrs[idx].Header().Ttl == target.Header().Ttl
}

// Equal reports whether two RRsets carry the same set of records
// (including TTL), irrespective of order and irrespective of which
// duplicate copy occupies which slot. The IXFR-in consumer's check of a
// SOA against the opening SOA compares single records with FullEqual
// rather than calling Equal.
func Equal(a, b RRset) bool {
	if a.Owner != b.Owner || a.Type != b.Type || a.Class != b.Class {
		return false
	}
	return rrListEqual(a.RRs, b.RRs)
}

func rrListEqual(a, b []dns.RR) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, ra := range a {
		matched := false
		for j, rb := range b {
			if used[j] {
				continue
			}
			if FullEqual(ra, rb) {
				used[j] = true
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}
