// Package ixfrin implements the IXFR-in consumer: a resumable
// per-RR state machine that reassembles a changeset sequence from an
// incoming IXFR response, then commits it to a zone's content.
//
// Grounded on knot-dns's ixfr.c ixfrin_step/solve_* functions for the
// state machine (IXFR_START/SOA_FROM/DEL/SOA_TO/ADD/DONE), on
// out_of_zone for the per-record in-zone check run before a record is
// folded into the pending changeset, on journal_limit_exceeded for the
// per-changeset admission check run once a diff completes, and on
// ixfrin_finalize for the empty-or-not-done -> FALLBACK_TO_AXFR rule.
package ixfrin

import (
	"context"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/dnsname"
	"github.com/tornvall/zxfer/journal"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
	"github.com/tornvall/zxfer/zone"
)

type state int

const (
	stateStart state = iota
	stateSoaFrom
	stateDel
	stateSoaTo
	stateAdd
	stateDone
)

// Consumer reassembles an IXFR response one RR at a time, across however
// many wire messages the transfer spans. It is not safe for concurrent
// use; a single transfer is driven by a single goroutine.
type Consumer struct {
	Zone            string
	RequestedSerial uint32

	// JournalLimit caps the number of changesets a single transfer may
	// contribute, mirroring knot's journal_limit_exceeded guard against
	// an unbounded incoming transfer exhausting memory. Zero means
	// unlimited.
	JournalLimit int

	st            state
	finalSoa      rrset.RRset
	curSoaFrom    rrset.RRset
	current       *changeset.Changeset
	pendingRemove []rrset.RRset
	pendingAdd    []rrset.RRset

	seq            *changeset.Sequence
	changesetCount int
	upToDate       bool
}

// NewConsumer starts a consumer for a transfer of zone, where
// requestedSerial is the serial the client sent in its IXFR query (the
// zone's serial before the transfer).
func NewConsumer(zone string, requestedSerial uint32, journalLimit int) *Consumer {
	return &Consumer{
		Zone:            zone,
		RequestedSerial: requestedSerial,
		JournalLimit:    journalLimit,
		seq:             changeset.NewSequence(),
	}
}

// UpToDate reports whether the transfer turned out to be the single-SOA
// "you are already current" response.
func (c *Consumer) UpToDate() bool { return c.upToDate }

// ProcessRR folds one RR from the response into the consumer's state.
// Returns ProcFull while more RRs are expected, ProcDone once the
// transfer's terminating SOA has been consumed, or ProcFail on a
// malformed or over-limit record.
func (c *Consumer) ProcessRR(rr dns.RR) (xfrproto.ProcResult, error) {
	switch c.st {
	case stateStart:
		soa, ok := rr.(*dns.SOA)
		if !ok {
			return xfrproto.ProcFail, xfrproto.Malformedf("ixfrin.ProcessRR", "first record of an IXFR response must be a SOA")
		}
		c.finalSoa = rrset.FromRR(dns.Copy(rr))
		if xfrproto.SerialCompare(soa.Serial, c.RequestedSerial) <= 0 {
			c.upToDate = true
			c.st = stateDone
			return xfrproto.ProcDone, nil
		}
		c.st = stateSoaFrom
		return xfrproto.ProcFull, nil

	case stateSoaFrom:
		if err := c.startSoaFrom(rr); err != nil {
			return xfrproto.ProcFail, err
		}
		c.st = stateDel
		return xfrproto.ProcFull, nil

	case stateDel:
		if _, ok := rr.(*dns.SOA); ok {
			c.st = stateSoaTo
			return c.ProcessRR(rr)
		}
		if dnsname.IsSubdomain(rr.Header().Name, c.Zone) {
			c.pendingRemove = append(c.pendingRemove, rrset.FromRR(dns.Copy(rr)))
		}
		return xfrproto.ProcFull, nil

	case stateSoaTo:
		if _, ok := rr.(*dns.SOA); !ok {
			return xfrproto.ProcFail, xfrproto.Malformedf("ixfrin.ProcessRR", "expected the SOA ending a diff's removal list")
		}
		if err := c.admitChangeset(); err != nil {
			return xfrproto.ProcFail, err
		}
		curSoaTo := rrset.FromRR(dns.Copy(rr))
		cs, err := changeset.New(c.curSoaFrom, curSoaTo)
		if err != nil {
			return xfrproto.ProcFail, err
		}
		cs.Remove = c.pendingRemove
		c.pendingRemove = nil
		c.pendingAdd = nil
		c.current = cs
		c.st = stateAdd
		return xfrproto.ProcFull, nil

	case stateAdd:
		if _, ok := rr.(*dns.SOA); ok {
			c.current.Add = c.pendingAdd
			c.pendingAdd = nil
			if err := c.seq.Append(c.current); err != nil {
				return xfrproto.ProcFail, err
			}
			if rrset.FullEqual(rr, c.finalSoa.RRs[0]) {
				c.st = stateDone
				return xfrproto.ProcDone, nil
			}
			if err := c.startSoaFrom(rr); err != nil {
				return xfrproto.ProcFail, err
			}
			c.st = stateDel
			return xfrproto.ProcFull, nil
		}
		if dnsname.IsSubdomain(rr.Header().Name, c.Zone) {
			c.pendingAdd = append(c.pendingAdd, rrset.FromRR(dns.Copy(rr)))
		}
		return xfrproto.ProcFull, nil

	case stateDone:
		return xfrproto.ProcDone, nil

	default:
		return xfrproto.ProcFail, xfrproto.Semanticf("ixfrin.ProcessRR", nil, "unknown state %d", c.st)
	}
}

func (c *Consumer) startSoaFrom(rr dns.RR) error {
	soa, ok := rr.(*dns.SOA)
	if !ok {
		return xfrproto.Malformedf("ixfrin.startSoaFrom", "expected a SOA opening a diff sequence")
	}
	if !dnsname.IsSubdomain(soa.Hdr.Name, c.Zone) {
		return xfrproto.Malformedf("ixfrin.startSoaFrom", "SOA owner %q is out of zone %q", soa.Hdr.Name, c.Zone)
	}
	c.curSoaFrom = rrset.FromRR(dns.Copy(rr))
	c.pendingRemove = nil
	return nil
}

// admitChangeset enforces JournalLimit, counted in completed changesets
// rather than individual records: a single IXFR response can legally
// carry many diffs, each bounded by SOA_FROM/SOA_TO/trailing-SOA
// markers, and it is the number of those diffs a session is willing to
// buffer that bounds memory use, not the number of RRs within any one
// of them.
func (c *Consumer) admitChangeset() error {
	if c.JournalLimit > 0 && c.changesetCount >= c.JournalLimit {
		return xfrproto.Resourcef("ixfrin.admitChangeset", "transfer for zone %q exceeded the %d changeset limit", c.Zone, c.JournalLimit)
	}
	c.changesetCount++
	return nil
}

// Finalize commits the reassembled changeset sequence to contents and
// appends it to store. If the transfer never reached DONE, or produced no
// changesets at all (and was not the up-to-date single-SOA case),
// Finalize returns FallbackToAxfr rather than an error: the caller should
// retry the transfer as AXFR, matching knot's ixfrin_finalize.
func (c *Consumer) Finalize(ctx context.Context, contents *zone.Contents, store journal.Store) (xfrproto.ProcResult, error) {
	if c.upToDate {
		return xfrproto.ProcDone, nil
	}
	if c.st != stateDone || c.seq.IsEmpty() {
		return xfrproto.FallbackToAxfr, nil
	}

	for _, cs := range c.seq.Changesets {
		if err := contents.ApplyAndStore(ctx, store, cs); err != nil {
			return xfrproto.ProcFail, err
		}
	}
	return xfrproto.ProcDone, nil
}
