// Package ixfrout implements the IXFR-out responder: a resumable session
// that walks a changeset sequence and emits it onto the wire one message
// at a time, through the SOA_REMOVE -> REMOVE -> SOA_ADD -> ADD cycle
// per changeset, bracketed by the protocol's leading and trailing SOA.
//
// Grounded on knot-dns's ixfr.c in full: the state enum and
// ixfr_process_changeset's fallthrough order, and ixfr_put_rrlist's
// resumable list cursor (skip empty RRsets, stop and report "message
// full" without losing position when the message budget runs out). The
// message-batching threshold and the one-dns.Msg-per-Step pattern are
// grounded on the teacher's ZoneTransferOut (tdns/dnsutils.go).
package ixfrout

import (
	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

// Phase names the session's position in the per-changeset cycle, using
// the vocabulary of the state machine it implements.
type Phase int

const (
	PhaseLeadSoa Phase = iota
	PhaseSoaRemove
	PhaseRemove
	PhaseSoaAdd
	PhaseAdd
	PhaseTrailSoa
	PhaseDone
)

// Session is a single in-progress IXFR-out transfer. It is not safe for
// concurrent use; callers serialize Step calls on a single goroutine per
// transfer, the same discipline the teacher's ZoneTransferOut uses for a
// single connection.
type Session struct {
	Zone     string
	Sequence *changeset.Sequence
	FinalSoa rrset.RRset

	// MaxRRsPerMessage caps how many RRs Step appends to a single
	// message before returning ProcFull. Zero means unlimited (the
	// caller is responsible for its own message-size accounting then).
	MaxRRsPerMessage int

	phase Phase
	csIdx int

	// rrsetIdx/rrIdx track position within the current changeset's
	// Remove or Add list, so Step can resume mid-RRset across calls.
	rrsetIdx int
	rrIdx    int

	rrsThisMsg  int
	RRsSent     int
	PacketsSent int
}

// RecordPacketSent tells the session a message it produced via Step has
// actually gone out on the wire. Step itself has no visibility into
// transport delivery, so callers are responsible for calling this once
// per message sent.
func (s *Session) RecordPacketSent() { s.PacketsSent++ }

// NewSession starts a transfer-out session for seq, the changeset
// sequence a journal lookup already resolved to satisfy the client's
// requested serial range.
func NewSession(zone string, seq *changeset.Sequence, maxRRsPerMessage int) (*Session, error) {
	if seq == nil || seq.IsEmpty() {
		return nil, xfrproto.InvalidArgf("ixfrout.NewSession", "empty changeset sequence")
	}
	final := seq.Changesets[len(seq.Changesets)-1].SoaTo
	return &Session{
		Zone:             zone,
		Sequence:         seq,
		FinalSoa:         final,
		MaxRRsPerMessage: maxRRsPerMessage,
	}, nil
}

// Step appends RRs to msg.Answer, resuming exactly where the previous
// call left off. It returns ProcFull when msg has reached
// MaxRRsPerMessage and there is more to send (the caller should send msg
// and call Step again with a fresh message), or ProcDone when the
// transfer is complete.
func (s *Session) Step(msg *dns.Msg) (xfrproto.ProcResult, error) {
	if msg == nil {
		return xfrproto.ProcFail, xfrproto.InvalidArgf("ixfrout.Step", "nil message")
	}
	s.rrsThisMsg = 0

	for {
		if s.full() && s.phase != PhaseDone {
			return xfrproto.ProcFull, nil
		}

		switch s.phase {
		case PhaseLeadSoa:
			s.emit(msg, s.FinalSoa.RRs[0])
			s.phase = PhaseSoaRemove

		case PhaseSoaRemove:
			if s.csIdx >= len(s.Sequence.Changesets) {
				s.phase = PhaseTrailSoa
				continue
			}
			s.emit(msg, s.current().SoaFrom.RRs[0])
			s.phase = PhaseRemove

		case PhaseRemove:
			done, err := s.emitRRsetList(msg, s.current().Remove)
			if err != nil {
				return xfrproto.ProcFail, err
			}
			if !done {
				return xfrproto.ProcFull, nil
			}
			s.phase = PhaseSoaAdd

		case PhaseSoaAdd:
			s.emit(msg, s.current().SoaTo.RRs[0])
			s.phase = PhaseAdd

		case PhaseAdd:
			done, err := s.emitRRsetList(msg, s.current().Add)
			if err != nil {
				return xfrproto.ProcFail, err
			}
			if !done {
				return xfrproto.ProcFull, nil
			}
			s.csIdx++
			s.rrsetIdx = 0
			s.rrIdx = 0
			s.phase = PhaseSoaRemove

		case PhaseTrailSoa:
			s.emit(msg, s.FinalSoa.RRs[0])
			s.phase = PhaseDone

		case PhaseDone:
			return xfrproto.ProcDone, nil

		default:
			return xfrproto.ProcFail, xfrproto.Semanticf("ixfrout.Step", nil, "unknown phase %d", s.phase)
		}
	}
}

func (s *Session) current() *changeset.Changeset {
	return s.Sequence.Changesets[s.csIdx]
}

func (s *Session) full() bool {
	return s.MaxRRsPerMessage > 0 && s.rrsThisMsg >= s.MaxRRsPerMessage
}

func (s *Session) emit(msg *dns.Msg, rr dns.RR) {
	msg.Answer = append(msg.Answer, dns.Copy(rr))
	s.rrsThisMsg++
	s.RRsSent++
}

// emitRRsetList resumes from s.rrsetIdx/s.rrIdx, appending records from
// list, skipping any RRset that happens to be empty. Returns done=false
// if the message filled before the whole list was emitted; position is
// preserved for the next call.
func (s *Session) emitRRsetList(msg *dns.Msg, list []rrset.RRset) (done bool, err error) {
	for s.rrsetIdx < len(list) {
		rs := list[s.rrsetIdx]
		for s.rrIdx < len(rs.RRs) {
			if s.full() {
				return false, nil
			}
			s.emit(msg, rs.RRs[s.rrIdx])
			s.rrIdx++
		}
		s.rrsetIdx++
		s.rrIdx = 0
	}
	return true, nil
}
