package ixfrout

import (
	"testing"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

func soa(serial uint32) rrset.RRset {
	return rrset.FromRR(&dns.SOA{
		Hdr:     dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 3600},
		Ns:      "ns1.example.com.",
		Mbox:    "hostmaster.example.com.",
		Serial:  serial,
		Refresh: 3600, Retry: 900, Expire: 604800, Minttl: 300,
	})
}

func a(t *testing.T, owner, ip string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(owner + " 300 IN A " + ip)
	if err != nil {
		t.Fatalf("dns.NewRR: %v", err)
	}
	return rr
}

func oneChangesetSequence(t *testing.T) *changeset.Sequence {
	t.Helper()
	cs, err := changeset.New(soa(1), soa(2))
	if err != nil {
		t.Fatalf("changeset.New: %v", err)
	}
	cs.AddRemove(rrset.FromRR(a(t, "old.example.com.", "192.0.2.1")))
	cs.AddAdd(rrset.FromRR(a(t, "new.example.com.", "192.0.2.2")))
	seq := changeset.NewSequence()
	if err := seq.Append(cs); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return seq
}

func TestSessionEmitsFullCycleUnbounded(t *testing.T) {
	seq := oneChangesetSequence(t)
	sess, err := NewSession("example.com.", seq, 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	msg := new(dns.Msg)
	result, err := sess.Step(msg)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if result != xfrproto.ProcDone {
		t.Fatalf("result = %v, want ProcDone with unlimited budget", result)
	}

	// lead SOA, SOA_from, 1 removed, SOA_to, 1 added, trail SOA = 6 RRs.
	if len(msg.Answer) != 6 {
		t.Fatalf("got %d RRs, want 6: %v", len(msg.Answer), msg.Answer)
	}
	if msg.Answer[0].Header().Rrtype != dns.TypeSOA {
		t.Fatal("first RR must be the leading SOA")
	}
	if msg.Answer[len(msg.Answer)-1].Header().Rrtype != dns.TypeSOA {
		t.Fatal("last RR must be the trailing SOA")
	}
}

func TestSessionResumesAcrossMessages(t *testing.T) {
	seq := oneChangesetSequence(t)
	sess, err := NewSession("example.com.", seq, 2)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	var allRRs []dns.RR
	for i := 0; i < 10; i++ {
		msg := new(dns.Msg)
		result, err := sess.Step(msg)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if len(msg.Answer) > 2 {
			t.Fatalf("message %d carries %d RRs, want <= 2", i, len(msg.Answer))
		}
		allRRs = append(allRRs, msg.Answer...)
		sess.RecordPacketSent()
		if result == xfrproto.ProcDone {
			break
		}
	}
	if len(allRRs) != 6 {
		t.Fatalf("total RRs across messages = %d, want 6", len(allRRs))
	}
	if sess.PacketsSent == 0 {
		t.Fatal("expected PacketsSent to be tracked")
	}
}

func TestNewSessionRejectsEmptySequence(t *testing.T) {
	if _, err := NewSession("example.com.", changeset.NewSequence(), 0); err == nil {
		t.Fatal("expected error for empty sequence")
	}
}
