package sqlitejournal

import (
	"context"
	"testing"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/journal/journaltest"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

func TestConformsToStoreContract(t *testing.T) {
	journaltest.Run(t, openTestStore(t))
}

func soaRRset(serial uint32) rrset.RRset {
	return rrset.FromRR(&dns.SOA{
		Hdr:     dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 3600},
		Ns:      "ns1.example.com.",
		Mbox:    "hostmaster.example.com.",
		Serial:  serial,
		Refresh: 3600, Retry: 900, Expire: 604800, Minttl: 300,
	})
}

func aRR(t *testing.T, owner, ip string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(owner + " 300 IN A " + ip)
	if err != nil {
		t.Fatalf("dns.NewRR: %v", err)
	}
	return rr
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cs, err := changeset.New(soaRRset(1), soaRRset(2))
	if err != nil {
		t.Fatalf("changeset.New: %v", err)
	}
	cs.AddAdd(rrset.FromRR(aRR(t, "www.example.com.", "192.0.2.1")))
	cs.AddRemove(rrset.FromRR(aRR(t, "old.example.com.", "192.0.2.2")))

	if err := s.Append(ctx, "example.com.", cs); err != nil {
		t.Fatalf("Append: %v", err)
	}

	seq, err := s.Load(ctx, "example.com.", 1, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seq.Changesets) != 1 {
		t.Fatalf("got %d changesets, want 1", len(seq.Changesets))
	}
	got := seq.Changesets[0]
	if len(got.Add) != 1 || len(got.Remove) != 1 {
		t.Fatalf("Add=%d Remove=%d, want 1/1", len(got.Add), len(got.Remove))
	}
	if got.Add[0].Owner != "www.example.com." {
		t.Fatalf("Add[0].Owner = %q, want www.example.com.", got.Add[0].Owner)
	}
}

func TestLoadNotPresent(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load(context.Background(), "nowhere.example.", 1, 2)
	if !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("expected NoHistory, got %v", err)
	}
}

func TestLoadNoSuchRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cs, _ := changeset.New(soaRRset(1), soaRRset(2))
	if err := s.Append(ctx, "example.com.", cs); err != nil {
		t.Fatalf("Append: %v", err)
	}

	_, err := s.Load(ctx, "example.com.", 1, 9)
	if !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("expected NoHistory for uncovered range, got %v", err)
	}
}
