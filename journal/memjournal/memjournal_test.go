package memjournal

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
	journaltest.Run(t, New(0))
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

func TestAppendThenLoadExactRange(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	cs1, _ := changeset.New(soaRRset(1), soaRRset(2))
	cs2, _ := changeset.New(soaRRset(2), soaRRset(3))
	if err := s.Append(ctx, "example.com.", cs1); err != nil {
		t.Fatalf("Append cs1: %v", err)
	}
	if err := s.Append(ctx, "example.com.", cs2); err != nil {
		t.Fatalf("Append cs2: %v", err)
	}

	seq, err := s.Load(ctx, "example.com.", 1, 3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(seq.Changesets) != 2 {
		t.Fatalf("got %d changesets, want 2", len(seq.Changesets))
	}
}

func TestLoadNotPresent(t *testing.T) {
	s := New(0)
	_, err := s.Load(context.Background(), "nowhere.example.", 1, 2)
	if !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("expected NoHistory, got %v", err)
	}
}

func TestLoadNoSuchRange(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	cs1, _ := changeset.New(soaRRset(1), soaRRset(2))
	s.Append(ctx, "example.com.", cs1)

	_, err := s.Load(ctx, "example.com.", 1, 5)
	if !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("expected NoHistory for uncovered range, got %v", err)
	}
}

func TestMaxEntriesTrimsOldest(t *testing.T) {
	s := New(1)
	ctx := context.Background()
	cs1, _ := changeset.New(soaRRset(1), soaRRset(2))
	cs2, _ := changeset.New(soaRRset(2), soaRRset(3))
	s.Append(ctx, "example.com.", cs1)
	s.Append(ctx, "example.com.", cs2)

	if len(s.byZone["example.com."]) != 1 {
		t.Fatalf("got %d retained changesets, want 1", len(s.byZone["example.com."]))
	}
	if _, err := s.Load(ctx, "example.com.", 1, 2); !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatal("expected trimmed-away range to be unavailable")
	}
}
