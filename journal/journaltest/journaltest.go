// Package journaltest runs the same scenario against any journal.Store
// implementation, so memjournal and sqlitejournal are held to one
// conformance contract instead of two hand-duplicated test files.
package journaltest

import (
	"context"
	"testing"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/journal"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

func soaRRset(serial uint32) rrset.RRset {
	rr, err := dns.NewRR(dns.Fqdn("example.com") + " 3600 IN SOA ns1.example.com. hostmaster.example.com. " +
		itoa(serial) + " 3600 600 86400 3600")
	if err != nil {
		panic(err)
	}
	return rrset.FromRR(rr)
}

func aRRset(owner string, serial uint32) rrset.RRset {
	rr, err := dns.NewRR(owner + " 3600 IN A 192.0.2." + itoa(serial%250))
	if err != nil {
		panic(err)
	}
	return rrset.FromRR(rr)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func oneChangeset(t *testing.T, from, to uint32) *changeset.Changeset {
	t.Helper()
	cs, err := changeset.New(soaRRset(from), soaRRset(to))
	if err != nil {
		t.Fatalf("changeset.New: %v", err)
	}
	cs.AddAdd(aRRset("new.example.com.", to))
	return cs
}

// Run exercises store against the Store contract journal.go documents:
// append-then-load round trip, not-present, and no-such-range.
func Run(t *testing.T, store journal.Store) {
	t.Helper()
	ctx := context.Background()
	zone := "example.com."

	if _, err := store.Load(ctx, zone, 1, 2); !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("Load on empty store: err = %v, want NoHistory", err)
	}

	cs1 := oneChangeset(t, 1, 2)
	cs2 := oneChangeset(t, 2, 3)
	if err := store.Append(ctx, zone, cs1); err != nil {
		t.Fatalf("Append cs1: %v", err)
	}
	if err := store.Append(ctx, zone, cs2); err != nil {
		t.Fatalf("Append cs2: %v", err)
	}

	seq, err := store.Load(ctx, zone, 1, 3)
	if err != nil {
		t.Fatalf("Load(1,3): %v", err)
	}
	if len(seq.Changesets) != 2 {
		t.Fatalf("Load(1,3) returned %d changesets, want 2", len(seq.Changesets))
	}
	if seq.FirstSerial() != 1 || seq.LastSerial() != 3 {
		t.Fatalf("Load(1,3) serial range = [%d,%d], want [1,3]", seq.FirstSerial(), seq.LastSerial())
	}

	if _, err := store.Load(ctx, zone, 1, 4); !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("Load(1,4) err = %v, want NoHistory (no such range)", err)
	}
	if _, err := store.Load(ctx, "other.example.", 1, 2); !xfrproto.Is(err, xfrproto.NoHistory) {
		t.Fatalf("Load for unknown zone: err = %v, want NoHistory", err)
	}
}
