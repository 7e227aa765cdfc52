// Package integration drives a full zonediff -> ixfrout -> ixfrin ->
// zone.Contents.ApplyAndStore round trip, the way the teacher's
// ixfr_test.go exercises its own RFC 1995 worked example end to end
// rather than one package at a time.
package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/ixfrin"
	"github.com/tornvall/zxfer/ixfrout"
	"github.com/tornvall/zxfer/journal/memjournal"
	"github.com/tornvall/zxfer/xfrproto"
	"github.com/tornvall/zxfer/zone"
	"github.com/tornvall/zxfer/zonediff"
)

const oldZone = `
example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 1 3600 900 604800 3600
example.com. 3600 IN NS ns1.example.com.
www.example.com. 3600 IN A 192.0.2.1
old.example.com. 3600 IN A 192.0.2.9
`

const newZone = `
example.com. 3600 IN SOA ns1.example.com. hostmaster.example.com. 2 3600 900 604800 3600
example.com. 3600 IN NS ns1.example.com.
www.example.com. 3600 IN A 192.0.2.2
new.example.com. 3600 IN A 192.0.2.10
`

func TestDiffOutInRoundTrip(t *testing.T) {
	oldContents, err := zone.Parse("example.com.", strings.NewReader(oldZone), "old")
	if err != nil {
		t.Fatalf("parsing old zone: %v", err)
	}
	newContents, err := zone.Parse("example.com.", strings.NewReader(newZone), "new")
	if err != nil {
		t.Fatalf("parsing new zone: %v", err)
	}

	cs, err := zonediff.Diff(oldContents.SoaRRset(), newContents.SoaRRset(),
		oldContents.Main, newContents.Main, nil, nil)
	if err != nil {
		t.Fatalf("zonediff.Diff: %v", err)
	}

	seq := changeset.NewSequence()
	if err := seq.Append(cs); err != nil {
		t.Fatalf("Sequence.Append: %v", err)
	}

	session, err := ixfrout.NewSession("example.com.", seq, 0)
	if err != nil {
		t.Fatalf("ixfrout.NewSession: %v", err)
	}

	msg := new(dns.Msg)
	result, err := session.Step(msg)
	if err != nil {
		t.Fatalf("Session.Step: %v", err)
	}
	if result != xfrproto.ProcDone {
		t.Fatalf("Session.Step result = %v, want ProcDone (unlimited message budget)", result)
	}

	consumer := ixfrin.NewConsumer("example.com.", 1, 0)
	var last xfrproto.ProcResult
	for _, rr := range msg.Answer {
		last, err = consumer.ProcessRR(rr)
		if err != nil {
			t.Fatalf("Consumer.ProcessRR(%v): %v", rr, err)
		}
	}
	if last != xfrproto.ProcDone {
		t.Fatalf("final ProcessRR result = %v, want ProcDone", last)
	}

	store := memjournal.New(0)
	finalResult, err := consumer.Finalize(context.Background(), oldContents, store)
	if err != nil {
		t.Fatalf("Consumer.Finalize: %v", err)
	}
	if finalResult != xfrproto.ProcDone {
		t.Fatalf("Finalize result = %v, want ProcDone", finalResult)
	}

	if oldContents.Serial() != 2 {
		t.Fatalf("applied serial = %d, want 2", oldContents.Serial())
	}
	if _, ok := oldContents.Main.Get("old.example.com."); ok {
		t.Fatalf("old.example.com. should have been removed")
	}
	wwwNode, ok := oldContents.Main.Get("www.example.com.")
	if !ok {
		t.Fatalf("www.example.com. missing after apply")
	}
	a := wwwNode.RRset(dns.TypeA)
	if len(a.RRs) != 1 || a.RRs[0].(*dns.A).A.String() != "192.0.2.2" {
		t.Fatalf("www.example.com. A after apply = %v, want 192.0.2.2", a.RRs)
	}
	newNode, ok := oldContents.Main.Get("new.example.com.")
	if !ok {
		t.Fatalf("new.example.com. missing after apply")
	}
	a = newNode.RRset(dns.TypeA)
	if len(a.RRs) != 1 || a.RRs[0].(*dns.A).A.String() != "192.0.2.10" {
		t.Fatalf("new.example.com. A after apply = %v, want 192.0.2.10", a.RRs)
	}

	seqLoaded, err := store.Load(context.Background(), "example.com.", 1, 2)
	if err != nil {
		t.Fatalf("journal Load after apply: %v", err)
	}
	if len(seqLoaded.Changesets) != 1 {
		t.Fatalf("journal has %d changesets, want 1", len(seqLoaded.Changesets))
	}
}
