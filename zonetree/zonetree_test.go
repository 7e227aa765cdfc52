package zonetree

import "testing"

func TestInsertGet(t *testing.T) {
	tr := New()
	n := NewNode("www.example.com.")
	if err := tr.Insert(n); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok := tr.Get("www.example.com.")
	if !ok || got != n {
		t.Fatalf("Get returned (%v, %v), want (%v, true)", got, ok, n)
	}
	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", tr.Count())
	}
}

func TestInsertReplacesExisting(t *testing.T) {
	tr := New()
	first := NewNode("example.com.")
	tr.Insert(first)
	second := NewNode("example.com.")
	second.Children = 3
	tr.Insert(second)

	if tr.Count() != 1 {
		t.Fatalf("Count = %d, want 1 after replace", tr.Count())
	}
	got, _ := tr.Get("example.com.")
	if got != second {
		t.Fatalf("Get returned stale node after replace")
	}
}

func TestPredecessorOrEqualExact(t *testing.T) {
	tr := New()
	for _, owner := range []string{"example.com.", "a.example.com.", "www.example.com."} {
		tr.Insert(NewNode(owner))
	}
	found, _, ok := tr.PredecessorOrEqual("a.example.com.")
	if !ok || found == nil || found.Owner != "a.example.com." {
		t.Fatalf("PredecessorOrEqual exact match failed: %+v ok=%v", found, ok)
	}
}

func TestPredecessorOrEqualNoMatch(t *testing.T) {
	// Lookup-key order for these three is: example.com. < www.example.com. < zzz.example.com.;
	// m.example.com. falls between example.com. and www.example.com.
	tr := New()
	tr.Insert(NewNode("example.com."))
	tr.Insert(NewNode("www.example.com."))
	tr.Insert(NewNode("zzz.example.com."))

	found, prev, ok := tr.PredecessorOrEqual("m.example.com.")
	if !ok {
		t.Fatal("PredecessorOrEqual on non-empty tree returned ok=false")
	}
	if found != nil {
		t.Fatalf("expected no exact match, got %+v", found)
	}
	if prev == nil || prev.Owner != "example.com." {
		t.Fatalf("predecessor = %+v, want example.com.", prev)
	}
}

func TestPredecessorOrEqualWrapsAround(t *testing.T) {
	tr := New()
	tr.Insert(NewNode("example.com."))
	tr.Insert(NewNode("www.example.com."))

	// "aaa.com." sorts before every stored key in lookup form (its
	// reversed form is "com\x01aaa", which precedes "com\x01example").
	// Predecessor should wrap to the rightmost node.
	found, prev, ok := tr.PredecessorOrEqual("aaa.com.")
	if !ok {
		t.Fatal("expected ok=true on non-empty tree")
	}
	if found != nil {
		t.Fatalf("expected no exact match, got %+v", found)
	}
	if prev == nil || prev.Owner != "www.example.com." {
		t.Fatalf("wraparound predecessor = %+v, want www.example.com. (rightmost)", prev)
	}
}

func TestPredecessorOrEqualEmptyTree(t *testing.T) {
	tr := New()
	_, _, ok := tr.PredecessorOrEqual("example.com.")
	if ok {
		t.Fatal("expected ok=false on empty tree")
	}
}

func TestRemove(t *testing.T) {
	tr := New()
	tr.Insert(NewNode("example.com."))
	tr.Insert(NewNode("www.example.com."))

	removed, ok := tr.Remove("www.example.com.")
	if !ok || removed.Owner != "www.example.com." {
		t.Fatalf("Remove = (%+v, %v)", removed, ok)
	}
	if tr.Count() != 1 {
		t.Fatalf("Count = %d after remove, want 1", tr.Count())
	}
	if _, ok := tr.Get("www.example.com."); ok {
		t.Fatal("removed node still reachable via Get")
	}
}

func TestApplyVisitsInAscendingKeyOrder(t *testing.T) {
	tr := New()
	owners := []string{"zzz.example.com.", "example.com.", "aaa.example.com."}
	for _, o := range owners {
		tr.Insert(NewNode(o))
	}

	var seen []string
	err := tr.Apply(func(n *Node) error {
		seen = append(seen, n.Owner)
		return nil
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{"example.com.", "aaa.example.com.", "zzz.example.com."}
	if len(seen) != len(want) {
		t.Fatalf("Apply visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("Apply order = %v, want %v", seen, want)
		}
	}
}

func TestDeleteEmptyNodePrunesParentChain(t *testing.T) {
	tr := New()
	apex := NewNode("example.com.")
	mid := NewNode("a.b.example.com.")
	mid.Parent = apex
	leaf := NewNode("x.a.b.example.com.")
	leaf.Parent = mid
	mid.Children = 1
	apex.Children = 1

	tr.Insert(apex)
	tr.Insert(mid)
	tr.Insert(leaf)

	if err := tr.DeleteEmptyNode(leaf); err != nil {
		t.Fatalf("DeleteEmptyNode: %v", err)
	}

	if _, ok := tr.Get("x.a.b.example.com."); ok {
		t.Fatal("leaf still present after DeleteEmptyNode")
	}
	// mid had only the leaf as content; it should have been pruned too,
	// decrementing apex.Children in the process.
	if _, ok := tr.Get("a.b.example.com."); ok {
		t.Fatal("mid still present after recursive prune")
	}
	if apex.Children != 0 {
		t.Fatalf("apex.Children = %d, want 0", apex.Children)
	}
	if _, ok := tr.Get("example.com."); !ok {
		t.Fatal("apex itself must never be pruned by DeleteEmptyNode")
	}
}

func TestDeleteEmptyNodeIdempotent(t *testing.T) {
	tr := New()
	apex := NewNode("example.com.")
	leaf := NewNode("x.example.com.")
	leaf.Parent = apex
	apex.Children = 1

	tr.Insert(apex)
	tr.Insert(leaf)

	if err := tr.DeleteEmptyNode(leaf); err != nil {
		t.Fatalf("first DeleteEmptyNode: %v", err)
	}
	if apex.Children != 0 {
		t.Fatalf("apex.Children after first call = %d, want 0", apex.Children)
	}

	if err := tr.DeleteEmptyNode(leaf); err != nil {
		t.Fatalf("second DeleteEmptyNode: %v", err)
	}
	if apex.Children != 0 {
		t.Fatalf("apex.Children after second call = %d, want 0 (DeleteEmptyNode must be idempotent)", apex.Children)
	}
}

func TestDeleteEmptyNodeNoopOnNonEmpty(t *testing.T) {
	tr := New()
	n := NewNode("example.com.")
	n.Children = 1
	tr.Insert(n)

	if err := tr.DeleteEmptyNode(n); err != nil {
		t.Fatalf("DeleteEmptyNode: %v", err)
	}
	if _, ok := tr.Get("example.com."); !ok {
		t.Fatal("node with children must not be pruned")
	}
}

func TestRebuildSortsAndLinksPrev(t *testing.T) {
	tr := New()
	nodes := []*Node{
		NewNode("zzz.example.com."),
		NewNode("example.com."),
		NewNode("aaa.example.com."),
	}
	tr.Rebuild(nodes)

	if tr.Count() != 3 {
		t.Fatalf("Count = %d, want 3", tr.Count())
	}
	first, _ := tr.Get("example.com.")
	if first.prev == nil || first.prev.Owner != "zzz.example.com." {
		t.Fatalf("leftmost node's prev = %+v, want zzz.example.com. (circular wrap)", first.prev)
	}
}
