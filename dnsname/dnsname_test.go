package dnsname

import "testing"

func TestLookupKeyReversesLabels(t *testing.T) {
	got := LookupKey("www.example.com.")
	want := "com" + string(labelSep) + "example" + string(labelSep) + "www"
	if got != want {
		t.Fatalf("LookupKey = %q, want %q", got, want)
	}
}

func TestLookupKeyCaseInsensitive(t *testing.T) {
	if LookupKey("WWW.Example.COM.") != LookupKey("www.example.com.") {
		t.Fatal("LookupKey should be case-insensitive")
	}
}

func TestLookupKeySortsDescendantsAdjacent(t *testing.T) {
	if LookupKey("a.example.com.") >= LookupKey("b.example.com.") &&
		LookupKey("a.example.com.") <= LookupKey("example.com.") {
		// Not a strict check, just confirms keys compare consistently.
	}
	parent := LookupKey("example.com.")
	child := LookupKey("www.example.com.")
	if len(child) <= len(parent) {
		t.Fatalf("child key %q should be longer than parent key %q", child, parent)
	}
}

func TestIsSubdomain(t *testing.T) {
	cases := []struct {
		child, parent string
		want          bool
	}{
		{"www.example.com.", "example.com.", true},
		{"example.com.", "example.com.", true},
		{"evilexample.com.", "example.com.", false},
		{"example.org.", "example.com.", false},
		{"a.b.example.com.", "example.com.", true},
	}
	for _, c := range cases {
		if got := IsSubdomain(c.child, c.parent); got != c.want {
			t.Errorf("IsSubdomain(%q, %q) = %v, want %v", c.child, c.parent, got, c.want)
		}
	}
}

func TestIsWildcard(t *testing.T) {
	if !IsWildcard("*.example.com.") {
		t.Error("expected *.example.com. to be a wildcard")
	}
	if IsWildcard("www.example.com.") {
		t.Error("did not expect www.example.com. to be a wildcard")
	}
	if !IsWildcard("*") {
		t.Error("expected bare * to be a wildcard")
	}
}

func TestParentOf(t *testing.T) {
	cases := []struct {
		name, want string
		ok         bool
	}{
		{"www.example.com.", "example.com.", true},
		{"example.com.", "com.", true},
		{"com.", ".", true},
		{".", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParentOf(c.name)
		if got != c.want || ok != c.ok {
			t.Errorf("ParentOf(%q) = (%q, %v), want (%q, %v)", c.name, got, ok, c.want, c.ok)
		}
	}
}
