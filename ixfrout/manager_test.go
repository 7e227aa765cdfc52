package ixfrout

import "testing"

func TestManagerStartLookupFinish(t *testing.T) {
	m := NewManager()
	sess := &Session{Zone: "example.com."}

	m.Start("example.com./10.0.0.1/1", sess)
	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}

	got, ok := m.Lookup("example.com./10.0.0.1/1")
	if !ok || got != sess {
		t.Fatalf("Lookup did not return the registered session")
	}

	m.Finish("example.com./10.0.0.1/1")
	if m.Count() != 0 {
		t.Fatalf("Count after Finish = %d, want 0", m.Count())
	}
	if _, ok := m.Lookup("example.com./10.0.0.1/1"); ok {
		t.Fatalf("session still present after Finish")
	}
}

func TestManagerCancelReportsPresence(t *testing.T) {
	m := NewManager()
	if m.Cancel("missing") {
		t.Fatalf("Cancel on an absent session returned true")
	}

	m.Start("present", &Session{})
	if !m.Cancel("present") {
		t.Fatalf("Cancel on a present session returned false")
	}
	if m.Count() != 0 {
		t.Fatalf("Count after Cancel = %d, want 0", m.Count())
	}
}
