package ixfrout

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Manager tracks in-flight transfer-out sessions by an opaque identity
// (by convention "zone/remoteAddr/queryID"), so a host process can look
// a stuck transfer up -- or cancel it on a timeout -- without threading
// session state through its own call stack. Grounded on the teacher's
// Zones cmap.ConcurrentMap registry (tdns/structs.go, FindZone in
// tdns/zone_utils.go): a concurrent map keyed by name, looked up from
// wherever a request arrives.
type Manager struct {
	sessions cmap.ConcurrentMap[string, *Session]
}

// NewManager returns an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: cmap.New[*Session]()}
}

// Start registers sess under id, replacing any prior session already
// registered there.
func (m *Manager) Start(id string, sess *Session) {
	m.sessions.Set(id, sess)
}

// Lookup returns the session registered under id, if any.
func (m *Manager) Lookup(id string) (*Session, bool) {
	return m.sessions.Get(id)
}

// Finish removes id from the registry. Safe to call whether or not id is
// still present.
func (m *Manager) Finish(id string) {
	m.sessions.Remove(id)
}

// Cancel removes id from the registry and reports whether it was present,
// the host's hook for "the transfer has exceeded its deadline, stop
// tracking it" -- the session's own goroutine is expected to notice on
// its next Step call that it's no longer registered, via Lookup, and
// abandon the transfer.
func (m *Manager) Cancel(id string) bool {
	_, ok := m.sessions.Get(id)
	if ok {
		m.sessions.Remove(id)
	}
	return ok
}

// Count returns the number of in-flight sessions currently tracked.
func (m *Manager) Count() int {
	return m.sessions.Count()
}
