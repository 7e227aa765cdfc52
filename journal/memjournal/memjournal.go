// Package memjournal is an in-memory journal.Store, useful for tests and
// for small zones where persisting history across restarts doesn't
// matter. Grounded on the teacher's KeyDB caches (tdns/db.go's
// Sig0Cache/DnssecCache map[string]*... guarded by a single mutex) for
// the map-plus-mutex shape.
package memjournal

import (
	"context"
	"sync"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/xfrproto"
)

// Store keeps, per zone, a capped-length ordered slice of changesets.
// MaxEntries of zero means unlimited.
type Store struct {
	mu         sync.Mutex
	byZone     map[string][]*changeset.Changeset
	MaxEntries int
}

// New returns an empty Store. maxEntries caps the number of changesets
// retained per zone (oldest trimmed first); zero means unlimited.
func New(maxEntries int) *Store {
	return &Store{byZone: make(map[string][]*changeset.Changeset), MaxEntries: maxEntries}
}

func (s *Store) Load(_ context.Context, zone string, serialFrom, serialTo uint32) (*changeset.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.byZone[zone]
	if len(history) == 0 {
		return nil, xfrproto.NoHistoryf("memjournal.Load", "not present: no changesets recorded for zone %q", zone)
	}

	seq := changeset.NewSequence()
	started := false
	for _, cs := range history {
		if !started {
			if cs.SerialFrom != serialFrom {
				continue
			}
			started = true
		}
		if err := seq.Append(cs); err != nil {
			return nil, xfrproto.NoHistoryf("memjournal.Load", "no such range: stored history for zone %q has a gap", zone)
		}
		if cs.SerialTo == serialTo {
			return seq, nil
		}
	}
	return nil, xfrproto.NoHistoryf("memjournal.Load", "no such range: [%d,%d] not covered for zone %q", serialFrom, serialTo, zone)
}

func (s *Store) Append(_ context.Context, zone string, cs *changeset.Changeset) error {
	if cs == nil {
		return xfrproto.InvalidArgf("memjournal.Append", "nil changeset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byZone[zone] = append(s.byZone[zone], cs)
	if s.MaxEntries > 0 && len(s.byZone[zone]) > s.MaxEntries {
		overflow := len(s.byZone[zone]) - s.MaxEntries
		s.byZone[zone] = s.byZone[zone][overflow:]
	}
	return nil
}

func (s *Store) Close() error { return nil }
