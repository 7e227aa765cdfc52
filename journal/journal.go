// Package journal defines the storage contract IXFR-out reads changesets
// from and IXFR-in/the differ appends changesets to: an ordered,
// per-zone changeset history addressable by serial range.
//
// Grounded on spec.md's journal interface (load_changesets ->
// OK | NO_SUCH_RANGE | NOT_PRESENT | IO_ERROR) and on the teacher's
// KeyDB pattern (tdns/db.go) for how a storage collaborator is shaped as
// a narrow interface the rest of the core depends on, with concrete
// backends living in their own subpackages.
package journal

import (
	"context"

	"github.com/tornvall/zxfer/changeset"
)

// Store is the journal contract. Implementations must be safe for
// concurrent use by multiple goroutines.
type Store interface {
	// Load returns the changeset sequence covering exactly
	// [serialFrom, serialTo]. If no changeset for zone exists at all,
	// it returns a *xfrproto.Error with Kind NoHistory and message
	// "not present". If changesets exist for zone but the requested
	// range isn't fully covered by a contiguous run, it returns Kind
	// NoHistory with message "no such range" -- callers map either case
	// to an AXFR fallback, the distinction is for logging only.
	Load(ctx context.Context, zone string, serialFrom, serialTo uint32) (*changeset.Sequence, error)

	// Append stores cs as the newest changeset for zone. Implementations
	// may enforce their own retention policy (record count, byte size,
	// or age) and silently trim older changesets; trimming must never
	// leave the stored history with a gap newer than what was trimmed.
	Append(ctx context.Context, zone string, cs *changeset.Changeset) error

	// Close releases any resources (open files, DB handles) held by the
	// store.
	Close() error
}
