// Package sqlitejournal is a journal.Store backed by sqlite, for zones
// whose changeset history needs to survive a restart.
//
// Grounded on the teacher's tdns/db.go: database/sql opened against the
// mattn/go-sqlite3 driver, a DefaultTables schema map applied with
// CREATE TABLE IF NOT EXISTS at open time, and a small mutex-guarded
// wrapper type around *sql.DB. Resource records are stored in DNS
// presentation format (one row per RR) and reconstituted with
// dns.NewRR on load, the same text-based persistence the teacher uses
// for stored key material (tdns/db.go's "keyrr TEXT" columns).
package sqlitejournal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/miekg/dns"

	"github.com/tornvall/zxfer/changeset"
	"github.com/tornvall/zxfer/rrset"
	"github.com/tornvall/zxfer/xfrproto"
)

var schema = map[string]string{
	"ChangesetHeaders": `CREATE TABLE IF NOT EXISTS 'ChangesetHeaders' (
id		  INTEGER PRIMARY KEY,
zone		  TEXT NOT NULL,
serial_from	  INTEGER NOT NULL,
serial_to	  INTEGER NOT NULL,
soa_from	  TEXT NOT NULL,
soa_to		  TEXT NOT NULL,
UNIQUE (zone, serial_from, serial_to)
)`,

	"ChangesetRecords": `CREATE TABLE IF NOT EXISTS 'ChangesetRecords' (
id		  INTEGER PRIMARY KEY,
header_id	  INTEGER NOT NULL,
side		  TEXT NOT NULL,
rrset_seq	  INTEGER NOT NULL,
rr_seq		  INTEGER NOT NULL,
rrtext		  TEXT NOT NULL
)`,
}

const (
	sideRemove = "remove"
	sideAdd    = "add"
)

// Store is a sqlite-backed journal.Store.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the journal schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, xfrproto.IOErrorf("sqlitejournal.Open", err, "opening %s", path)
	}
	for name, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, xfrproto.IOErrorf("sqlitejournal.Open", err, "creating table %s", name)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append stores cs as the newest changeset for zone, inside a single
// transaction so a crash mid-write never leaves a partial changeset
// readable on restart.
func (s *Store) Append(ctx context.Context, zone string, cs *changeset.Changeset) error {
	if cs == nil {
		return xfrproto.InvalidArgf("sqlitejournal.Append", "nil changeset")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xfrproto.IOErrorf("sqlitejournal.Append", err, "begin tx")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ChangesetHeaders (zone, serial_from, serial_to, soa_from, soa_to) VALUES (?, ?, ?, ?, ?)`,
		zone, cs.SerialFrom, cs.SerialTo, cs.SoaFrom.RRs[0].String(), cs.SoaTo.RRs[0].String())
	if err != nil {
		return xfrproto.IOErrorf("sqlitejournal.Append", err, "insert header")
	}
	headerID, err := res.LastInsertId()
	if err != nil {
		return xfrproto.IOErrorf("sqlitejournal.Append", err, "read header id")
	}

	if err := insertSide(ctx, tx, headerID, sideRemove, cs.Remove); err != nil {
		return err
	}
	if err := insertSide(ctx, tx, headerID, sideAdd, cs.Add); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return xfrproto.IOErrorf("sqlitejournal.Append", err, "commit")
	}
	return nil
}

func insertSide(ctx context.Context, tx *sql.Tx, headerID int64, side string, rrsets []rrset.RRset) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ChangesetRecords (header_id, side, rrset_seq, rr_seq, rrtext) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return xfrproto.IOErrorf("sqlitejournal.insertSide", err, "prepare")
	}
	defer stmt.Close()

	for rrsetSeq, rs := range rrsets {
		for rrSeq, rr := range rs.RRs {
			if _, err := stmt.ExecContext(ctx, headerID, side, rrsetSeq, rrSeq, rr.String()); err != nil {
				return xfrproto.IOErrorf("sqlitejournal.insertSide", err, "insert record")
			}
		}
	}
	return nil
}

// Load reassembles the changeset sequence covering [serialFrom, serialTo]
// by selecting headers in ascending serial order and verifying the chain
// is contiguous and exact.
func (s *Store) Load(ctx context.Context, zone string, serialFrom, serialTo uint32) (*changeset.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, serial_from, serial_to, soa_from, soa_to FROM ChangesetHeaders
		 WHERE zone = ? AND serial_from >= ? AND serial_to <= ? ORDER BY serial_from ASC`,
		zone, serialFrom, serialTo)
	if err != nil {
		return nil, xfrproto.IOErrorf("sqlitejournal.Load", err, "query headers")
	}
	defer rows.Close()

	type header struct {
		id                     int64
		serialFrom, serialTo   uint32
		soaFromText, soaToText string
	}
	var headers []header
	for rows.Next() {
		var h header
		if err := rows.Scan(&h.id, &h.serialFrom, &h.serialTo, &h.soaFromText, &h.soaToText); err != nil {
			return nil, xfrproto.IOErrorf("sqlitejournal.Load", err, "scan header")
		}
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, xfrproto.IOErrorf("sqlitejournal.Load", err, "iterate headers")
	}

	if len(headers) == 0 {
		return nil, xfrproto.NoHistoryf("sqlitejournal.Load", "not present: no changesets recorded for zone %q", zone)
	}

	seq := changeset.NewSequence()
	for _, h := range headers {
		soaFrom, err := parseSoaRRset(h.soaFromText)
		if err != nil {
			return nil, xfrproto.IOErrorf("sqlitejournal.Load", err, "parse stored soa_from")
		}
		soaTo, err := parseSoaRRset(h.soaToText)
		if err != nil {
			return nil, xfrproto.IOErrorf("sqlitejournal.Load", err, "parse stored soa_to")
		}

		cs, err := changeset.New(soaFrom, soaTo)
		if err != nil {
			return nil, xfrproto.IOErrorf("sqlitejournal.Load", err, "rebuild changeset header")
		}

		remove, add, err := s.loadRecords(ctx, h.id)
		if err != nil {
			return nil, err
		}
		cs.Remove = remove
		cs.Add = add

		if err := seq.Append(cs); err != nil {
			return nil, xfrproto.NoHistoryf("sqlitejournal.Load", "no such range: stored history for zone %q has a gap", zone)
		}
	}

	if !seq.Covers(serialFrom, serialTo) {
		return nil, xfrproto.NoHistoryf("sqlitejournal.Load", "no such range: [%d,%d] not fully covered for zone %q", serialFrom, serialTo, zone)
	}
	return seq, nil
}

func (s *Store) loadRecords(ctx context.Context, headerID int64) (remove, add []rrset.RRset, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT side, rrset_seq, rr_seq, rrtext FROM ChangesetRecords
		 WHERE header_id = ? ORDER BY side, rrset_seq, rr_seq`, headerID)
	if err != nil {
		return nil, nil, xfrproto.IOErrorf("sqlitejournal.loadRecords", err, "query records")
	}
	defer rows.Close()

	byRRsetRemove := map[int][]dns.RR{}
	byRRsetAdd := map[int][]dns.RR{}
	var removeOrder, addOrder []int

	for rows.Next() {
		var side string
		var rrsetSeq, rrSeq int
		var rrtext string
		if err := rows.Scan(&side, &rrsetSeq, &rrSeq, &rrtext); err != nil {
			return nil, nil, xfrproto.IOErrorf("sqlitejournal.loadRecords", err, "scan record")
		}
		rr, perr := dns.NewRR(rrtext)
		if perr != nil {
			return nil, nil, xfrproto.IOErrorf("sqlitejournal.loadRecords", perr, "parse stored rr %q", rrtext)
		}
		switch side {
		case sideRemove:
			if _, ok := byRRsetRemove[rrsetSeq]; !ok {
				removeOrder = append(removeOrder, rrsetSeq)
			}
			byRRsetRemove[rrsetSeq] = append(byRRsetRemove[rrsetSeq], rr)
		case sideAdd:
			if _, ok := byRRsetAdd[rrsetSeq]; !ok {
				addOrder = append(addOrder, rrsetSeq)
			}
			byRRsetAdd[rrsetSeq] = append(byRRsetAdd[rrsetSeq], rr)
		default:
			return nil, nil, xfrproto.IOErrorf("sqlitejournal.loadRecords", nil, "unknown side %q", side)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, xfrproto.IOErrorf("sqlitejournal.loadRecords", err, "iterate records")
	}

	for _, seq := range removeOrder {
		remove = append(remove, rrsFromGroup(byRRsetRemove[seq]))
	}
	for _, seq := range addOrder {
		add = append(add, rrsFromGroup(byRRsetAdd[seq]))
	}
	return remove, add, nil
}

func rrsFromGroup(rrs []dns.RR) rrset.RRset {
	h := rrs[0].Header()
	return rrset.RRset{Owner: h.Name, Type: h.Rrtype, Class: h.Class, RRs: rrs}
}

func parseSoaRRset(text string) (rrset.RRset, error) {
	rr, err := dns.NewRR(text)
	if err != nil {
		return rrset.RRset{}, fmt.Errorf("parsing stored SOA %q: %w", text, err)
	}
	return rrset.FromRR(rr), nil
}
