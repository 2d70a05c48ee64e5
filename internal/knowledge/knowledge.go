package knowledge

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kolibri-v0/internal/ledger"
)

// DB is a searchable sqlite mirror of ledger events and taught
// associations. The ledger stays the source of truth; the index is
// rebuildable from it at any time.
type DB struct{ *sql.DB }

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS events (
			idx INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			event TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_event ON events(event);`,
		`CREATE TABLE IF NOT EXISTS associations (
			question TEXT PRIMARY KEY,
			answer TEXT NOT NULL,
			source TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("knowledge: migrate: %w", err)
		}
	}
	return nil
}

// IndexLedger replays a verified ledger into the events table. Existing
// rows for the same index are overwritten, so re-indexing is idempotent.
func (db *DB) IndexLedger(path string, key []byte) (int, error) {
	count := 0
	status, err := ledger.Replay(path, key, func(rec ledger.Record) error {
		event, err := rec.Event()
		if err != nil {
			return err
		}
		payload, err := rec.Payload()
		if err != nil {
			return err
		}
		_, err = db.Exec(
			`INSERT OR REPLACE INTO events(idx, timestamp, event, payload) VALUES(?,?,?,?)`,
			int64(rec.Index), int64(rec.Timestamp), event, payload,
		)
		if err == nil {
			count++
		}
		return err
	})
	if err != nil {
		return count, err
	}
	if status == ledger.StatusMissing {
		return 0, nil
	}
	return count, nil
}

// RecordAssociation upserts one taught question/answer pair.
func (db *DB) RecordAssociation(question, answer, source string) error {
	_, err := db.Exec(
		`INSERT INTO associations(question, answer, source, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(question) DO UPDATE SET answer=excluded.answer,
		   source=excluded.source, updated_at=excluded.updated_at`,
		question, answer, source, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Event is one indexed ledger record, decoded.
type Event struct {
	Index     int64
	Timestamp int64
	Name      string
	Payload   string
}

// RecentEvents returns up to limit events, newest first.
func (db *DB) RecentEvents(limit int) ([]Event, error) {
	rows, err := db.Query(
		`SELECT idx, timestamp, event, payload FROM events ORDER BY idx DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Index, &e.Timestamp, &e.Name, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SearchAssociations finds taught pairs whose question contains the term.
func (db *DB) SearchAssociations(term string, limit int) (map[string]string, error) {
	rows, err := db.Query(
		`SELECT question, answer FROM associations WHERE question LIKE ? ORDER BY question LIMIT ?`,
		"%"+term+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var q, a string
		if err := rows.Scan(&q, &a); err != nil {
			return nil, err
		}
		out[q] = a
	}
	return out, rows.Err()
}

// EventCounts returns how many records each event name has.
func (db *DB) EventCounts() (map[string]int64, error) {
	rows, err := db.Query(`SELECT event, COUNT(*) FROM events GROUP BY event`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}
