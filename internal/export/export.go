// Package export writes the dictionary into a standalone SQLite file for
// ad-hoc SQL analysis. The file is never read back.
package export

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/glossa/internal/models"
)

const schemaSQL = `
CREATE TABLE entries (
	id         TEXT PRIMARY KEY,
	head       TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	author     TEXT NOT NULL,
	scope      TEXT NOT NULL DEFAULT 'en',
	created_at TEXT NOT NULL,
	score      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE notes (
	entry_id   TEXT NOT NULL REFERENCES entries(id),
	seq        INTEGER NOT NULL,
	author     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	content    TEXT NOT NULL,
	PRIMARY KEY (entry_id, seq)
);

CREATE TABLE votes (
	entry_id TEXT NOT NULL REFERENCES entries(id),
	voter    TEXT NOT NULL,
	vote     INTEGER NOT NULL,
	PRIMARY KEY (entry_id, voter)
);

CREATE INDEX idx_entries_author ON entries(author);
CREATE INDEX idx_entries_scope ON entries(scope);
CREATE INDEX idx_votes_voter ON votes(voter);
`

// Stats counts the rows an export wrote.
type Stats struct {
	Entries int
	Notes   int
	Votes   int
}

// Write replaces the file at path with a database holding d.
func Write(path string, d models.Dataset) (Stats, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Stats{}, fmt.Errorf("export: remove old file: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return Stats{}, fmt.Errorf("export: open db: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(schemaSQL); err != nil {
		return Stats{}, fmt.Errorf("export: apply schema: %w", err)
	}

	tx, err := conn.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("export: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stats, err := insertAll(tx, d)
	if err != nil {
		return Stats{}, err
	}
	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("export: commit: %w", err)
	}
	return stats, nil
}

func insertAll(tx *sql.Tx, d models.Dataset) (Stats, error) {
	var stats Stats

	entryStmt, err := tx.Prepare(`INSERT INTO entries (id, head, body, author, scope, created_at, score) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("export: prepare entry insert: %w", err)
	}
	defer entryStmt.Close()
	noteStmt, err := tx.Prepare(`INSERT INTO notes (entry_id, seq, author, created_at, content) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("export: prepare note insert: %w", err)
	}
	defer noteStmt.Close()
	voteStmt, err := tx.Prepare(`INSERT INTO votes (entry_id, voter, vote) VALUES (?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("export: prepare vote insert: %w", err)
	}
	defer voteStmt.Close()

	ids := make([]string, 0, len(d.Entries))
	for id := range d.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		e := d.Entries[id]
		if _, err := entryStmt.Exec(id, e.Head, e.Body, e.By, e.Scope, e.On, e.Tally()); err != nil {
			return stats, fmt.Errorf("export: insert entry %s: %w", id, err)
		}
		stats.Entries++
		for i, n := range e.Notes {
			if _, err := noteStmt.Exec(id, i, n.By, n.On, n.Content); err != nil {
				return stats, fmt.Errorf("export: insert note %s/%d: %w", id, i, err)
			}
			stats.Notes++
		}
		for voter, v := range e.Votes {
			if _, err := voteStmt.Exec(id, voter, v); err != nil {
				return stats, fmt.Errorf("export: insert vote %s/%s: %w", id, voter, err)
			}
			stats.Votes++
		}
	}
	return stats, nil
}
