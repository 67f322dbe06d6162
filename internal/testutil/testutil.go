// Package testutil provides shared test helpers for building entries and
// stores.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/storage"
)

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a store rooted in a temporary directory and returns
// the directory alongside it.
func TestStore(t *testing.T) (string, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store := storage.New(
		storage.WithBackupDir(filepath.Join(dir, "backup")),
		storage.WithLogger(Logger()),
	)
	return dir, store
}

// Entry builds an entry by alice in scope en created day days after
// 2020-01-01.
func Entry(id, head, body string, day int) *models.Entry {
	return &models.Entry{
		ID:    id,
		Head:  head,
		Body:  body,
		By:    "alice",
		Scope: "en",
		On:    models.Stamp(epoch.AddDate(0, 0, day)),
		Notes: []models.Note{},
		Votes: map[string]int{},
	}
}

// Dataset keys entries by id.
func Dataset(entries ...*models.Entry) models.Dataset {
	d := models.NewDataset()
	for _, e := range entries {
		d.Entries[e.ID] = e
	}
	d.Count = len(d.Entries)
	return d
}

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
