package dictionary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/glossa/internal/apperr"
	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/storage"
	"github.com/starford/glossa/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) Announce(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type fakeShipper struct {
	paths []string
	err   error
}

func (f *fakeShipper) Ship(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

var testNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, opts ...Option) (*Service, *storage.Store, Paths) {
	t.Helper()
	dir, store := testutil.TestStore(t)
	paths := Paths{Dict: filepath.Join(dir, "dict.db"), Accounts: filepath.Join(dir, "accounts.db")}
	opts = append([]Option{
		WithLogger(testutil.Logger()),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	return Open(store, paths, opts...), store, paths
}

func TestOpenCreatesDatasets(t *testing.T) {
	s, _, paths := newService(t)
	if s.Count() != 0 {
		t.Fatalf("Count = %d", s.Count())
	}
	for _, p := range []string{paths.Dict, paths.Accounts} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s not created: %v", p, err)
		}
	}
}

func TestOpenMigratesLegacySessions(t *testing.T) {
	dir, store := testutil.TestStore(t)
	paths := Paths{Dict: filepath.Join(dir, "dict.db"), Accounts: filepath.Join(dir, "accounts.db")}
	data := `{"hashes":{"alice":"$2a$08$abcdefghijklmnopqrstuv"},"tokens":{` +
		`"0f8fad5b-d9cb-469f-a165-70867728950e":"alice",` +
		`"7c9e6679-7425-40de-944b-e07fc1f90ae7":{"name":"bob","last":4102444800000}}}`
	if err := os.WriteFile(paths.Accounts, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(store, paths, WithLogger(testutil.Logger()), WithClock(func() time.Time { return testNow }))
	if !s.Save(context.Background()) {
		t.Fatal("save failed")
	}

	got := storage.Read(store, paths.Accounts, models.NewAccounts())
	if got.Hashes["alice"] != "$2a$08$abcdefghijklmnopqrstuv" {
		t.Fatalf("hashes = %v", got.Hashes)
	}
	if len(got.Tokens) != 1 {
		t.Fatalf("tokens = %v", got.Tokens)
	}
	sess := got.Tokens["0f8fad5b-d9cb-469f-a165-70867728950e"]
	if sess.Name != "alice" || sess.Last != testNow.UnixMilli() {
		t.Fatalf("migrated session = %+v", sess)
	}
}

func TestCreateAndSearch(t *testing.T) {
	rec := &recorder{}
	s, _, _ := newService(t, WithAnnouncer(rec))
	ctx := context.Background()

	id, err := s.Create(ctx, "jan", "toki", "to ___ speak\n", "en")
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.Lookup(ctx, id, "jan")
	if err != nil {
		t.Fatal(err)
	}
	if v.Body != "to ▯ speak" || v.On != "2026-10-16T09:30:00.000Z" || v.By != "jan" {
		t.Fatalf("view = %+v", v)
	}
	if v.Vote == nil || *v.Vote != 0 {
		t.Fatalf("vote = %v", v.Vote)
	}

	views, err := s.Search(ctx, "speak", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].ID != id {
		t.Fatalf("search = %+v", views)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != models.EventCreated || rec.events[0].ID != id {
		t.Fatalf("events = %+v", rec.events)
	}
}

func TestCreateValidation(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	long := make([]rune, MaxText+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name              string
		user, head, scope string
		want              error
	}{
		{"anonymous", "", "x", "en", apperr.ErrUnauthenticated},
		{"empty head", "jan", "", "en", apperr.ErrInvalid},
		{"long head", "jan", string(long), "en", apperr.ErrInvalid},
		{"bad scope", "jan", "x", "EN", apperr.ErrInvalid},
		{"long scope", "jan", "x", "abcdefghijklmnopqrstuvwxyz", apperr.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(ctx, tt.user, tt.head, "body", tt.scope); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if s.Count() != 0 {
		t.Fatal("invalid create changed the cache")
	}
}

func TestVote(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, "jan", "toki", "speak", "en")

	if err := s.Vote(ctx, "bob", id, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Vote(ctx, "bob", id, -1); err != nil {
		t.Fatal(err)
	}
	if err := s.Vote(ctx, "carol", id, -1); err != nil {
		t.Fatal(err)
	}
	v, _ := s.Lookup(ctx, id, "bob")
	if v.Score != -2 || *v.Vote != -1 {
		t.Fatalf("score = %d vote = %d", v.Score, *v.Vote)
	}

	if err := s.Vote(ctx, "bob", id, 2); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Vote(ctx, "bob", "missing", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Vote(ctx, "", id, 1); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
}

func TestNote(t *testing.T) {
	rec := &recorder{}
	s, _, _ := newService(t, WithAnnouncer(rec))
	ctx := context.Background()
	id, _ := s.Create(ctx, "jan", "toki", "speak", "en")

	if err := s.Note(ctx, "bob", id, "also used for language"); err != nil {
		t.Fatal(err)
	}
	views, _ := s.Search(ctx, "language", "")
	if len(views) != 1 || len(views[0].Notes) != 1 || views[0].Notes[0].By != "bob" {
		t.Fatalf("views = %+v", views)
	}
	if err := s.Note(ctx, "bob", "missing", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if last := rec.events[len(rec.events)-1]; last.Kind != models.EventNoted || last.Content != "also used for language" {
		t.Fatalf("last event = %+v", last)
	}
}

func TestRemove(t *testing.T) {
	rec := &recorder{}
	s, _, _ := newService(t, WithAnnouncer(rec))
	ctx := context.Background()
	id, _ := s.Create(ctx, "jan", "toki", "speak", "en")

	if err := s.Remove(ctx, "bob", id); !errors.Is(err, ErrNotOwner) || !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
	s.Vote(ctx, "bob", id, 1)
	if err := s.Remove(ctx, "jan", id); !errors.Is(err, ErrUpvoted) {
		t.Fatalf("err = %v", err)
	}
	s.Vote(ctx, "bob", id, 0)
	if err := s.Remove(ctx, "jan", id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Lookup(ctx, id, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Remove(ctx, "jan", id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if last := rec.events[len(rec.events)-1]; last.Kind != models.EventRemoved || last.Head != "toki" {
		t.Fatalf("last event = %+v", last)
	}
}

func TestSaveAndReopen(t *testing.T) {
	s, store, paths := newService(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, "jan", "toki", "speak", "en")
	s.Vote(ctx, "bob", id, 1)
	s.Note(ctx, "bob", id, "a note")

	if !s.Save(ctx) {
		t.Fatal("Save failed")
	}

	again := Open(store, paths, WithLogger(testutil.Logger()))
	v, err := again.Lookup(ctx, id, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if v.Score != 1 || len(v.Notes) != 1 || v.Head != "toki" {
		t.Fatalf("reloaded view = %+v", v)
	}
	d := storage.Read(store, paths.Dict, models.NewDataset())
	if d.Count != 1 {
		t.Fatalf("persisted count = %d", d.Count)
	}
}

func TestSaveGuardKeepsLargerFile(t *testing.T) {
	s, store, paths := newService(t)
	ctx := context.Background()
	var ids []string
	for range 20 {
		id, _ := s.Create(ctx, "jan", "toki", "a body long enough to weigh something", "en")
		ids = append(ids, id)
	}
	s.Save(ctx)
	for _, id := range ids[1:] {
		if err := s.Remove(ctx, "jan", id); err != nil {
			t.Fatal(err)
		}
	}

	if !s.Save(ctx) {
		t.Fatal("guarded save should still report ok")
	}
	d := storage.Read(store, paths.Dict, models.NewDataset())
	if len(d.Entries) != 20 {
		t.Fatalf("target has %d entries, guard did not trip", len(d.Entries))
	}
	if _, err := os.Stat(paths.Dict + storage.BackupSuffix); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
}

func TestBackupShips(t *testing.T) {
	sh := &fakeShipper{err: errors.New("offline")}
	s, _, paths := newService(t, WithShipper(sh))
	s.Create(context.Background(), "jan", "toki", "speak", "en")

	if !s.Backup(context.Background()) {
		t.Fatal("Backup failed")
	}
	want := filepath.Join(filepath.Dir(paths.Dict), "backup", "2026-10-16-09")
	if len(sh.paths) != 1 || sh.paths[0] != want {
		t.Fatalf("shipped %v, want %s", sh.paths, want)
	}
}
