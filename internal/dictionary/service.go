// Package dictionary applies user actions to the cached dictionary and
// persists it through the durable store.
package dictionary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/starford/glossa/internal/apperr"
	"github.com/starford/glossa/internal/cache"
	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/normalize"
	"github.com/starford/glossa/internal/search"
	"github.com/starford/glossa/internal/storage"
)

// Announcer is told about every successful change.
type Announcer interface {
	Announce(ev models.Event)
}

// Shipper copies a finished backup file somewhere off the machine.
type Shipper interface {
	Ship(ctx context.Context, path string) error
}

// Paths locates the persisted datasets.
type Paths struct {
	Dict     string
	Accounts string
}

// Service coordinates the cache, the ranking engine and the store.
type Service struct {
	cache    *cache.Cache
	engine   *search.Engine
	store    *storage.Store
	paths    Paths
	accounts models.Accounts

	announcer Announcer
	shipper   Shipper
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAnnouncer sets the receiver of change events.
func WithAnnouncer(a Announcer) Option {
	return func(s *Service) { s.announcer = a }
}

// WithShipper enables off-site shipping of backups.
func WithShipper(sh Shipper) Option {
	return func(s *Service) { s.shipper = sh }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Open loads both datasets from disk, creating them if needed, and builds
// the cache.
func Open(store *storage.Store, paths Paths, opts ...Option) *Service {
	s := &Service{
		store:  store,
		paths:  paths,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dict := storage.Read(store, paths.Dict, models.NewDataset())
	s.accounts = storage.Read(store, paths.Accounts, models.NewAccounts())
	if s.accounts.Hashes == nil {
		s.accounts.Hashes = map[string]string{}
	}
	if s.accounts.Tokens == nil {
		s.accounts.Tokens = map[string]models.Session{}
	}
	if migrated, dropped := s.accounts.Prune(s.now()); migrated+dropped > 0 {
		s.logger.Warn("dictionary: repaired sessions",
			slog.Int("migrated", migrated),
			slog.Int("dropped", dropped))
	}

	s.cache = cache.Build(dict)
	s.engine = search.New(s.cache, s.logger)
	s.logger.Info("dictionary: loaded",
		slog.Int("entries", s.cache.Len()),
		slog.Int("accounts", len(s.accounts.Hashes)))
	return s
}

// Search returns the entries matching query, best first.
func (s *Service) Search(_ context.Context, query, user string) ([]models.View, error) {
	if err := validateQuery(query); err != nil {
		return nil, fmt.Errorf("dictionary: search: %w: %w", apperr.ErrInvalid, err)
	}
	return s.engine.Search(query, user), nil
}

// Lookup returns a single entry.
func (s *Service) Lookup(_ context.Context, id, user string) (models.View, error) {
	if err := validateID(id); err != nil {
		return models.View{}, fmt.Errorf("dictionary: lookup: %w: %w", apperr.ErrInvalid, err)
	}
	v, ok := s.engine.Lookup(id, user)
	if !ok {
		return models.View{}, fmt.Errorf("dictionary: lookup %s: %w", id, apperr.ErrNotFound)
	}
	return v, nil
}

// Count returns the number of entries.
func (s *Service) Count() int {
	return s.cache.Len()
}

// Create adds a new entry by user and returns its id.
func (s *Service) Create(_ context.Context, user, head, body, scope string) (string, error) {
	if user == "" {
		return "", apperr.ErrUnauthenticated
	}
	in := createInput{Head: head, Body: body, Scope: scope}
	if err := in.Validate(); err != nil {
		return "", fmt.Errorf("dictionary: create: %w: %w", apperr.ErrInvalid, err)
	}

	e := &models.Entry{
		ID:    xid.New().String(),
		Head:  normalize.Compose(head),
		Body:  normalize.Compose(body),
		By:    user,
		Scope: scope,
		On:    models.Stamp(s.now()),
		Notes: []models.Note{},
		Votes: map[string]int{},
	}
	if !s.cache.Insert(e) {
		return "", fmt.Errorf("dictionary: create: id %s taken: %w", e.ID, apperr.ErrInternal)
	}
	s.announce(models.EventCreated, user, e, "")
	return e.ID, nil
}

// Vote sets user's vote on an entry to -1, 0 or 1.
func (s *Service) Vote(_ context.Context, user, id string, vote int) error {
	if user == "" {
		return apperr.ErrUnauthenticated
	}
	in := voteInput{ID: id, Vote: vote}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("dictionary: vote: %w: %w", apperr.ErrInvalid, err)
	}
	if !s.cache.Vote(id, user, vote) {
		return fmt.Errorf("dictionary: vote %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Note appends a note by user to an entry.
func (s *Service) Note(_ context.Context, user, id, content string) error {
	if user == "" {
		return apperr.ErrUnauthenticated
	}
	in := noteInput{ID: id, Content: content}
	if err := in.Validate(); err != nil {
		return fmt.Errorf("dictionary: note: %w: %w", apperr.ErrInvalid, err)
	}
	n := models.Note{On: models.Stamp(s.now()), Content: normalize.Compose(content), By: user}
	if !s.cache.AddNote(id, n) {
		return fmt.Errorf("dictionary: note %s: %w", id, apperr.ErrNotFound)
	}
	if e, ok := s.cache.Get(id); ok {
		s.announce(models.EventNoted, user, e, n.Content)
	}
	return nil
}

// Remove deletes an entry. Only its author may remove it, and only while
// its score is not positive.
func (s *Service) Remove(_ context.Context, user, id string) error {
	if user == "" {
		return apperr.ErrUnauthenticated
	}
	if err := validateID(id); err != nil {
		return fmt.Errorf("dictionary: remove: %w: %w", apperr.ErrInvalid, err)
	}
	var removed *models.Entry
	err := s.cache.RemoveIf(id, func(r *cache.Record) error {
		if r.By != user {
			return ErrNotOwner
		}
		if r.Score > 0 {
			return ErrUpvoted
		}
		removed = r.Entry.Clone()
		return nil
	})
	if err != nil {
		return fmt.Errorf("dictionary: remove %s: %w", id, err)
	}
	s.announce(models.EventRemoved, user, removed, "")
	return nil
}

// Save writes both datasets with the size guard on. It reports whether
// both reached the disk.
func (s *Service) Save(_ context.Context) bool {
	dict := s.store.Write(s.paths.Dict, s.cache.Snapshot(), false)
	accounts := s.store.Write(s.paths.Accounts, s.accounts, false)
	s.logger.Info("dictionary: saved",
		slog.String("dict", dict.String()),
		slog.String("accounts", accounts.String()))
	return dict.OK() && accounts.OK()
}

// Backup writes a point-in-time snapshot of both datasets and, if
// configured, ships it off-site. A failed shipment is logged only.
func (s *Service) Backup(ctx context.Context) bool {
	snap := models.Snapshot{Dict: s.cache.Snapshot(), Accounts: s.accounts}
	path, res := s.store.Backup(s.now(), snap)
	if !res.OK() {
		return false
	}
	if s.shipper != nil {
		if err := s.shipper.Ship(ctx, path); err != nil {
			s.logger.Error("dictionary: off-site backup failed",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return true
}

// Snapshot returns a copy of the dictionary.
func (s *Service) Snapshot() models.Dataset {
	return s.cache.Snapshot()
}

func (s *Service) announce(kind models.EventKind, actor string, e *models.Entry, content string) {
	if s.announcer == nil {
		return
	}
	s.announcer.Announce(models.Event{
		Kind:    kind,
		ID:      e.ID,
		Head:    e.Head,
		Body:    e.Body,
		By:      e.By,
		Actor:   actor,
		Content: content,
		At:      s.now(),
	})
}
