// Package cache keeps the whole dictionary in memory, denormalized for
// search, behind a single reader/writer lock.
package cache

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/normalize"
)

// DefaultScope is assigned to legacy entries stored without one.
const DefaultScope = "en"

// Record is a cached entry with the folded fields search runs against.
type Record struct {
	models.Entry

	// Folded is the folded head.
	Folded string
	// Content is the folded head, body and notes, padded with spaces so
	// whole-word lookups can search for " word ".
	Content string
	// Created is On parsed; zero if On is malformed.
	Created time.Time
}

func newRecord(e *models.Entry) *Record {
	r := &Record{Entry: *e.Clone()}
	if r.Votes == nil {
		r.Votes = map[string]int{}
	}
	if r.Scope == "" {
		r.Scope = DefaultScope
	}
	if len(e.Comments) > 0 && len(e.Notes) == 0 {
		r.Notes = append([]models.Note(nil), e.Comments...)
	}
	if r.Notes == nil {
		r.Notes = []models.Note{}
	}
	r.Score = r.Tally()
	r.Created, _ = time.Parse(time.RFC3339, r.On)
	r.Folded = normalize.Fold(r.Head)

	notes := make([]string, len(r.Notes))
	for i, n := range r.Notes {
		notes[i] = n.Content
	}
	r.Content = normalize.Fold(" " + r.Head + " " + r.Body + " " + strings.Join(notes, " ") + " ")
	return r
}

// Cache is the in-memory entry table: an ordered sequence of records plus
// an id -> position index.
type Cache struct {
	mu    sync.RWMutex
	order []*Record
	slots map[string]int
}

// Build denormalizes every entry of d, migrating legacy records on the way.
// Records are ordered by creation time, then id.
func Build(d models.Dataset) *Cache {
	c := &Cache{
		order: make([]*Record, 0, len(d.Entries)),
		slots: make(map[string]int, len(d.Entries)),
	}
	for id, e := range d.Entries {
		if e == nil {
			continue
		}
		r := newRecord(e)
		r.ID = id
		c.order = append(c.order, r)
	}
	slices.SortFunc(c.order, func(a, b *Record) int {
		return cmp.Or(a.Created.Compare(b.Created), cmp.Compare(a.ID, b.ID))
	})
	c.reindex(0)
	return c
}

func (c *Cache) reindex(from int) {
	for i := from; i < len(c.order); i++ {
		c.slots[c.order[i].ID] = i
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Insert appends e. It reports false if the id is already taken.
func (c *Cache) Insert(e *models.Entry) bool {
	r := newRecord(e)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.slots[r.ID]; ok {
		return false
	}
	c.order = append(c.order, r)
	c.slots[r.ID] = len(c.order) - 1
	return true
}

// Remove deletes the entry with the given id.
func (c *Cache) Remove(id string) bool {
	return c.RemoveIf(id, nil) == nil
}

// RemoveIf deletes the entry with the given id if check, run under the
// write lock, returns nil. It returns ErrMissing for an unknown id and
// check's error otherwise.
func (c *Cache) RemoveIf(id string, check func(*Record) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.slots[id]
	if !ok {
		return ErrMissing
	}
	if check != nil {
		if err := check(c.order[i]); err != nil {
			return err
		}
	}
	c.order = slices.Delete(c.order, i, i+1)
	delete(c.slots, id)
	c.reindex(i)
	return nil
}

// Get returns a copy of the entry with the given id.
func (c *Cache) Get(id string) (*models.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.slots[id]
	if !ok {
		return nil, false
	}
	return c.order[i].Entry.Clone(), true
}

// View runs fn over the ordered records while holding the read lock. fn
// must not retain or modify the records.
func (c *Cache) View(fn func(records []*Record)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.order)
}

// Vote records user's vote on an entry and adjusts its score by the
// difference with the user's previous vote.
func (c *Cache) Vote(id, user string, v int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.slots[id]
	if !ok {
		return false
	}
	r := c.order[i]
	old := r.Votes[user]
	r.Votes[user] = v
	r.Score += v - old
	return true
}

// AddNote appends a note to an entry and makes it searchable.
func (c *Cache) AddNote(id string, n models.Note) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.slots[id]
	if !ok {
		return false
	}
	r := c.order[i]
	r.Notes = append(r.Notes, n)
	r.Content += normalize.Fold(n.Content) + " "
	return true
}

// Snapshot returns a deep copy of the cache as a persistable dataset.
func (c *Cache) Snapshot() models.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := models.Dataset{Entries: make(map[string]*models.Entry, len(c.order))}
	for _, r := range c.order {
		d.Entries[r.ID] = r.Entry.Clone()
	}
	d.Count = len(d.Entries)
	return d
}
