// Package models defines the domain types for Glossa.
package models

import "time"

// TimeLayout is the on-disk format of entry and note timestamps.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Stamp formats t the way entries store their creation time.
func Stamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Note is an annotation appended to an entry.
type Note struct {
	On      string `json:"on" yaml:"on" msgpack:"on"`
	Content string `json:"content" yaml:"content" msgpack:"content"`
	By      string `json:"by" yaml:"by" msgpack:"by"`
}

// Entry is a dictionary headword record.
//
// ID and Score are not persisted: the dataset keys entries by id and the
// score is always recomputed from Votes.
type Entry struct {
	ID    string         `json:"id" yaml:"-" msgpack:"-"`
	Head  string         `json:"head" yaml:"head" msgpack:"head"`
	Body  string         `json:"body" yaml:"body" msgpack:"body"`
	By    string         `json:"by" yaml:"by" msgpack:"by"`
	Scope string         `json:"scope" yaml:"scope" msgpack:"scope"`
	On    string         `json:"on" yaml:"on" msgpack:"on"`
	Notes []Note         `json:"notes" yaml:"notes" msgpack:"notes"`
	Votes map[string]int `json:"votes" yaml:"votes" msgpack:"votes"`
	Score int            `json:"score" yaml:"-" msgpack:"-"`

	// Comments is the legacy name of Notes, only ever read.
	Comments []Note `json:"-" yaml:"comments,omitempty" msgpack:"comments,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Notes = append([]Note(nil), e.Notes...)
	c.Votes = make(map[string]int, len(e.Votes))
	for k, v := range e.Votes {
		c.Votes[k] = v
	}
	c.Comments = nil
	return &c
}

// Tally returns the sum of all votes.
func (e *Entry) Tally() int {
	n := 0
	for _, v := range e.Votes {
		n += v
	}
	return n
}

// Dataset is the persisted dictionary table.
type Dataset struct {
	Entries map[string]*Entry `json:"entries" yaml:"entries" msgpack:"entries"`
	Count   int               `json:"count" yaml:"count" msgpack:"count"`
}

// NewDataset returns the empty dictionary used when nothing is on disk yet.
func NewDataset() Dataset {
	return Dataset{Entries: map[string]*Entry{}}
}

// Session is an active login token record. Last is the unix time of its
// last use in milliseconds.
type Session struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	Last int64  `json:"last" yaml:"last" msgpack:"last"`

	form sessionForm
}

// Accounts holds credential hashes and session tokens. Glossa only persists
// it; issuing and checking credentials happens elsewhere.
type Accounts struct {
	Hashes map[string]string  `json:"hashes" yaml:"hashes" msgpack:"hashes"`
	Tokens map[string]Session `json:"tokens" yaml:"tokens" msgpack:"tokens"`
}

// NewAccounts returns empty account material.
func NewAccounts() Accounts {
	return Accounts{Hashes: map[string]string{}, Tokens: map[string]Session{}}
}

// Prune brings the session table up to date at startup. Legacy sessions
// stored as a bare user name become {name, last: now}. Sessions that could
// not be decoded, and those whose last use is not strictly in the past, are
// dropped. It returns how many sessions were migrated and dropped.
func (a *Accounts) Prune(now time.Time) (migrated, dropped int) {
	ms := now.UnixMilli()
	for token, sess := range a.Tokens {
		switch {
		case sess.form == sessionLegacy:
			a.Tokens[token] = Session{Name: sess.Name, Last: ms}
			migrated++
		case sess.form == sessionInvalid || sess.Last >= ms:
			delete(a.Tokens, token)
			dropped++
		}
	}
	return migrated, dropped
}

// Snapshot is the unit written by point-in-time backups.
type Snapshot struct {
	Dict     Dataset  `json:"dict" yaml:"dict" msgpack:"dict"`
	Accounts Accounts `json:"accounts" yaml:"accounts" msgpack:"accounts"`
}

// View is an entry as presented to a requesting user: votes are replaced by
// the user's own vote and search-only fields are absent.
type View struct {
	ID    string `json:"id"`
	Head  string `json:"head"`
	Body  string `json:"body"`
	By    string `json:"by"`
	Scope string `json:"scope"`
	On    string `json:"on"`
	Notes []Note `json:"notes"`
	Score int    `json:"score"`
	Vote  *int   `json:"vote,omitempty"`
}

// Present builds the view of e for user. An empty user gets no vote field.
func Present(e *Entry, user string) View {
	v := View{
		ID:    e.ID,
		Head:  e.Head,
		Body:  e.Body,
		By:    e.By,
		Scope: e.Scope,
		On:    e.On,
		Notes: append([]Note{}, e.Notes...),
		Score: e.Score,
	}
	if user != "" {
		own := e.Votes[user]
		v.Vote = &own
	}
	return v
}
