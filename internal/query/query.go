package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/glossa/internal/cache"
)

// Query is a compiled search string.
type Query struct {
	// Terms are ordered by ascending heaviness.
	Terms []Term
	// Bare holds the folded text of the top-level free-text terms, used
	// for ranking.
	Bare []string
}

// Compile parses every whitespace separated term of raw. Terms matching
// everything are dropped, so a blank query matches every record.
func Compile(raw string) Query {
	var q Query
	for _, f := range strings.Fields(raw) {
		t := Parse(f)
		if t.Kind == Any {
			continue
		}
		q.Terms = append(q.Terms, t)
	}
	slices.SortStableFunc(q.Terms, func(a, b Term) int {
		return cmp.Compare(a.Heaviness, b.Heaviness)
	})
	for _, t := range q.Terms {
		if t.Kind == Text {
			q.Bare = append(q.Bare, t.Value)
		}
	}
	return q
}

// Match reports whether r satisfies every term.
func (q Query) Match(r *cache.Record) bool {
	for _, t := range q.Terms {
		if !t.Match(r) {
			return false
		}
	}
	return true
}

// Filter returns the records matching every term, in their original
// order. The input slice is left untouched.
func (q Query) Filter(records []*cache.Record) []*cache.Record {
	out := slices.Clone(records)
	for _, t := range q.Terms {
		out = slices.DeleteFunc(out, func(r *cache.Record) bool { return !t.Match(r) })
	}
	return out
}

func (q Query) String() string {
	parts := make([]string, len(q.Terms))
	for i, t := range q.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}
