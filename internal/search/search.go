// Package search ranks the records a query selects.
package search

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/starford/glossa/internal/cache"
	"github.com/starford/glossa/internal/models"
	"github.com/starford/glossa/internal/query"
)

// Entries imported from the old dictionary rank slightly lower.
var legacyAuthors = map[string]bool{
	"oldofficial":  true,
	"oldexamples":  true,
	"oldcountries": true,
}

const week = 7 * 24 * time.Hour

// Cost scores a record against the bare terms of a query. Lower is
// better: whole-word hits, head hits, close heads, votes and freshness all
// pull an entry up.
func Cost(r *cache.Record, bare []string, now time.Time) float64 {
	var word, head bool
	var distance int
	for _, t := range bare {
		if strings.Contains(r.Content, " "+t+" ") {
			word = true
		}
		if strings.Contains(r.Folded, t) {
			head = true
			distance += levenshtein.ComputeDistance(t, r.Folded)
		}
	}

	cost := float64(distance) - 2*float64(r.Score)
	if word {
		cost -= 6
	}
	if head {
		cost -= 6
	}
	if legacyAuthors[r.By] {
		cost += 4
	}
	if !r.Created.IsZero() {
		cost += math.Exp(float64(now.Sub(r.Created)) / float64(-week))
	}
	return cost
}

// Engine answers searches and lookups against a cache.
type Engine struct {
	cache  *cache.Cache
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Engine.
func New(c *cache.Cache, logger *slog.Logger) *Engine {
	return &Engine{cache: c, logger: logger, now: time.Now}
}

type ranked struct {
	rec  *cache.Record
	cost float64
}

// Search returns the entries matching raw, best first, as seen by user.
// Entries with equal cost keep their cache order.
func (e *Engine) Search(raw, user string) []models.View {
	start := time.Now()
	q := query.Compile(raw)
	now := e.now()

	var views []models.View
	e.cache.View(func(records []*cache.Record) {
		matched := q.Filter(records)
		hits := make([]ranked, len(matched))
		for i, r := range matched {
			hits[i] = ranked{rec: r, cost: Cost(r, q.Bare, now)}
		}
		slices.SortStableFunc(hits, func(a, b ranked) int {
			return cmp.Compare(a.cost, b.cost)
		})
		views = make([]models.View, len(hits))
		for i, h := range hits {
			views[i] = models.Present(&h.rec.Entry, user)
		}
	})

	e.logger.Debug("search: query",
		slog.String("query", raw),
		slog.String("terms", q.String()),
		slog.Int("results", len(views)),
		slog.Duration("took", time.Since(start)))
	return views
}

// Lookup returns the entry with the given id as seen by user.
func (e *Engine) Lookup(id, user string) (models.View, bool) {
	entry, ok := e.cache.Get(id)
	if !ok {
		return models.View{}, false
	}
	return models.Present(entry, user), true
}
