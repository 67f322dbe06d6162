// Package query compiles search strings into filter term trees.
//
// A query is a whitespace separated list of terms that must all match.
// Each term parses into a Term carrying a heaviness: a rough cost used to
// run the most selective filters first.
package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/glossa/internal/cache"
	"github.com/starford/glossa/internal/normalize"
)

// Kind tags the variant a Term holds.
type Kind int

const (
	// Any matches everything. Top-level Any terms are dropped.
	Any Kind = iota
	Or
	Not
	And
	ID
	User
	Scope
	Arity
	Text
)

var kindNames = [...]string{"any", "or", "not", "and", "id", "user", "scope", "arity", "text"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

const (
	textHeaviness  = 255
	arityHeaviness = 5
	userHeaviness  = 0
)

var (
	idTerm    = regexp.MustCompile(`^id:([0-9A-Za-z_-]{6,})$`)
	userTerm  = regexp.MustCompile(`^user:([A-Za-z]{1,16})$`)
	scopeTerm = regexp.MustCompile(`^scope:([a-z-]+)$`)
	arityTerm = regexp.MustCompile(`^arity:([0-9]+)$`)
	clauseSep = regexp.MustCompile(`[;.]`)

	sigils = strings.NewReplacer("#", "id:", "@", "user:", "/", "arity:")
)

// Term is one node of a compiled query.
type Term struct {
	Kind      Kind
	Heaviness float64
	// Value is the id, author, scope or folded text to match.
	Value string
	// N is the arity to match. Out of range numbers parse as -2, which no
	// body has.
	N        int
	Children []Term
}

// Parse compiles a single term. It never fails: anything that is not
// recognized syntax is free text.
func Parse(s string) Term {
	if strings.Contains(s, "|") {
		parts := strings.Split(s, "|")
		t := Term{Kind: Or, Children: make([]Term, len(parts))}
		h := math.Inf(-1)
		for i, p := range parts {
			t.Children[i] = Parse(p)
			h = max(h, t.Children[i].Heaviness)
		}
		t.Heaviness = 1 + h
		return t
	}

	if rest, ok := strings.CutPrefix(s, "!"); ok {
		c := Parse(rest)
		return Term{Kind: Not, Heaviness: c.Heaviness + 1, Children: []Term{c}}
	}

	if strings.ContainsAny(s, "#@/") {
		parts := splitSigils(s)
		t := Term{Kind: And, Children: make([]Term, len(parts)), Heaviness: 1}
		for i, p := range parts {
			t.Children[i] = Parse(sigils.Replace(p))
			t.Heaviness += t.Children[i].Heaviness
		}
		return t
	}

	if m := idTerm.FindStringSubmatch(s); m != nil {
		return Term{Kind: ID, Heaviness: math.Inf(-1), Value: m[1]}
	}
	if m := userTerm.FindStringSubmatch(s); m != nil {
		return Term{Kind: User, Heaviness: userHeaviness, Value: m[1]}
	}
	if m := scopeTerm.FindStringSubmatch(s); m != nil {
		return Term{Kind: Scope, Heaviness: math.Inf(-1), Value: m[1]}
	}
	if m := arityTerm.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = -2
		}
		return Term{Kind: Arity, Heaviness: arityHeaviness, N: n}
	}

	folded := normalize.Fold(s)
	if normalize.Blank(folded) {
		return Term{Kind: Any, Heaviness: math.Inf(1)}
	}
	return Term{Kind: Text, Heaviness: textHeaviness, Value: folded}
}

// splitSigils cuts s before every sigil that is not its first byte. Only
// the first sigil of each part is later expanded, so "#x@y" yields an id
// and a user clause.
func splitSigils(s string) []string {
	var parts []string
	start := 0
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '#', '@', '/':
			parts = append(parts, s[start:i])
			start = i
		}
	}
	return append(parts, s[start:])
}

// Match reports whether r satisfies t.
func (t Term) Match(r *cache.Record) bool {
	switch t.Kind {
	case Any:
		return true
	case Or:
		for _, c := range t.Children {
			if c.Match(r) {
				return true
			}
		}
		return false
	case Not:
		return !t.Children[0].Match(r)
	case And:
		for _, c := range t.Children {
			if !c.Match(r) {
				return false
			}
		}
		return true
	case ID:
		return r.ID == t.Value
	case User:
		return r.By == t.Value
	case Scope:
		return r.Scope == t.Value
	case Arity:
		return BodyArity(r.Body) == t.N
	case Text:
		return strings.Contains(r.Content, t.Value)
	default:
		return false
	}
}

// String renders t in a compact, readable form.
func (t Term) String() string {
	switch t.Kind {
	case Any:
		return "*"
	case Or, And:
		sep := " | "
		if t.Kind == And {
			sep = " & "
		}
		parts := make([]string, len(t.Children))
		for i, c := range t.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	case Not:
		return "!" + t.Children[0].String()
	case Arity:
		return "arity:" + strconv.Itoa(t.N)
	case Text:
		return strconv.Quote(t.Value)
	default:
		return fmt.Sprintf("%s:%s", t.Kind, t.Value)
	}
}

// BodyArity returns the largest number of placeholders found in a single
// clause of body, clauses being separated by ';' or '.'. A clause without
// placeholders counts -1, so a body with none at all has arity -1.
func BodyArity(body string) int {
	n := -1
	for _, clause := range clauseSep.Split(body, -1) {
		if c := strings.Count(clause, normalize.Placeholder); c > 0 {
			n = max(n, c)
		}
	}
	return n
}
