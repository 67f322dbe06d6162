package mcpserver

// SyntaxURI is the resource the query syntax reference is served under.
const SyntaxURI = "glossa://query-syntax"

// QuerySyntax describes the search query language understood by
// search_entries.
const QuerySyntax = `# Glossa Query Syntax

A query is a list of terms separated by spaces. An entry is returned only
if it matches every term.

## Terms

| Term            | Matches                                                      |
|-----------------|--------------------------------------------------------------|
| ` + "`word`" + `          | entries whose head, body or notes contain ` + "`word`" + `            |
| ` + "`id:<id>`" + `       | the entry with exactly that id                               |
| ` + "`user:<name>`" + `   | entries created by that user (1-16 Latin letters)            |
| ` + "`scope:<tag>`" + `   | entries in that language scope (` + "`[a-z-]+`" + `)                |
| ` + "`arity:<n>`" + `     | entries whose busiest clause has exactly n blanks (▯)         |
| ` + "`a\\|b`" + `          | entries matching a or b                                      |
| ` + "`!term`" + `         | entries not matching term                                    |

Shorthands can be chained without spaces: ` + "`#<id>`" + ` is ` + "`id:<id>`" + `,
` + "`@<name>`" + ` is ` + "`user:<name>`" + ` and ` + "`/<n>`" + ` is ` + "`arity:<n>`" + `. For example
` + "`kama@jan/2`" + ` finds entries mentioning kama, written by jan, taking two blanks.

Free text is matched case- and accent-insensitively. Punctuation separates
words. A term with no letters or digits left after that matches everything.

## Blanks

Write ` + "`___`" + ` in a definition for each argument the word takes; it is stored
as ▯. Clauses are separated by ` + "`;`" + ` or ` + "`.`" + `, and arity counts blanks in
the clause that has the most. A definition without blanks has arity -1.

## Ranking

Results come best first. Entries rank higher when a search word appears as a
whole word, when it appears in the headword (the closer the headword is to
the word, the better), the more votes they have and the newer they are.
Entries imported from the old dictionary rank slightly lower. Ties keep
creation order.
`
