// Package filter compiles declarative nested boolean filters into contact
// predicates. A compiled Predicate renders to a parametrized SQL fragment
// for audience-wide queries and evaluates in memory against a single
// contact; both renderings are derived from the same tree so the two call
// sites cannot diverge.
package filter

import (
	"strings"

	"github.com/dripkit/dripkit/pkg/models"
)

// Predicate is an evaluable boolean condition over a contact, produced by
// compiling a FilterGroup. Predicates are immutable and safe for reuse.
type Predicate struct {
	root node
}

// node is one compiled subtree. sql appends fragment text to the builder,
// match evaluates the same subtree against an in-memory contact.
type node struct {
	sql   func(b *sqlBuilder) string
	match func(c *models.Contact) bool
}

// SQL renders the predicate as a WHERE fragment over the contacts table
// aliased by alias. Placeholders are numbered from startArg so the fragment
// composes with surrounding query arguments.
func (p *Predicate) SQL(alias string, startArg int) (string, []any) {
	b := &sqlBuilder{alias: alias, n: startArg}

	return p.root.sql(b), b.args
}

// Match evaluates the predicate against a single contact loaded with its
// tags and properties.
func (p *Predicate) Match(c *models.Contact) bool {
	return p.root.match(c)
}

type sqlBuilder struct {
	alias string
	args  []any
	n     int
}

func (b *sqlBuilder) nextArg(value any) string {
	b.args = append(b.args, value)
	placeholder := "$" + itoa(b.n)
	b.n++

	return placeholder
}

func (b *sqlBuilder) column(name string) string {
	if b.alias == "" {
		return name
	}

	return b.alias + "." + name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	return string(digits)
}

// alwaysTrue is the compiled form of an empty group: empty leaf condition
// lists and empty composite group lists both match every contact.
func alwaysTrue() node {
	return node{
		sql:   func(*sqlBuilder) string { return "TRUE" },
		match: func(*models.Contact) bool { return true },
	}
}

// matchNothing is the compiled form of a condition that can never hold,
// such as a reference to a property key absent from the audience schema.
func matchNothing() node {
	return node{
		sql:   func(*sqlBuilder) string { return "FALSE" },
		match: func(*models.Contact) bool { return false },
	}
}

func combine(op models.GroupOperator, children []node) node {
	if len(children) == 0 {
		return alwaysTrue()
	}

	if len(children) == 1 {
		return children[0]
	}

	joiner := " AND "
	if op == models.GroupOr {
		joiner = " OR "
	}

	return node{
		sql: func(b *sqlBuilder) string {
			parts := make([]string, 0, len(children))
			for _, child := range children {
				parts = append(parts, child.sql(b))
			}

			return "(" + strings.Join(parts, joiner) + ")"
		},
		match: func(c *models.Contact) bool {
			for _, child := range children {
				matched := child.match(c)
				if op == models.GroupOr && matched {
					return true
				}

				if op != models.GroupOr && !matched {
					return false
				}
			}

			return op != models.GroupOr
		},
	}
}

// escapeLike escapes LIKE wildcards so user values match literally.
// PostgreSQL's default escape character is the backslash.
func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	return replacer.Replace(value)
}
