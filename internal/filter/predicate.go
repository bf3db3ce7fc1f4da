package filter

import (
	"errors"
	"fmt"
	"strings"

	"toperty/server/internal/models"
)

// ErrInvalidFilter marks caller input that cannot be turned into a predicate.
var ErrInvalidFilter = errors.New("invalid filter")

// Dialect selects the SQL fragments that differ between stores.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// numericText returns a boolean SQL expression true when column holds a
// non-empty string of ASCII digits.
func (d Dialect) numericText(column string) string {
	if d == Postgres {
		return fmt.Sprintf("%s ~ '^[0-9]+$'", column)
	}
	return fmt.Sprintf("(%[1]s <> '' AND %[1]s NOT GLOB '*[^0-9]*')", column)
}

// Predicate is one condition over a property. Match and SQL must select the
// same rows.
type Predicate interface {
	Match(p *models.Property) bool
	SQL(d Dialect) (string, []interface{})
}

type predicate struct {
	match func(p *models.Property) bool
	sql   func(d Dialect) (string, []interface{})
}

func (f predicate) Match(p *models.Property) bool        { return f.match(p) }
func (f predicate) SQL(d Dialect) (string, []interface{}) { return f.sql(d) }

func newPredicate(match func(*models.Property) bool, sql func(Dialect) (string, []interface{})) Predicate {
	return predicate{match: match, sql: sql}
}

// static builds a predicate whose SQL does not depend on the dialect.
func static(match func(*models.Property) bool, query string, args ...interface{}) Predicate {
	return newPredicate(match, func(Dialect) (string, []interface{}) { return query, args })
}

type anyOf []Predicate

func (a anyOf) Match(p *models.Property) bool {
	for _, pr := range a {
		if pr.Match(p) {
			return true
		}
	}
	return false
}

func (a anyOf) SQL(d Dialect) (string, []interface{}) {
	return joinSQL(d, []Predicate(a), " OR ")
}

type allOf []Predicate

func (a allOf) Match(p *models.Property) bool {
	for _, pr := range a {
		if !pr.Match(p) {
			return false
		}
	}
	return true
}

func (a allOf) SQL(d Dialect) (string, []interface{}) {
	return joinSQL(d, []Predicate(a), " AND ")
}

func joinSQL(d Dialect, preds []Predicate, sep string) (string, []interface{}) {
	parts := make([]string, 0, len(preds))
	var args []interface{}
	for _, pr := range preds {
		q, a := pr.SQL(d)
		parts = append(parts, "("+q+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args
}

func compact(preds []Predicate) []Predicate {
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Or combines predicates with OR, ignoring nils. It returns nil when nothing
// is left.
func Or(preds ...Predicate) Predicate {
	preds = compact(preds)
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return anyOf(preds)
}

// And combines predicates with AND, ignoring nils.
func And(preds ...Predicate) Predicate {
	preds = compact(preds)
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return allOf(preds)
}

// Set is the per-request filter set. Predicates on distinct attributes are
// ANDed; each builder already ORs the values chosen for its attribute.
type Set struct {
	preds []Predicate
}

// Add appends p unless it is nil.
func (s *Set) Add(p Predicate) {
	if p != nil {
		s.preds = append(s.preds, p)
	}
}

// With returns a copy of s with p added.
func (s Set) With(p Predicate) Set {
	out := Set{preds: make([]Predicate, len(s.preds), len(s.preds)+1)}
	copy(out.preds, s.preds)
	out.Add(p)
	return out
}

func (s Set) Len() int { return len(s.preds) }

func (s Set) Match(p *models.Property) bool {
	return allOf(s.preds).Match(p)
}

// SQL renders the set as a WHERE expression; empty when the set is empty.
func (s Set) SQL(d Dialect) (string, []interface{}) {
	if len(s.preds) == 0 {
		return "", nil
	}
	return allOf(s.preds).SQL(d)
}
