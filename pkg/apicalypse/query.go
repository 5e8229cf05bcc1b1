// Package apicalypse builds IGDB query-language request bodies.
//
// IGDB endpoints take their filter, selection and paging as a plain-text body
// made of `;`-terminated clauses:
//
//	fields name,cover.image_id;where platforms = (6);limit 500;offset 0;sort id;
//
// Query renders the selection and filter part; the paging clauses are
// appended by the pagination package through Limit, Offset and Sort.
package apicalypse

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a builder for the selection part of a request body.
type Query struct {
	fields  []string
	exclude []string
	where   []string
	search  string
}

// New returns an empty query.
func New() *Query {
	return &Query{}
}

// Fields adds fields to the selection. Dotted paths expand sub-objects.
func (q *Query) Fields(fields ...string) *Query {
	q.fields = append(q.fields, fields...)
	return q
}

// Exclude removes fields from the selection.
func (q *Query) Exclude(fields ...string) *Query {
	q.exclude = append(q.exclude, fields...)
	return q
}

// Where adds a filter condition. Multiple conditions are joined with `&`.
func (q *Query) Where(cond string) *Query {
	cond = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cond), ";"))
	if cond != "" {
		q.where = append(q.where, cond)
	}
	return q
}

// Search sets a full-text search term.
func (q *Query) Search(term string) *Query {
	q.search = term
	return q
}

// String renders the query as request body text. An empty query renders as
// the empty string.
func (q *Query) String() string {
	var b strings.Builder
	if len(q.fields) > 0 {
		b.WriteString("fields " + strings.Join(q.fields, ",") + ";")
	}
	if len(q.exclude) > 0 {
		b.WriteString("exclude " + strings.Join(q.exclude, ",") + ";")
	}
	if len(q.where) > 0 {
		b.WriteString("where " + strings.Join(q.where, " & ") + ";")
	}
	if q.search != "" {
		b.WriteString("search " + strconv.Quote(q.search) + ";")
	}
	return b.String()
}

// Limit renders a `limit N;` clause.
func Limit(n int) string {
	return fmt.Sprintf("limit %d;", n)
}

// Offset renders an `offset N;` clause.
func Offset(n int) string {
	return fmt.Sprintf("offset %d;", n)
}

// Sort renders an ascending `sort <field>;` clause. IGDB sorts ascending when
// no direction is given.
func Sort(field string) string {
	return fmt.Sprintf("sort %s;", field)
}
