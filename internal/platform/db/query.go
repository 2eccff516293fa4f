package db

import (
	"fmt"
	"strconv"
	"strings"
)

// SearchQuery assembles a parameterized SELECT from structured filters.
// Clauses are written with "?" placeholders, which are renumbered to $n in
// the order they are added, so callers never build positional SQL by hand.
type SearchQuery struct {
	from    string
	cols    string
	where   strings.Builder
	args    []interface{}
	orderBy string
	suffix  string
}

// NewSearchQuery starts a query over from (a table, or a table with joins).
func NewSearchQuery(from, cols string) *SearchQuery {
	return &SearchQuery{from: from, cols: cols}
}

// Where appends "AND clause". Each "?" in clause consumes one arg.
func (q *SearchQuery) Where(clause string, args ...interface{}) *SearchQuery {
	if n := strings.Count(clause, "?"); n != len(args) {
		panic(fmt.Sprintf("db: clause %q has %d placeholders but %d args", clause, n, len(args)))
	}
	var b strings.Builder
	i := 0
	for _, r := range clause {
		if r == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(q.args) + i + 1))
			i++
			continue
		}
		b.WriteRune(r)
	}
	q.where.WriteString(" AND ")
	q.where.WriteString(b.String())
	q.args = append(q.args, args...)
	return q
}

// Eq appends "column = value".
func (q *SearchQuery) Eq(column string, value interface{}) *SearchQuery {
	return q.Where(column+" = ?", value)
}

// False appends a clause that matches nothing.
func (q *SearchQuery) False() *SearchQuery {
	q.where.WriteString(" AND FALSE")
	return q
}

// OrderBy sets the ORDER BY clause (without the keyword).
func (q *SearchQuery) OrderBy(orderBy string) *SearchQuery {
	q.orderBy = orderBy
	return q
}

// Suffix appends a trailing clause such as "FOR UPDATE OF r".
func (q *SearchQuery) Suffix(s string) *SearchQuery {
	q.suffix = s
	return q
}

// Args returns the bound arguments in placeholder order.
func (q *SearchQuery) Args() []interface{} {
	return q.args
}

func (q *SearchQuery) base(cols string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", cols, q.from, q.where.String())
}

// CountSQL returns the count query. It uses Args().
func (q *SearchQuery) CountSQL() string {
	return q.base("COUNT(*)")
}

// SelectSQL returns the unpaged data query. It uses Args().
func (q *SearchQuery) SelectSQL() string {
	sql := q.base(q.cols)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	if q.suffix != "" {
		sql += " " + q.suffix
	}
	return sql
}

// DataSQL returns the paged data query. It uses DataArgs.
func (q *SearchQuery) DataSQL() string {
	sql := q.base(q.cols)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	n := len(q.args)
	return sql + fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
}

// DataArgs returns Args() followed by limit and offset.
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args), len(q.args)+2)
	copy(result, q.args)
	return append(result, limit, offset)
}
