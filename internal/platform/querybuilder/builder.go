package querybuilder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// writer accumulates SQL text and positional ($n) arguments.
type writer struct {
	buf  *bytebufferpool.ByteBuffer
	args []any
}

func newWriter() *writer {
	return &writer{buf: bytebufferpool.Get()}
}

func (w *writer) str(parts ...string) {
	for _, p := range parts {
		_, _ = w.buf.WriteString(p)
	}
}

func (w *writer) bind(v any) {
	w.args = append(w.args, v)
	w.str("$", strconv.Itoa(len(w.args)))
}

// expr writes raw SQL, binding each '?' to the next value in order.
func (w *writer) expr(sql string, values []any) {
	next := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' && next < len(values) {
			w.bind(values[next])
			next++
			continue
		}
		_ = w.buf.WriteByte(sql[i])
	}
}

func (w *writer) where(conds []Condition) {
	for i, c := range conds {
		if i == 0 {
			w.str(" WHERE ")
		} else {
			w.str(" AND ")
		}
		c.write(w)
	}
}

func (w *writer) finish() (string, []any) {
	out := w.buf.String()
	bytebufferpool.Put(w.buf)
	return out, w.args
}

type Condition interface {
	write(w *writer)
}

type condFunc func(w *writer)

func (f condFunc) write(w *writer) { f(w) }

func Eq(column string, value any) Condition {
	return condFunc(func(w *writer) {
		w.str(column, " = ")
		w.bind(value)
	})
}

// In renders "1=0" for an empty list so the query stays valid.
func In(column string, values []any) Condition {
	return condFunc(func(w *writer) {
		if len(values) == 0 {
			w.str("1=0")
			return
		}
		w.str(column, " IN (")
		for i, v := range values {
			if i > 0 {
				w.str(", ")
			}
			w.bind(v)
		}
		w.str(")")
	})
}

func IsNull(column string) Condition {
	return condFunc(func(w *writer) { w.str(column, " IS NULL") })
}

func IsNotNull(column string) Condition {
	return condFunc(func(w *writer) { w.str(column, " IS NOT NULL") })
}

// Expr is a raw predicate with '?' markers for args.
func Expr(sql string, args ...any) Condition {
	return condFunc(func(w *writer) { w.expr(sql, args) })
}

type SelectBuilder struct {
	columns []string
	table   string
	joins   []string
	where   []Condition
	orderBy []string
	limit   int
	suffix  string
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

// Join appends a join clause verbatim, e.g. "JOIN matches m ON m.id = g.match_id".
func (b *SelectBuilder) Join(clause string) *SelectBuilder {
	b.joins = append(b.joins, strings.TrimSpace(clause))
	return b
}

func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

// Suffix is appended last, e.g. "FOR UPDATE".
func (b *SelectBuilder) Suffix(sql string) *SelectBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, errors.New("select columns are required")
	}
	if strings.TrimSpace(b.table) == "" {
		return "", nil, errors.New("select table is required")
	}

	w := newWriter()
	w.str("SELECT ", strings.Join(b.columns, ", "), " FROM ", b.table)
	for _, j := range b.joins {
		w.str(" ", j)
	}
	w.where(b.where)
	if len(b.orderBy) > 0 {
		w.str(" ORDER BY ", strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		w.str(" LIMIT ", strconv.Itoa(b.limit))
	}
	if b.suffix != "" {
		w.str(" ", b.suffix)
	}

	query, args := w.finish()
	return query, args, nil
}

type InsertBuilder struct {
	table   string
	columns []string
	rows    [][]any
	suffix  string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// Suffix holds ON CONFLICT / RETURNING clauses.
func (b *InsertBuilder) Suffix(sql string) *InsertBuilder {
	b.suffix = strings.TrimSpace(sql)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	switch {
	case strings.TrimSpace(b.table) == "":
		return "", nil, errors.New("insert table is required")
	case len(b.columns) == 0:
		return "", nil, errors.New("insert columns are required")
	case len(b.rows) == 0:
		return "", nil, errors.New("insert values are required")
	}

	w := newWriter()
	w.str("INSERT INTO ", b.table, " (", strings.Join(b.columns, ", "), ") VALUES ")
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			bytebufferpool.Put(w.buf)
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", i, len(row), len(b.columns))
		}
		if i > 0 {
			w.str(", ")
		}
		w.str("(")
		for j, v := range row {
			if j > 0 {
				w.str(", ")
			}
			w.bind(v)
		}
		w.str(")")
	}
	if b.suffix != "" {
		w.str(" ", b.suffix)
	}

	query, args := w.finish()
	return query, args, nil
}

type assignment struct {
	column string
	sql    string
	args   []any
}

type UpdateBuilder struct {
	table string
	sets  []assignment
	where []Condition
}

func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, sql: "?", args: []any{value}})
	return b
}

// SetExpr assigns a raw expression, e.g. SetExpr("version", "version + 1").
func (b *UpdateBuilder) SetExpr(column, sql string, args ...any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, sql: sql, args: args})
	return b
}

func (b *UpdateBuilder) Where(conditions ...Condition) *UpdateBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *UpdateBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, errors.New("update table is required")
	}
	if len(b.sets) == 0 {
		return "", nil, errors.New("update sets are required")
	}

	w := newWriter()
	w.str("UPDATE ", b.table, " SET ")
	for i, s := range b.sets {
		if i > 0 {
			w.str(", ")
		}
		w.str(s.column, " = ")
		w.expr(s.sql, s.args)
	}
	w.where(b.where)

	query, args := w.finish()
	return query, args, nil
}
