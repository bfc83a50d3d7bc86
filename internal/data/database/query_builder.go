// Package database builds parameterized SELECT statements with sanitized
// identifiers for the repositories in internal/data.
package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

type ConditionType string

const (
	Equal       ConditionType = "="
	NotEqual    ConditionType = "!="
	GreaterThan ConditionType = ">"
	LessThan    ConditionType = "<"
	// Any matches field against a Postgres array bound as one parameter.
	Any    ConditionType = "ANY"
	IsNull ConditionType = "IS NULL"

	noLimit = -1
)

type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

// WhereCond builds a condition on field. Value is ignored for IsNull. It
// panics on an empty field or an unknown condition type.
func WhereCond(field string, condType ConditionType, value any) Condition {
	c := Condition{Field: field, Type: condType, Value: value}
	c.mustBeValid()
	return c
}

// mustBeValid panics rather than letting a malformed condition drop out of
// the WHERE clause and widen the result set.
func (c Condition) mustBeValid() {
	if strings.TrimSpace(c.Field) == "" {
		panic("database: condition has an empty field")
	}
	switch c.Type {
	case Equal, NotEqual, GreaterThan, LessThan, Any, IsNull:
	default:
		panic(fmt.Sprintf("database: unsupported condition type %q on %s", string(c.Type), c.Field))
	}
}

type ListQueryOptions struct {
	Table      string
	Columns    []string
	Conditions []Condition
	OrderBy    string
	OrderDir   string
	Limit      int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table, Limit: noLimit}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) { o.Columns = cols }
}

// WithCondition adds a single condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) { o.Conditions = append(o.Conditions, cond) }
}

// WithOrderBy sets the ordering column and direction.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

// WithLimit sets the limit. Accepts 0.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// WithKeyset adds "column > after" when after is non-nil, orders by column
// ascending and limits the page. It is the query shape behind every cursor
// page fetch.
func WithKeyset(column string, after *int64, limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if after != nil {
			o.Conditions = append(o.Conditions, WhereCond(column, GreaterThan, *after))
		}
		o.OrderBy = column
		o.OrderDir = "ASC"
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// sanitizeQualifiedIdentifier quotes identifiers like "table.column" part by part.
func sanitizeQualifiedIdentifier(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

func buildSelectClause(options *ListQueryOptions) string {
	if len(options.Columns) == 0 {
		return "SELECT * "
	}
	cols := make([]string, len(options.Columns))
	for i, c := range options.Columns {
		cols[i] = sanitizeQualifiedIdentifier(c)
	}
	return "SELECT " + strings.Join(cols, ", ") + " "
}

// buildWhereClause renders conditions joined by AND.
func buildWhereClause(conds []Condition) (string, []any) {
	parts := make([]string, 0, len(conds))
	args := []any{}
	for _, c := range conds {
		c.mustBeValid()
		field := sanitizeQualifiedIdentifier(c.Field)
		switch c.Type {
		case IsNull:
			parts = append(parts, field+" IS NULL")
		case Any:
			args = append(args, c.Value)
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", field, len(args)))
		case Equal, NotEqual, GreaterThan, LessThan:
			args = append(args, c.Value)
			parts = append(parts, fmt.Sprintf("%s %s $%d", field, c.Type, len(args)))
		}
	}
	if len(parts) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(parts, " AND "), args
}

// BuildListQuery constructs a SQL query string and arguments from options.
//
//	query, args := BuildListQuery(NewListQueryOptions("items",
//		WithColumns("id", "lot_id"),
//		WithCondition(WhereCond("lot_id", Any, []int64{1, 2})),
//		WithKeyset("id", &after, 1000),
//	))
//	// SELECT "id", "lot_id" FROM "items" WHERE "lot_id" = ANY($1) AND "id" > $2 ORDER BY "id" ASC LIMIT $3
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var q strings.Builder
	q.WriteString(buildSelectClause(options))
	q.WriteString("FROM ")
	q.WriteString(sanitizeQualifiedIdentifier(options.Table))

	where, args := buildWhereClause(options.Conditions)
	if where != "" {
		q.WriteString(" ")
		q.WriteString(where)
	}

	if options.OrderBy != "" {
		q.WriteString(" ORDER BY ")
		q.WriteString(sanitizeQualifiedIdentifier(options.OrderBy))
		if dir := strings.ToUpper(options.OrderDir); dir == "ASC" || dir == "DESC" {
			q.WriteString(" ")
			q.WriteString(dir)
		}
	}
	if options.Limit != noLimit {
		args = append(args, options.Limit)
		q.WriteString(" LIMIT $")
		q.WriteString(strconv.Itoa(len(args)))
	}
	return q.String(), args
}
