// Package query implements the structured, composable SELECT builder used
// both for application-issued reactive queries and for view definitions.
// Builder methods return the *Select for chaining; Build renders it to a SQL
// string plus a positional parameter vector. Nothing here touches a
// database connection.
package query

import (
	"fmt"
	"strings"

	"github.com/graknol/declarative-sqlite/internal/schema"
)

// ColumnRefKind classifies a projected column expression.
type ColumnRefKind int

const (
	ColSimple ColumnRefKind = iota
	ColQualified
	ColWildcard
	ColAggregate
	ColExpression
)

// ColumnRef is one projected column in a SELECT list.
type ColumnRef struct {
	Kind     ColumnRefKind
	Table    string // qualifier, for ColQualified
	Name     string // column or function name
	Expr     string // raw SQL fragment, for ColExpression/ColAggregate args
	Alias    string
	Distinct bool // for ColAggregate, e.g. COUNT(DISTINCT x)
}

func (c ColumnRef) render() string {
	var base string
	switch c.Kind {
	case ColWildcard:
		if c.Table != "" {
			base = c.Table + ".*"
		} else {
			base = "*"
		}
	case ColQualified:
		base = c.Table + "." + c.Name
	case ColAggregate:
		arg := c.Expr
		if c.Distinct {
			arg = "DISTINCT " + arg
		}
		base = fmt.Sprintf("%s(%s)", c.Name, arg)
	case ColExpression:
		base = c.Expr
	default:
		base = c.Name
	}
	if c.Alias != "" {
		return base + " AS " + c.Alias
	}
	return base
}

// JoinKind classifies a join clause.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
)

func (k JoinKind) sql() string {
	switch k {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	default:
		return "JOIN"
	}
}

// FromSource is a table name, an aliased table, or an inline subquery.
type FromSource struct {
	Table    string
	Alias    string
	Subquery *Select
}

func (f FromSource) render(params *[]any) (string, error) {
	if f.Subquery != nil {
		sub, subParams, err := f.Subquery.Build()
		if err != nil {
			return "", err
		}
		*params = append(*params, subParams...)
		out := "(" + sub + ")"
		if f.Alias != "" {
			out += " AS " + f.Alias
		}
		return out, nil
	}
	out := f.Table
	if f.Alias != "" {
		out += " AS " + f.Alias
	}
	return out, nil
}

// Join is one JOIN clause.
type Join struct {
	Kind JoinKind
	From FromSource
	On   Predicate
}

// Select is a fully structured SELECT statement.
type Select struct {
	columns    []ColumnRef
	from       FromSource
	joins      []Join
	where      Predicate
	groupBy    []string
	having     Predicate
	orderBy    []OrderTerm
	limit      *int
	offset     *int
	forUpdate  string // non-empty marks this view writable against the named base table
}

// NewSelect starts a new query builder.
func NewSelect() *Select { return &Select{} }

func (s *Select) Select(cols ...ColumnRef) *Select {
	s.columns = append(s.columns, cols...)
	return s
}

func (s *Select) From(table string) *Select {
	s.from = FromSource{Table: table}
	return s
}

func (s *Select) FromAliased(table, alias string) *Select {
	s.from = FromSource{Table: table, Alias: alias}
	return s
}

func (s *Select) FromSubquery(sub *Select, alias string) *Select {
	s.from = FromSource{Subquery: sub, Alias: alias}
	return s
}

func (s *Select) Join(kind JoinKind, table string, on Predicate) *Select {
	s.joins = append(s.joins, Join{Kind: kind, From: FromSource{Table: table}, On: on})
	return s
}

func (s *Select) JoinAliased(kind JoinKind, table, alias string, on Predicate) *Select {
	s.joins = append(s.joins, Join{Kind: kind, From: FromSource{Table: table, Alias: alias}, On: on})
	return s
}

func (s *Select) Where(p Predicate) *Select {
	s.where = p
	return s
}

func (s *Select) GroupBy(cols ...string) *Select {
	s.groupBy = append(s.groupBy, cols...)
	return s
}

func (s *Select) Having(p Predicate) *Select {
	s.having = p
	return s
}

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Column string
	Desc   bool
}

func (s *Select) OrderBy(col string, desc bool) *Select {
	s.orderBy = append(s.orderBy, OrderTerm{Column: col, Desc: desc})
	return s
}

func (s *Select) Limit(n int) *Select {
	s.limit = &n
	return s
}

func (s *Select) Offset(n int) *Select {
	s.offset = &n
	return s
}

// ForUpdate marks this select CRUD-enabled when used as a view's
// projection: writes through the resulting view are routed to targetTable.
func (s *Select) ForUpdate(targetTable string) *Select {
	s.forUpdate = targetTable
	return s
}

// ForUpdateTarget returns the table writes are routed to, or "" if this
// query is not marked writable.
func (s *Select) ForUpdateTarget() string { return s.forUpdate }

// The accessors below expose the builder's internal shape read-only, for
// the dependency analyzer to walk without this package needing to know
// anything about scoped name resolution.

func (s *Select) Columns() []ColumnRef    { return s.columns }
func (s *Select) FromClause() FromSource  { return s.from }
func (s *Select) Joins() []Join           { return s.joins }
func (s *Select) WhereClause() Predicate  { return s.where }
func (s *Select) GroupByCols() []string   { return s.groupBy }
func (s *Select) HavingClause() Predicate { return s.having }
func (s *Select) OrderByTerms() []OrderTerm { return s.orderBy }

// AliasOrTable returns the alias if set, otherwise the table name.
func (f FromSource) AliasOrTable() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Table
}

// IsSubquery reports whether this source is an inline subquery.
func (f FromSource) IsSubquery() bool { return f.Subquery != nil }

// SubquerySelect returns the inline subquery, or nil.
func (f FromSource) SubquerySelect() *Select { return f.Subquery }

// Build renders the statement to parameterized SQL using "?" placeholders
// and returns the matching positional parameter vector.
func (s *Select) Build() (string, []any, error) {
	var params []any
	sql, err := s.render(&params)
	return sql, params, err
}

// RenderSQL implements schema.ProjectionBuilder. resolve is accepted for
// interface compatibility and is not called; column/table existence is not
// validated here.
func (s *Select) RenderSQL(resolve func(table string) (*schema.Table, bool)) (string, error) {
	var params []any
	return s.render(&params)
}

func (s *Select) render(params *[]any) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		parts := make([]string, len(s.columns))
		for i, c := range s.columns {
			parts[i] = c.render()
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	fromSQL, err := s.from.render(params)
	if err != nil {
		return "", err
	}
	if fromSQL == "" {
		return "", fmt.Errorf("query: select has no FROM source")
	}
	b.WriteString(" FROM ")
	b.WriteString(fromSQL)

	for _, j := range s.joins {
		joinSQL, err := j.From.render(params)
		if err != nil {
			return "", err
		}
		onSQL, err := j.On.render(params)
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(j.Kind.sql())
		b.WriteString(" ")
		b.WriteString(joinSQL)
		b.WriteString(" ON ")
		b.WriteString(onSQL)
	}

	if s.where != nil {
		whereSQL, err := s.where.render(params)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(whereSQL)
	}

	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(s.groupBy, ", "))
	}

	if s.having != nil {
		havingSQL, err := s.having.render(params)
		if err != nil {
			return "", err
		}
		b.WriteString(" HAVING ")
		b.WriteString(havingSQL)
	}

	if len(s.orderBy) > 0 {
		parts := make([]string, len(s.orderBy))
		for i, o := range s.orderBy {
			if o.Desc {
				parts[i] = o.Column + " DESC"
			} else {
				parts[i] = o.Column + " ASC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(parts, ", "))
	}

	if s.limit != nil {
		b.WriteString(fmt.Sprintf(" LIMIT %d", *s.limit))
	}
	if s.offset != nil {
		b.WriteString(fmt.Sprintf(" OFFSET %d", *s.offset))
	}

	return b.String(), nil
}
