// Package depanalysis walks a structured query and derives the set of
// tables and columns it reads, so the reactive manager can decide which
// mutations invalidate which watches.
package depanalysis

import (
	"strings"

	"github.com/graknol/declarative-sqlite/internal/query"
	"github.com/graknol/declarative-sqlite/internal/schema"
)

// ColumnDep is one (table, column) pair a query was found to depend on.
type ColumnDep struct {
	Table  string
	Column string
}

// Dependencies is the result of analyzing a query: the tables it touches,
// the specific columns it touches (when known), and whether any part of
// the query could read any column of any touched table (e.g. SELECT *, or
// an opaque RawSQL fragment), in which case column-level dependencies
// should not be trusted for invalidation and the whole table must be
// watched.
type Dependencies struct {
	Tables   map[string]bool
	Columns  map[ColumnDep]bool
	Wildcard bool // true if some table was touched without precise column info
}

func newDependencies() *Dependencies {
	return &Dependencies{Tables: map[string]bool{}, Columns: map[ColumnDep]bool{}}
}

func (d *Dependencies) addTable(name string) {
	if name != "" {
		d.Tables[name] = true
	}
}

func (d *Dependencies) addColumn(table, column string) {
	d.addTable(table)
	d.Columns[ColumnDep{Table: table, Column: column}] = true
}

func (d *Dependencies) markWildcard(table string) {
	d.addTable(table)
	d.Wildcard = true
}

// scope is one level of name resolution context: the aliases visible at
// this point in the query, mapping alias/table name to the real table name.
type scope struct {
	aliasToTable map[string]string
	parent       *scope
}

func newScope(parent *scope) *scope {
	return &scope{aliasToTable: map[string]string{}, parent: parent}
}

func (s *scope) bind(alias, table string) {
	s.aliasToTable[alias] = table
}

// resolveAlias walks outward through enclosing scopes to find which real
// table an alias (or bare table name) refers to.
func (s *scope) resolveAlias(alias string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.aliasToTable[alias]; ok {
			return t, true
		}
	}
	return "", false
}

// tablesInScope returns every real table name bound anywhere in this scope
// chain, used to resolve unqualified column references.
func (s *scope) tablesInScope() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.parent {
		for _, t := range cur.aliasToTable {
			out = append(out, t)
		}
	}
	return out
}

// SchemaProvider is the minimal schema lookup the analyzer needs to resolve
// unqualified column references against declared tables.
type SchemaProvider interface {
	TablesContainingColumn(col string) []*schema.Table
}

// Analyze walks q's FROM/JOIN/WHERE/GROUP BY/HAVING/ORDER BY tree and
// returns its table and column dependencies. sp may be nil, in which case
// unqualified column references fall back to being associated with every
// table visible in scope (a conservative over-approximation).
func Analyze(q *query.Select, sp SchemaProvider) *Dependencies {
	d := newDependencies()
	root := newScope(nil)
	analyzeSelect(q, root, d, sp)
	return d
}

func analyzeSelect(q *query.Select, parent *scope, d *Dependencies, sp SchemaProvider) {
	sc := newScope(parent)
	bindFromSource(q.FromClause(), sc, d, sp)
	for _, j := range q.Joins() {
		bindFromSource(j.From, sc, d, sp)
	}

	// FROM/JOIN binding must be complete before resolving ON/WHERE/etc,
	// since any of them may reference any bound alias.
	for _, j := range q.Joins() {
		analyzePredicate(j.On, sc, d, sp)
	}

	for _, c := range q.Columns() {
		analyzeColumnRef(c, sc, d, sp)
	}

	if w := q.WhereClause(); w != nil {
		analyzePredicate(w, sc, d, sp)
	}
	for _, col := range q.GroupByCols() {
		resolveUnqualified(col, sc, d, sp)
	}
	if h := q.HavingClause(); h != nil {
		analyzePredicate(h, sc, d, sp)
	}
	for _, o := range q.OrderByTerms() {
		resolveUnqualified(o.Column, sc, d, sp)
	}
}

func bindFromSource(f query.FromSource, sc *scope, d *Dependencies, sp SchemaProvider) {
	if f.IsSubquery() {
		// A subquery's own dependencies are analyzed in a nested scope so
		// its internal aliases don't leak into the outer query, but its
		// table/column touches still roll up into the same result set.
		analyzeSelect(f.SubquerySelect(), sc, d, sp)
		return
	}
	if f.Table == "" {
		return
	}
	alias := f.AliasOrTable()
	sc.bind(alias, f.Table)
	sc.bind(f.Table, f.Table)
}

func analyzeColumnRef(c query.ColumnRef, sc *scope, d *Dependencies, sp SchemaProvider) {
	switch c.Kind {
	case query.ColWildcard:
		if c.Table != "" {
			if t, ok := sc.resolveAlias(c.Table); ok {
				d.markWildcard(t)
				return
			}
		}
		for _, t := range sc.tablesInScope() {
			d.markWildcard(t)
		}
	case query.ColQualified:
		if t, ok := sc.resolveAlias(c.Table); ok {
			d.addColumn(t, c.Name)
		} else {
			d.addColumn(c.Table, c.Name)
		}
	case query.ColSimple:
		resolveUnqualified(c.Name, sc, d, sp)
	case query.ColAggregate, query.ColExpression:
		// Expression contents are opaque SQL text; treat conservatively as
		// a wildcard touch on every table in scope, matching RawSQL's
		// handling below.
		for _, t := range sc.tablesInScope() {
			d.markWildcard(t)
		}
	}
}

// resolveUnqualified handles a column name from a predicate, GROUP BY or
// ORDER BY term. A "qualifier.column" name is resolved through the alias
// scope, like a ColQualified projection. A bare column name (no table
// qualifier) consults the schema provider for candidate owning tables,
// falling back to a conservative wildcard mark over every table in scope
// when the provider can't say, or isn't supplied.
func resolveUnqualified(col string, sc *scope, d *Dependencies, sp SchemaProvider) {
	if i := strings.LastIndex(col, "."); i > 0 {
		qualifier, name := col[:i], col[i+1:]
		if t, ok := sc.resolveAlias(qualifier); ok {
			d.addColumn(t, name)
		} else {
			d.addColumn(qualifier, name)
		}
		return
	}
	if sp != nil {
		if tables := sp.TablesContainingColumn(col); len(tables) > 0 {
			for _, t := range tables {
				if _, inScope := sc.resolveAlias(t.Name); inScope {
					d.addColumn(t.Name, col)
				}
			}
			return
		}
	}
	for _, t := range sc.tablesInScope() {
		d.markWildcard(t)
	}
}

func analyzePredicate(p query.Predicate, sc *scope, d *Dependencies, sp SchemaProvider) {
	switch v := p.(type) {
	case query.Comparison:
		resolveUnqualified(v.Column, sc, d, sp)
	case query.IsNull:
		resolveUnqualified(v.Column, sc, d, sp)
	case query.IsNotNull:
		resolveUnqualified(v.Column, sc, d, sp)
	case query.InList:
		resolveUnqualified(v.Column, sc, d, sp)
	case query.InSubquery:
		resolveUnqualified(v.Column, sc, d, sp)
		analyzeSelect(v.Sub, sc, d, sp)
	case query.Exists:
		analyzeSelect(v.Sub, sc, d, sp)
	case query.NotExists:
		analyzeSelect(v.Sub, sc, d, sp)
	case query.And:
		for _, c := range v.Children {
			analyzePredicate(c, sc, d, sp)
		}
	case query.Or:
		for _, c := range v.Children {
			analyzePredicate(c, sc, d, sp)
		}
	case query.Not:
		analyzePredicate(v.Child, sc, d, sp)
	case query.RawSQL:
		// Opaque SQL: watch every table currently in scope in full, per
		// raw SQL fragments are treated conservatively.
		for _, t := range sc.tablesInScope() {
			d.markWildcard(t)
		}
	}
}
