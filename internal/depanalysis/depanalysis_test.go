package depanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graknol/declarative-sqlite/internal/query"
	"github.com/graknol/declarative-sqlite/internal/schema"
)

func buildOrdersSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.Table("orders", func(tb *schema.TableBuilder) {
		tb.Text("status").LWW()
		tb.Guid("customer_id")
	})
	b.Table("customers", func(tb *schema.TableBuilder) {
		tb.Text("name").LWW()
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func TestQualifiedColumnDependency(t *testing.T) {
	q := query.NewSelect().
		Select(query.ColumnRef{Kind: query.ColQualified, Table: "o", Name: "status"}).
		FromAliased("orders", "o").
		Where(query.Comparison{Column: "o.status", Op: query.OpEq, Value: "open"})

	deps := Analyze(q, nil)
	assert.True(t, deps.Tables["orders"])
	assert.True(t, deps.Columns[ColumnDep{Table: "orders", Column: "status"}])
	assert.False(t, deps.Wildcard)
}

func TestUnqualifiedColumnResolvedViaSchema(t *testing.T) {
	s := buildOrdersSchema(t)
	q := query.NewSelect().
		Select(query.ColumnRef{Kind: query.ColSimple, Name: "status"}).
		From("orders")

	deps := Analyze(q, s)
	assert.True(t, deps.Columns[ColumnDep{Table: "orders", Column: "status"}])
	assert.False(t, deps.Wildcard)
}

func TestWildcardMarksWholeTable(t *testing.T) {
	q := query.NewSelect().
		Select(query.ColumnRef{Kind: query.ColWildcard}).
		From("orders")

	deps := Analyze(q, nil)
	assert.True(t, deps.Tables["orders"])
	assert.True(t, deps.Wildcard)
}

func TestRawSQLIsConservative(t *testing.T) {
	q := query.NewSelect().
		From("orders").
		Where(query.RawSQL{SQL: "json_extract(meta,'$.x') = ?", Params: []any{1}})

	deps := Analyze(q, nil)
	assert.True(t, deps.Tables["orders"])
	assert.True(t, deps.Wildcard)
}

func TestJoinBindsBothTables(t *testing.T) {
	q := query.NewSelect().
		Select(query.ColumnRef{Kind: query.ColQualified, Table: "c", Name: "name"}).
		FromAliased("orders", "o").
		JoinAliased(query.JoinInner, "customers", "c", query.Comparison{Column: "o.customer_id", Op: query.OpEq, Value: nil}).
		Where(query.Comparison{Column: "c.name", Op: query.OpEq, Value: "Ada"})

	deps := Analyze(q, nil)
	assert.True(t, deps.Tables["orders"])
	assert.True(t, deps.Tables["customers"])
	assert.True(t, deps.Columns[ColumnDep{Table: "customers", Column: "name"}])
}

func TestSubqueryDependenciesRollUp(t *testing.T) {
	sub := query.NewSelect().
		Select(query.ColumnRef{Kind: query.ColSimple, Name: "customer_id"}).
		From("orders").
		Where(query.Comparison{Column: "status", Op: query.OpEq, Value: "open"})

	q := query.NewSelect().
		From("customers").
		Where(query.InSubquery{Column: "system_id", Sub: sub})

	s := buildOrdersSchema(t)
	deps := Analyze(q, s)
	assert.True(t, deps.Tables["customers"])
	assert.True(t, deps.Tables["orders"])
	assert.True(t, deps.Columns[ColumnDep{Table: "orders", Column: "status"}])
}
