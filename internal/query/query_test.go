package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleSelect(t *testing.T) {
	q := NewSelect().
		Select(ColumnRef{Kind: ColSimple, Name: "name"}, ColumnRef{Kind: ColSimple, Name: "email"}).
		From("customers").
		Where(Comparison{Column: "age", Op: OpGte, Value: 18})

	sql, params, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT name, email FROM customers WHERE age >= ?", sql)
	assert.Equal(t, []any{18}, params)
}

func TestJoinAndOrderAndLimit(t *testing.T) {
	q := NewSelect().
		Select(ColumnRef{Kind: ColQualified, Table: "o", Name: "id"}).
		FromAliased("orders", "o").
		JoinAliased(JoinLeft, "customers", "c", Comparison{Column: "o.customer_id", Op: OpEq, Value: nil}).
		OrderBy("o.id", true).
		Limit(10).
		Offset(5)

	sql, _, err := q.Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM orders AS o")
	assert.Contains(t, sql, "LEFT JOIN customers AS c ON o.customer_id = ?")
	assert.Contains(t, sql, "ORDER BY o.id DESC")
	assert.Contains(t, sql, "LIMIT 10")
	assert.Contains(t, sql, "OFFSET 5")
}

func TestInListEmptyMatchesNothing(t *testing.T) {
	q := NewSelect().From("widgets").Where(InList{Column: "id", Values: nil})
	sql, params, err := q.Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "1 = 0")
	assert.Empty(t, params)
}

func TestAndOrNesting(t *testing.T) {
	q := NewSelect().From("widgets").Where(And{Children: []Predicate{
		Comparison{Column: "active", Op: OpEq, Value: true},
		Or{Children: []Predicate{
			Comparison{Column: "category", Op: OpEq, Value: "a"},
			Comparison{Column: "category", Op: OpEq, Value: "b"},
		}},
	}})
	sql, params, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM widgets WHERE (active = ?) AND ((category = ?) OR (category = ?))", sql)
	assert.Equal(t, []any{true, "a", "b"}, params)
}

func TestSubqueryInInList(t *testing.T) {
	sub := NewSelect().Select(ColumnRef{Kind: ColSimple, Name: "id"}).From("archived_orders")
	q := NewSelect().From("orders").Where(InSubquery{Column: "id", Sub: sub})
	sql, _, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders WHERE id IN (SELECT id FROM archived_orders)", sql)
}

func TestForUpdateMarksTarget(t *testing.T) {
	q := NewSelect().From("active_customers_view").ForUpdate("customers")
	assert.Equal(t, "customers", q.ForUpdateTarget())
}

func TestRawSQLPassesThroughParams(t *testing.T) {
	q := NewSelect().From("widgets").Where(RawSQL{SQL: "json_extract(payload, '$.tag') = ?", Params: []any{"urgent"}})
	sql, params, err := q.Build()
	require.NoError(t, err)
	assert.Contains(t, sql, "json_extract(payload, '$.tag') = ?")
	assert.Equal(t, []any{"urgent"}, params)
}

func TestMissingFromErrors(t *testing.T) {
	q := NewSelect().Select(ColumnRef{Kind: ColSimple, Name: "x"})
	_, _, err := q.Build()
	assert.Error(t, err)
}
