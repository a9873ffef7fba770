package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graknol/declarative-sqlite/internal/types"
)

func buildCustomersSchema(t *testing.T) *Schema {
	t.Helper()
	b := NewBuilder().Version(1)
	b.Table("customers", func(tb *TableBuilder) {
		tb.Text("name").NotNull().LWW().MaxLength(120)
		tb.Text("email").LWW()
		tb.Integer("age").Min(0).Max(150)
		tb.Key("email").Unique()
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func TestBuilderInjectsSystemColumns(t *testing.T) {
	s := buildCustomersSchema(t)
	tbl, ok := s.Table("customers")
	require.True(t, ok)

	assert.NotNil(t, tbl.Column(ColSystemID))
	assert.NotNil(t, tbl.Column(ColSystemCreatedAt))
	assert.NotNil(t, tbl.Column(ColSystemVersion))

	pk := tbl.PrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{ColSystemID}, pk.Columns)
}

func TestBuilderInjectsLWWShadowColumns(t *testing.T) {
	s := buildCustomersSchema(t)
	tbl, _ := s.Table("customers")

	nameShadow := tbl.Column("name__hlc")
	require.NotNil(t, nameShadow)
	assert.Equal(t, types.KindHLC, nameShadow.Kind)
	assert.True(t, nameShadow.Nullable)

	emailShadow := tbl.Column("email__hlc")
	require.NotNil(t, emailShadow)

	assert.Nil(t, tbl.Column("age__hlc"), "non-lww column must not get a shadow")

	lww := tbl.LWWColumns()
	require.Len(t, lww, 2)
}

func TestBuilderDerivesKeyNames(t *testing.T) {
	s := buildCustomersSchema(t)
	tbl, _ := s.Table("customers")

	var emailKey *Key
	for _, k := range tbl.Keys {
		if k.Kind == KeyUnique {
			emailKey = k
		}
	}
	require.NotNil(t, emailKey)
	assert.Equal(t, "idx_customers_email", emailKey.Name)

	pk := tbl.PrimaryKey()
	assert.Equal(t, "idx_customers_system_id", pk.Name)
}

func TestBuilderRejectsDuplicateColumns(t *testing.T) {
	b := NewBuilder()
	b.Table("widgets", func(tb *TableBuilder) {
		tb.Text("name")
		tb.Text("name")
	})
	_, err := b.Build()
	assert.Error(t, err)
}

func TestBuilderRejectsUnknownKeyColumn(t *testing.T) {
	b := NewBuilder()
	b.Table("widgets", func(tb *TableBuilder) {
		tb.Text("name")
		tb.Key("missing").Indexed()
	})
	_, err := b.Build()
	assert.Error(t, err)
}

func TestColumnResolveDefault(t *testing.T) {
	b := NewBuilder()
	var gen int
	b.Table("widgets", func(tb *TableBuilder) {
		tb.Text("name").NotNull(types.TextValue("unnamed"))
		tb.Integer("seq").NotNull().DefaultCallback(func() types.Value {
			gen++
			return types.IntValue(int64(gen))
		})
		tb.Text("nickname")
	})
	s, err := b.Build()
	require.NoError(t, err)
	tbl, _ := s.Table("widgets")

	nameVal, ok, err := tbl.Column("name").ResolveDefault()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "unnamed", nameVal.Text())

	seqVal, ok, err := tbl.Column("seq").ResolveDefault()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), seqVal.Int())

	nickVal, ok, err := tbl.Column("nickname").ResolveDefault()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, nickVal.Null())
}

func TestBuilderMultiColumnPrimaryKey(t *testing.T) {
	b := NewBuilder()
	b.Table("line_items", func(tb *TableBuilder) {
		tb.Guid("order_id").NotNull().Parent()
		tb.Integer("line_no").NotNull()
		tb.Real("amount")
		tb.Key("order_id", "line_no").Primary()
	})
	s, err := b.Build()
	require.NoError(t, err)

	tbl, _ := s.Table("line_items")
	pk := tbl.PrimaryKey()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"order_id", "line_no"}, pk.Columns)
	// system_id is still synthesized as a non-key column since the caller
	// declared their own primary key.
	assert.NotNil(t, tbl.Column(ColSystemID))
}
