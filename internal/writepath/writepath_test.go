package writepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
)

func buildTestTable(t *testing.T) *schema.Table {
	t.Helper()
	b := schema.NewBuilder()
	b.Table("widgets", func(tb *schema.TableBuilder) {
		tb.Text("name").NotNull().LWW().MaxLength(10)
		tb.Integer("stock").Min(0).Max(100)
	})
	s, err := b.Build()
	require.NoError(t, err)
	tbl, _ := s.Table("widgets")
	return tbl
}

func TestValidateBoundsRejectsTooLongText(t *testing.T) {
	tbl := buildTestTable(t)
	err := validateBounds(tbl.Column("name"), types.TextValue("this name is way too long"))
	assert.Error(t, err)
}

func TestValidateBoundsAcceptsWithinLength(t *testing.T) {
	tbl := buildTestTable(t)
	err := validateBounds(tbl.Column("name"), types.TextValue("short"))
	assert.NoError(t, err)
}

func TestValidateBoundsRejectsOutOfRangeNumber(t *testing.T) {
	tbl := buildTestTable(t)
	assert.Error(t, validateBounds(tbl.Column("stock"), types.IntValue(-1)))
	assert.Error(t, validateBounds(tbl.Column("stock"), types.IntValue(101)))
	assert.NoError(t, validateBounds(tbl.Column("stock"), types.IntValue(50)))
}
