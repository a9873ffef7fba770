package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graknol/declarative-sqlite/internal/schema"
)

func buildWidgetsSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.Table("widgets", func(tb *schema.TableBuilder) {
		tb.Text("name").NotNull().LWW()
		tb.Integer("stock")
		tb.Key("name").Unique()
	})
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func TestDiffAgainstEmptyDatabaseCreatesTable(t *testing.T) {
	s := buildWidgetsSchema(t)
	plan, err := Diff(s, PhysicalSchema{Tables: map[string]PhysicalTable{}, Views: map[string]string{}})
	require.NoError(t, err)

	require.NotEmpty(t, plan.Steps)
	assert.Equal(t, StepCreateTable, plan.Steps[0].Kind)
	assert.Equal(t, "widgets", plan.Steps[0].Table)

	var sawIndex bool
	for _, st := range plan.Steps {
		if st.Kind == StepCreateIndex {
			sawIndex = true
		}
	}
	assert.True(t, sawIndex)
}

func TestDiffIsIdempotentOnceApplied(t *testing.T) {
	s := buildWidgetsSchema(t)
	tbl, _ := s.Table("widgets")

	physTable := PhysicalTable{Columns: map[string]bool{}, Indexes: map[string]PhysicalIndex{}}
	for _, c := range tbl.Columns {
		physTable.Columns[c.Name] = true
	}
	for _, k := range tbl.Keys {
		if k.Kind == schema.KeyPrimary {
			continue
		}
		physTable.Indexes[k.Name] = PhysicalIndex{Columns: k.Columns, IsUnique: k.Kind == schema.KeyUnique}
	}

	physical := PhysicalSchema{Tables: map[string]PhysicalTable{"widgets": physTable}, Views: map[string]string{}}
	plan, err := Diff(s, physical)
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
}

func TestDiffAddsOnlyMissingColumn(t *testing.T) {
	s := buildWidgetsSchema(t)
	tbl, _ := s.Table("widgets")

	physTable := PhysicalTable{Columns: map[string]bool{}, Indexes: map[string]PhysicalIndex{}}
	for _, c := range tbl.Columns {
		if c.Name == "stock" {
			continue // simulate a column that hasn't been added physically yet
		}
		physTable.Columns[c.Name] = true
	}
	for _, k := range tbl.Keys {
		if k.Kind == schema.KeyPrimary {
			continue
		}
		physTable.Indexes[k.Name] = PhysicalIndex{Columns: k.Columns, IsUnique: k.Kind == schema.KeyUnique}
	}

	physical := PhysicalSchema{Tables: map[string]PhysicalTable{"widgets": physTable}, Views: map[string]string{}}
	plan, err := Diff(s, physical)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, StepAddColumn, plan.Steps[0].Kind)
	assert.Equal(t, "stock", plan.Steps[0].Column.Name)
}

func TestRenderCreateTableIncludesPrimaryKey(t *testing.T) {
	s := buildWidgetsSchema(t)
	tbl, _ := s.Table("widgets")
	ddl := renderCreateTable(tbl)
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS widgets")
	assert.Contains(t, ddl, "PRIMARY KEY (system_id)")
}

func TestRenderCreateIndexMarksUnique(t *testing.T) {
	s := buildWidgetsSchema(t)
	tbl, _ := s.Table("widgets")
	var uniqueKey *schema.Key
	for _, k := range tbl.Keys {
		if k.Kind == schema.KeyUnique {
			uniqueKey = k
		}
	}
	require.NotNil(t, uniqueKey)
	ddl := renderCreateIndex("widgets", uniqueKey)
	assert.Contains(t, ddl, "CREATE UNIQUE INDEX IF NOT EXISTS idx_widgets_name ON widgets (name)")
}
