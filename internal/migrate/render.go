package migrate

import (
	"fmt"
	"strings"

	"github.com/graknol/declarative-sqlite/internal/schema"
)

// RenderDDL renders one Step to its CREATE/ALTER SQL text. View steps
// already carry their rendered SQL from Diff.
func RenderDDL(declared *schema.Schema, step Step) (string, error) {
	switch step.Kind {
	case StepCreateTable:
		t, ok := declared.Table(step.Table)
		if !ok {
			return "", fmt.Errorf("migrate: unknown table %q in create step", step.Table)
		}
		return renderCreateTable(t), nil
	case StepAddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", step.Table, renderColumnDef(step.Column)), nil
	case StepCreateIndex:
		return renderCreateIndex(step.Table, step.Key), nil
	case StepDropView:
		return fmt.Sprintf("DROP VIEW IF EXISTS %s", step.Table), nil
	case StepCreateView:
		return fmt.Sprintf("CREATE VIEW %s AS %s", step.View.Name, step.SQL), nil
	default:
		return "", fmt.Errorf("migrate: unknown step kind %d", step.Kind)
	}
}

func renderCreateTable(t *schema.Table) string {
	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, renderColumnDef(c))
	}
	if pk := t.PrimaryKey(); pk != nil {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk.Columns, ", ")))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", t.Name, strings.Join(cols, ",\n  "))
	return b.String()
}

func renderColumnDef(c *schema.Column) string {
	def := fmt.Sprintf("%s %s", c.Name, c.Kind.PhysicalType())
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def
}

func renderCreateIndex(table string, k *schema.Key) string {
	unique := ""
	if k.Kind == schema.KeyUnique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)", unique, k.Name, table, strings.Join(k.Columns, ", "))
}
