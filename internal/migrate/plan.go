// Package migrate diffs a declared schema against the physical schema
// introspected from a live database and produces an additive-only,
// transactionally-applied plan. No migration ever drops
// a table or column; views are dropped and recreated when their SQL text
// changes.
package migrate

import (
	"fmt"
	"sort"

	"github.com/graknol/declarative-sqlite/internal/schema"
)

// StepKind classifies one migration step.
type StepKind int

const (
	StepCreateTable StepKind = iota
	StepAddColumn
	StepCreateIndex
	StepDropView
	StepCreateView
)

func (k StepKind) String() string {
	switch k {
	case StepCreateTable:
		return "create_table"
	case StepAddColumn:
		return "add_column"
	case StepCreateIndex:
		return "create_index"
	case StepDropView:
		return "drop_view"
	case StepCreateView:
		return "create_view"
	default:
		return "unknown"
	}
}

// Step is one DDL action in an ordered plan.
type Step struct {
	Kind   StepKind
	Table  string
	Column *schema.Column
	Key    *schema.Key
	View   *schema.View
	SQL    string // for StepCreateView: the view's rendered SELECT, filled in by Diff
}

// Plan is an ordered, idempotent sequence of steps: applying it twice
// produces no further changes.
type Plan struct {
	Steps []Step
}

// PhysicalTable is what Introspect reports about a table already present in
// the database: its columns (by name) and its named indexes (by name,
// recording the column list and uniqueness so the differ can recognize an
// index that already matches a declared key).
type PhysicalTable struct {
	Columns map[string]bool
	Indexes map[string]PhysicalIndex
}

type PhysicalIndex struct {
	Columns  []string
	IsUnique bool
}

// PhysicalSchema is the full introspected state: table name -> PhysicalTable,
// plus the rendered SQL text of every existing view (used to detect a view
// whose definition changed).
type PhysicalSchema struct {
	Tables map[string]PhysicalTable
	Views  map[string]string
}

// Diff computes the ordered, additive plan to bring physical up to date
// with declared. Table creation steps precede column/index steps for that
// table; views are diffed last since they may reference newly-added
// columns.
func Diff(declared *schema.Schema, physical PhysicalSchema) (*Plan, error) {
	plan := &Plan{}

	tables := make([]*schema.Table, len(declared.Tables))
	copy(tables, declared.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	for _, t := range tables {
		phys, exists := physical.Tables[t.Name]
		if !exists {
			plan.Steps = append(plan.Steps, Step{Kind: StepCreateTable, Table: t.Name})
			phys = PhysicalTable{Columns: map[string]bool{}, Indexes: map[string]PhysicalIndex{}}
			for _, c := range t.Columns {
				phys.Columns[c.Name] = true
			}
		} else {
			for _, c := range t.Columns {
				if !phys.Columns[c.Name] {
					plan.Steps = append(plan.Steps, Step{Kind: StepAddColumn, Table: t.Name, Column: c})
					phys.Columns[c.Name] = true
				}
			}
		}

		for _, k := range t.Keys {
			if k.Kind == schema.KeyPrimary {
				continue // the primary key is declared at CREATE TABLE time
			}
			if existing, ok := phys.Indexes[k.Name]; ok && indexMatches(existing, k) {
				continue
			}
			plan.Steps = append(plan.Steps, Step{Kind: StepCreateIndex, Table: t.Name, Key: k})
		}
	}

	for _, v := range declared.Views {
		rendered, err := renderView(declared, v)
		if err != nil {
			return nil, fmt.Errorf("migrate: render view %q: %w", v.Name, err)
		}
		fullSQL := fmt.Sprintf("CREATE VIEW %s AS %s", v.Name, rendered)
		if existingSQL, ok := physical.Views[v.Name]; ok {
			if existingSQL == fullSQL {
				continue
			}
			plan.Steps = append(plan.Steps, Step{Kind: StepDropView, Table: v.Name, View: v})
		}
		plan.Steps = append(plan.Steps, Step{Kind: StepCreateView, Table: v.Name, View: v, SQL: rendered})
	}

	return plan, nil
}

func indexMatches(existing PhysicalIndex, k *schema.Key) bool {
	if existing.IsUnique != (k.Kind == schema.KeyUnique) {
		return false
	}
	if len(existing.Columns) != len(k.Columns) {
		return false
	}
	for i, c := range k.Columns {
		if existing.Columns[i] != c {
			return false
		}
	}
	return true
}

func renderView(s *schema.Schema, v *schema.View) (string, error) {
	resolve := func(name string) (*schema.Table, bool) { return s.Table(name) }
	return v.Select.RenderSQL(resolve)
}
