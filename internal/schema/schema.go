// Package schema models the logical schema: tables, columns, keys, and
// views declared by an application author. A
// Schema is built once via Builder and is immutable thereafter.
package schema

import (
	"fmt"

	"github.com/graknol/declarative-sqlite/internal/types"
)

// KeyKind classifies a Key.
type KeyKind int

const (
	KeyPrimary KeyKind = iota
	KeyUnique
	KeyIndexed
)

func (k KeyKind) String() string {
	switch k {
	case KeyPrimary:
		return "primary"
	case KeyUnique:
		return "unique"
	default:
		return "indexed"
	}
}

// Key is an ordered column list plus its kind.
type Key struct {
	Columns []string
	Kind    KeyKind
	Name    string // derived if empty: idx_<table>_<col1>_<col2>...
}

// DefaultGenerator produces a fresh default value at insert time, e.g. a
// GUID generator or a caller-supplied default callback.
type DefaultGenerator func() types.Value

// Column is a single logical column declaration.
type Column struct {
	Name      string
	Kind      types.Kind
	Nullable  bool
	Default   *types.Value
	Generator DefaultGenerator
	IsParent  bool
	IsLWW     bool
	MinNum    *float64
	MaxNum    *float64
	MaxLen    *int

	// derived is true for system_*/<col>__hlc columns synthesized by Build,
	// not declared directly by the caller.
	derived bool
}

// ShadowName returns the name of this column's LWW shadow HLC column.
func (c *Column) ShadowName() string { return c.Name + "__hlc" }

// Table is a declared table: an ordered column list and a key set.
type Table struct {
	Name     string
	Columns  []*Column
	Keys     []*Key
	IsSystem bool
}

// Column looks up a column by name, or nil if absent.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// PrimaryKey returns the table's primary key, which every non-system table
// is guaranteed to have exactly one of after Build validates the schema.
func (t *Table) PrimaryKey() *Key {
	for _, k := range t.Keys {
		if k.Kind == KeyPrimary {
			return k
		}
	}
	return nil
}

// LWWColumns returns the columns flagged isLww=true.
func (t *Table) LWWColumns() []*Column {
	var out []*Column
	for _, c := range t.Columns {
		if c.IsLWW {
			out = append(out, c)
		}
	}
	return out
}

// System column names attached to every non-system table.
const (
	ColSystemID        = "system_id"
	ColSystemCreatedAt = "system_created_at"
	ColSystemVersion   = "system_version"
)

// View is a read-only (unless forUpdate) structured projection rendered to
// SQL at migration time.
type View struct {
	Name   string
	Select ProjectionBuilder
}

// ProjectionBuilder is the minimal surface a view projection must expose so
// the migrator can render its SQL text and the dependency analyzer can
// describe it without schema importing the query package directly (avoids
// an import cycle: query imports schema, so schema cannot import query).
type ProjectionBuilder interface {
	RenderSQL(resolve func(table string) (*Table, bool)) (string, error)
}

// Schema is the immutable, ordered set of tables and views an application
// declares, plus its integer version.
type Schema struct {
	Version int
	Tables  []*Table
	Views   []*View
}

// Table looks up a declared table (including synthesized system tables like
// __files, which the fileset package registers) by name.
func (s *Schema) Table(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// View looks up a declared view by name.
func (s *Schema) View(name string) (*View, bool) {
	for _, v := range s.Views {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// TablesContainingColumn returns every declared table carrying the named
// column, used by the dependency analyzer to resolve unqualified column
// references.
func (s *Schema) TablesContainingColumn(col string) []*Table {
	var out []*Table
	for _, t := range s.Tables {
		if t.Column(col) != nil {
			out = append(out, t)
		}
	}
	return out
}

// validate enforces the Table/Column/Key invariants:
// exactly one primary key, indexed/unique key columns must exist, and names
// must be non-empty and unique within the table.
func (t *Table) validate() error {
	if t.Name == "" {
		return fmt.Errorf("schema: table has empty name")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("schema: table %q has a column with empty name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("schema: table %q has duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	primaryCount := 0
	for _, k := range t.Keys {
		if len(k.Columns) == 0 {
			return fmt.Errorf("schema: table %q has a key with no columns", t.Name)
		}
		for _, kc := range k.Columns {
			if t.Column(kc) == nil {
				return fmt.Errorf("schema: table %q key references unknown column %q", t.Name, kc)
			}
		}
		if k.Kind == KeyPrimary {
			primaryCount++
		}
	}
	if primaryCount != 1 {
		return fmt.Errorf("schema: table %q must have exactly one primary key, found %d", t.Name, primaryCount)
	}
	return nil
}
