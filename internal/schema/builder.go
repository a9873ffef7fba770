package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// Builder assembles a Schema in memory. It is constructed once at startup
// and discarded after Build.
type Builder struct {
	version int
	tables  []*Table
	views   []*View
	err     error
}

// NewBuilder starts a fresh schema declaration.
func NewBuilder() *Builder { return &Builder{} }

// Version sets the schema's integer version.
func (b *Builder) Version(n int) *Builder {
	b.version = n
	return b
}

// Table declares a table by name, yielding a TableBuilder to body for
// column and key declarations. A name starting with "__" (such as the
// fileset package's __files) declares a system table, which Build leaves
// without injected system columns.
func (b *Builder) Table(name string, body func(*TableBuilder)) *Builder {
	tb := &TableBuilder{table: &Table{Name: name, IsSystem: strings.HasPrefix(name, "__")}}
	body(tb)
	b.tables = append(b.tables, tb.table)
	return b
}

// View declares a read-only (or forUpdate) structured projection.
func (b *Builder) View(name string, projection ProjectionBuilder) *Builder {
	b.views = append(b.views, &View{Name: name, Select: projection})
	return b
}

// Build validates every declared table, injects derived system and LWW
// shadow columns, and returns the immutable Schema.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := &Schema{Version: b.version, Tables: b.tables, Views: b.views}
	for _, t := range s.Tables {
		if !t.IsSystem {
			injectSystemColumns(t)
		}
		injectLWWShadows(t)
		deriveKeyNames(t)
		if err := t.validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// deriveKeyNames fills in Key.Name for any key the caller left blank, using
// the idx_<table>_<col1>_<col2>... convention noted on Key.
func deriveKeyNames(t *Table) {
	for _, k := range t.Keys {
		if k.Name != "" {
			continue
		}
		name := "idx_" + t.Name
		for _, c := range k.Columns {
			name += "_" + c
		}
		k.Name = name
	}
}

// injectSystemColumns prepends system_id, system_created_at, system_version
// to a non-system table if not already present.
func injectSystemColumns(t *Table) {
	if t.Column(ColSystemID) != nil {
		return
	}
	systemID := &Column{Name: ColSystemID, Kind: types.KindGUID, Nullable: false, derived: true, Generator: func() types.Value {
		return types.GUIDValue(uuid.NewString())
	}}
	createdAt := &Column{Name: ColSystemCreatedAt, Kind: types.KindHLC, Nullable: false, derived: true}
	version := &Column{Name: ColSystemVersion, Kind: types.KindHLC, Nullable: false, derived: true}
	t.Columns = append([]*Column{systemID, createdAt, version}, t.Columns...)

	hasPrimary := false
	for _, k := range t.Keys {
		if k.Kind == KeyPrimary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		t.Keys = append([]*Key{{Columns: []string{ColSystemID}, Kind: KeyPrimary}}, t.Keys...)
	}
}

// injectLWWShadows adds a nullable hlc-typed `<col>__hlc` column for every
// isLww column that doesn't already have its shadow declared.
func injectLWWShadows(t *Table) {
	for _, c := range append([]*Column(nil), t.Columns...) {
		if !c.IsLWW {
			continue
		}
		shadowName := c.ShadowName()
		if t.Column(shadowName) != nil {
			continue
		}
		t.Columns = append(t.Columns, &Column{Name: shadowName, Kind: types.KindHLC, Nullable: true, derived: true})
	}
}

// TableBuilder declares columns and keys for one table.
type TableBuilder struct {
	table *Table
}

func (tb *TableBuilder) column(name string, kind types.Kind) *ColumnBuilder {
	c := &Column{Name: name, Kind: kind, Nullable: true}
	tb.table.Columns = append(tb.table.Columns, c)
	return &ColumnBuilder{col: c}
}

func (tb *TableBuilder) Guid(name string) *ColumnBuilder    { return tb.column(name, types.KindGUID) }
func (tb *TableBuilder) Text(name string) *ColumnBuilder    { return tb.column(name, types.KindText) }
func (tb *TableBuilder) Integer(name string) *ColumnBuilder { return tb.column(name, types.KindInteger) }
func (tb *TableBuilder) Real(name string) *ColumnBuilder    { return tb.column(name, types.KindReal) }
func (tb *TableBuilder) Date(name string) *ColumnBuilder    { return tb.column(name, types.KindDate) }
func (tb *TableBuilder) Fileset(name string) *ColumnBuilder { return tb.column(name, types.KindFileset) }

// Key starts declaring a key over the given columns; call .Primary(),
// .Unique(), or .Indexed() to finish it.
func (tb *TableBuilder) Key(cols ...string) *KeyBuilder {
	k := &Key{Columns: cols}
	tb.table.Keys = append(tb.table.Keys, k)
	return &KeyBuilder{key: k, name: tb.table.Name}
}

// KeyBuilder finalizes the kind of a key declared via TableBuilder.Key.
type KeyBuilder struct {
	key  *Key
	name string
}

func (kb *KeyBuilder) Primary() *KeyBuilder { kb.key.Kind = KeyPrimary; return kb }
func (kb *KeyBuilder) Unique() *KeyBuilder  { kb.key.Kind = KeyUnique; return kb }
func (kb *KeyBuilder) Indexed() *KeyBuilder { kb.key.Kind = KeyIndexed; return kb }

// ColumnBuilder applies flags to a just-declared column.
type ColumnBuilder struct {
	col *Column
}

// NotNull marks the column required. An optional static default may be
// supplied; without one, a value must be provided on every insert.
func (cb *ColumnBuilder) NotNull(def ...types.Value) *ColumnBuilder {
	cb.col.Nullable = false
	if len(def) > 0 {
		cb.col.Default = &def[0]
	}
	return cb
}

func (cb *ColumnBuilder) LWW() *ColumnBuilder    { cb.col.IsLWW = true; return cb }
func (cb *ColumnBuilder) Parent() *ColumnBuilder { cb.col.IsParent = true; return cb }

func (cb *ColumnBuilder) MaxLength(n int) *ColumnBuilder {
	cb.col.MaxLen = &n
	return cb
}

func (cb *ColumnBuilder) Min(n float64) *ColumnBuilder {
	cb.col.MinNum = &n
	return cb
}

func (cb *ColumnBuilder) Max(n float64) *ColumnBuilder {
	cb.col.MaxNum = &n
	return cb
}

func (cb *ColumnBuilder) DefaultTo(v types.Value) *ColumnBuilder {
	cb.col.Default = &v
	return cb
}

func (cb *ColumnBuilder) DefaultCallback(fn func() types.Value) *ColumnBuilder {
	cb.col.Generator = fn
	return cb
}

// ResolveDefault computes the effective default for a missing value at insert
// time: a static default takes precedence over a generator, matching the
// static-value-then-generator default order.
func (c *Column) ResolveDefault() (types.Value, bool, error) {
	if c.Default != nil {
		return *c.Default, true, nil
	}
	if c.Generator != nil {
		return c.Generator(), true, nil
	}
	if !c.Nullable {
		return types.Value{}, false, fmt.Errorf("schema: column %q is not-null with no default and no value supplied", c.Name)
	}
	return types.NullValue(c.Kind), true, nil
}
