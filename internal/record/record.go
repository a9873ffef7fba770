// Package record implements the typed record layer: a value-typed view over
// a raw row map, with per-field change tracking and save/reload/delete
// operations that flow through the write path. This package is the
// hand-written contract generated per-table accessors would sit on top
// of; no code generation happens here, only the runtime contract.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/graknol/declarative-sqlite/internal/query"
	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
	"github.com/graknol/declarative-sqlite/internal/writepath"
)

// Record is a typed projection over one row, sourced either from a direct
// table query (always writable) or from a view/join query (writable only
// when the source query carried a forUpdate target).
type Record struct {
	writer *writepath.Writer
	table  *schema.Table // nil if the record is read-only
	isNew  bool

	base  *types.Row // last-known-committed values
	dirty *types.Row // fields changed since load/last save
}

// FromQueryRow materializes one record from a query result row. If q
// carries a forUpdate target, the record is writable and restricted to
// that table's declared columns; otherwise it is read-only, so writes
// through a non-forUpdate view fail with invalidData.
func FromQueryRow(writer *writepath.Writer, s *schema.Schema, q *query.Select, raw map[string]any) (*Record, error) {
	base := types.NewRow()

	target := q.ForUpdateTarget()
	var t *schema.Table
	if target != "" {
		tbl, ok := s.Table(target)
		if !ok {
			return nil, types.NewFailure(types.FamilyRead, types.InvalidData, nil, "forUpdate target %q is not a declared table", target)
		}
		t = tbl
		pk := t.PrimaryKey()
		if pk == nil || len(pk.Columns) != 1 {
			return nil, types.NewFailure(types.FamilyRead, types.InvalidData, nil, "forUpdate target %q has no single-column primary key", target)
		}
		idCol := pk.Columns[0]
		if _, ok := raw[idCol]; !ok {
			return nil, types.NewFailure(types.FamilyRead, types.InvalidData, nil, "forUpdate projection for %q does not surface %q", target, idCol)
		}
		if t.Column(schema.ColSystemVersion) != nil {
			if _, ok := raw[schema.ColSystemVersion]; !ok {
				return nil, types.NewFailure(types.FamilyRead, types.InvalidData, nil, "forUpdate projection for %q does not surface %q", target, schema.ColSystemVersion)
			}
		}
	}

	for name, v := range raw {
		kind := types.KindText
		if t != nil {
			if c := t.Column(name); c != nil {
				kind = c.Kind
			}
		}
		base.Set(name, types.FromRaw(kind, v))
	}

	return &Record{writer: writer, table: t, base: base, dirty: types.NewRow()}, nil
}

// New starts a brand-new record bound directly to table, to be populated
// with Set calls and committed with Save (which issues an Insert).
func New(writer *writepath.Writer, s *schema.Schema, table string) (*Record, error) {
	t, ok := s.Table(table)
	if !ok {
		return nil, types.NewFailure(types.FamilyCreate, types.InvalidData, nil, "unknown table %q", table)
	}
	return &Record{writer: writer, table: t, isNew: true, base: types.NewRow(), dirty: types.NewRow()}, nil
}

// Get returns a column's current value (a pending Set wins over the last
// loaded value).
func (r *Record) Get(name string) types.Value {
	if v, ok := r.dirty.Get(name); ok {
		return v
	}
	v, _ := r.base.Get(name)
	return v
}

// Set stages a field change. It fails immediately with an invalidData kind
// if the record has no write target at all, or if name isn't one of the
// write target's own declared columns: a joined-table column surfaced
// only for display can't be written back through this record.
func (r *Record) Set(name string, v types.Value) error {
	if r.table == nil {
		return types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "record has no forUpdate target; read-only")
	}
	c := r.table.Column(name)
	if c == nil {
		return types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "column %q is not part of write target %q", name, r.table.Name)
	}
	if !v.Null() {
		if err := writepath.ValidateBounds(c, v); err != nil {
			return types.NewFailure(types.FamilyUpdate, types.InvalidData, err, "column %q", name)
		}
	}
	r.dirty.Set(name, v)
	return nil
}

// Dirty reports whether any field has a pending, unsaved change.
func (r *Record) Dirty() bool { return r.dirty.Len() > 0 }

func (r *Record) rowID() (string, error) {
	pk := r.table.PrimaryKey()
	if pk == nil || len(pk.Columns) != 1 {
		return "", types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "table %q has no single-column primary key", r.table.Name)
	}
	v := r.Get(pk.Columns[0])
	if v.Null() {
		return "", types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "record has no identity value for %q", pk.Columns[0])
	}
	return v.Text(), nil
}

// Save flushes pending changes through the write path: Insert for a
// brand-new record, Update (restricted to the dirty field set) otherwise.
// On success the dirty set is merged into base and cleared.
func (r *Record) Save(ctx context.Context) error {
	if r.table == nil {
		return types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "record has no forUpdate target; read-only")
	}
	if !r.Dirty() && !r.isNew {
		return nil
	}

	if r.isNew {
		change, err := r.writer.Insert(ctx, r.table.Name, r.dirty)
		if err != nil {
			return err
		}
		pk := r.table.PrimaryKey()
		if pk != nil && len(pk.Columns) == 1 {
			if _, has := r.dirty.Get(pk.Columns[0]); !has {
				r.dirty.Set(pk.Columns[0], types.GUIDValue(change.RowID))
			}
		}
		r.isNew = false
	} else {
		rowID, err := r.rowID()
		if err != nil {
			return err
		}
		if _, err := r.writer.Update(ctx, r.table.Name, rowID, r.dirty); err != nil {
			return err
		}
	}

	for _, c := range r.dirty.Columns() {
		v, _ := r.dirty.Get(c)
		r.base.Set(c, v)
	}
	r.dirty = types.NewRow()
	return nil
}

// Reload re-reads the record's row from storage by primary key, replacing
// base and discarding any pending (unsaved) changes.
func (r *Record) Reload(ctx context.Context) error {
	if r.table == nil {
		return types.NewFailure(types.FamilyRead, types.InvalidData, nil, "record has no forUpdate target; read-only")
	}
	rowID, err := r.rowID()
	if err != nil {
		return err
	}
	pk := r.table.PrimaryKey()

	cols := make([]string, 0, len(r.table.Columns))
	for _, c := range r.table.Columns {
		if strings.HasSuffix(c.Name, "__hlc") {
			continue
		}
		cols = append(cols, c.Name)
	}

	eng := r.writer.Engine()
	sqlText := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(cols, ", "), r.table.Name, pk.Columns[0])
	row := eng.QueryRowContext(ctx, sqlText, rowID)

	// Scan into `any` rather than sql.NullString: the driver already hands
	// back native Go types per column (int64, float64, string, []byte, or
	// nil), which is exactly what types.FromRaw expects.
	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return types.NewFailure(types.FamilyRead, types.NotFound, nil, "row %q not found in %q", rowID, r.table.Name)
		}
		return types.WrapEngineError(types.FamilyRead, err, "reload %q row %q", r.table.Name, rowID)
	}

	fresh := types.NewRow()
	for i, name := range cols {
		c := r.table.Column(name)
		fresh.Set(name, types.FromRaw(c.Kind, raw[i]))
	}
	r.base = fresh
	r.dirty = types.NewRow()
	return nil
}

// Delete removes the record's row through the write path.
func (r *Record) Delete(ctx context.Context) error {
	if r.table == nil {
		return types.NewFailure(types.FamilyDelete, types.InvalidData, nil, "record has no forUpdate target; read-only")
	}
	rowID, err := r.rowID()
	if err != nil {
		return err
	}
	_, err = r.writer.Delete(ctx, r.table.Name, rowID)
	return err
}
