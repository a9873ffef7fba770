// Package writepath implements the mutating side of the data access
// stack: insert/update/delete against a declared table, with default-value
// resolution, HLC stamping, per-column last-writer-wins arbitration, and
// dirty-row journaling.
package writepath

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/hlc"
	"github.com/graknol/declarative-sqlite/internal/journal"
	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// ChangeKind classifies the kind of mutation a Writer operation performed,
// handed to the reactive manager to build a change descriptor.
type ChangeKind int

const (
	ChangeInsert ChangeKind = iota
	ChangeUpdate
	ChangeDelete
)

// Change describes one committed mutation: which table, which row, which
// columns actually changed (after LWW arbitration discards stale writes).
type Change struct {
	Kind            ChangeKind
	Table           string
	RowID           string
	MutatedColumns  []string
}

// Writer executes mutations against one declared schema over one engine
// connection. Mutation submission is serialized through a weighted
// semaphore of size 1, a single cooperative task runner: at most one
// Insert/Update/Delete body is in flight at a time, so two writers never
// race to read-then-write the same row's LWW shadows.
type Writer struct {
	eng     engine.Engine
	schema  *schema.Schema
	clock   *hlc.Clock
	journal *journal.Store
	sem     *semaphore.Weighted
}

func NewWriter(eng engine.Engine, s *schema.Schema, clock *hlc.Clock, j *journal.Store) *Writer {
	return &Writer{eng: eng, schema: s, clock: clock, journal: j, sem: semaphore.NewWeighted(1)}
}

// Engine exposes the underlying connection, used by the record layer to
// reload a row's committed values by primary key.
func (w *Writer) Engine() engine.Engine { return w.eng }

// Schema exposes the declared schema this writer commits against.
func (w *Writer) Schema() *schema.Schema { return w.schema }

// Insert resolves defaults for any column values left unset, stamps system
// and LWW columns with a fresh HLC, and commits the row in one statement.
// It returns the resulting Change, whose RowID is the generated system_id
// (or the caller-supplied one).
func (w *Writer) Insert(ctx context.Context, table string, values *types.Row) (*Change, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, types.NewFailure(types.FamilyCreate, types.Unreachable, err, "acquire write slot")
	}
	defer w.sem.Release(1)

	t, ok := w.schema.Table(table)
	if !ok {
		return nil, types.NewFailure(types.FamilyCreate, types.InvalidData, nil, "unknown table %q", table)
	}

	row := types.NewRow()
	stamp := w.clock.Now()

	for _, c := range t.Columns {
		if strings.HasSuffix(c.Name, "__hlc") {
			continue // shadow columns are derived below, never supplied directly
		}
		v, has := values.Get(c.Name)
		if !has {
			resolved, ok, err := c.ResolveDefault()
			if err != nil {
				return nil, types.NewFailure(types.FamilyCreate, types.ConstraintViolation, err, "column %q requires a value", c.Name)
			}
			if !ok {
				continue
			}
			v = resolved
		}
		if !v.Null() {
			if err := validateBounds(c, v); err != nil {
				return nil, types.NewFailure(types.FamilyCreate, types.InvalidData, err, "column %q", c.Name)
			}
		}
		row.Set(c.Name, v)
		if c.IsLWW {
			row.Set(c.ShadowName(), types.HLCValue(stamp.String()))
		}
	}

	if t.Column(schema.ColSystemCreatedAt) != nil {
		row.Set(schema.ColSystemCreatedAt, types.HLCValue(stamp.String()))
	}
	if t.Column(schema.ColSystemVersion) != nil {
		row.Set(schema.ColSystemVersion, types.HLCValue(stamp.String()))
	}

	idVal, hasID := row.Get(schema.ColSystemID)
	if !hasID {
		return nil, types.NewFailure(types.FamilyCreate, types.ConstraintViolation, nil, "table %q has no system_id value", table)
	}

	cols := row.Columns()
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = "?"
		v, _ := row.Get(c)
		args[i] = v.Raw()
	}
	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	if _, err := w.eng.ExecContext(ctx, sqlText, args...); err != nil {
		return nil, types.WrapEngineError(types.FamilyCreate, err, "insert into %q", table)
	}

	entryCols := make(map[string]string, len(cols))
	for _, c := range cols {
		v, _ := row.Get(c)
		entryCols[c] = v.Text()
	}
	if w.journal != nil {
		if err := w.journal.Record(ctx, journal.Entry{Table: table, RowID: idVal.Text(), Op: journal.OpInsert, Columns: entryCols, HLC: stamp.String()}); err != nil {
			return nil, err
		}
	}

	return &Change{Kind: ChangeInsert, Table: table, RowID: idVal.Text(), MutatedColumns: cols}, nil
}

// Update applies a partial column set through per-column LWW arbitration:
// a column commits only if its incoming stamp is strictly greater than the
// row's current shadow HLC for that column (or the column isn't LWW at
// all, in which case it always commits). Columns rejected by LWW are
// silently dropped from the statement; if every column in the change set
// is rejected, the row is left untouched entirely and system_version does
// not advance (see DESIGN.md for why).
func (w *Writer) Update(ctx context.Context, table, rowID string, changes *types.Row) (*Change, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, types.NewFailure(types.FamilyUpdate, types.Unreachable, err, "acquire write slot")
	}
	defer w.sem.Release(1)

	t, ok := w.schema.Table(table)
	if !ok {
		return nil, types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "unknown table %q", table)
	}
	pk := t.PrimaryKey()
	if pk == nil || len(pk.Columns) != 1 {
		return nil, types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "table %q has no single-column primary key", table)
	}

	stamp := w.clock.Now()

	existingShadows, err := w.readShadows(ctx, t, pk.Columns[0], rowID)
	if err != nil {
		return nil, err
	}
	if existingShadows == nil {
		return nil, types.NewFailure(types.FamilyUpdate, types.NotFound, nil, "row %q not found in %q", rowID, table)
	}

	setClauses := map[string]any{}
	accepted := []string{}
	for _, colName := range changes.Columns() {
		c := t.Column(colName)
		if c == nil {
			return nil, types.NewFailure(types.FamilyUpdate, types.InvalidData, nil, "unknown column %q on %q", colName, table)
		}
		v, _ := changes.Get(colName)
		if !v.Null() {
			if err := validateBounds(c, v); err != nil {
				return nil, types.NewFailure(types.FamilyUpdate, types.InvalidData, err, "column %q", colName)
			}
		}
		if c.IsLWW {
			if existing, ok := existingShadows[c.ShadowName()]; ok && !stamp.Greater(existing) {
				continue // a later write already won this column; drop silently
			}
			setClauses[c.ShadowName()] = stamp.String()
		}
		setClauses[colName] = v.Raw()
		accepted = append(accepted, colName)
	}

	if t.Column(schema.ColSystemVersion) != nil {
		setClauses[schema.ColSystemVersion] = stamp.String()
	}

	if len(accepted) == 0 {
		return &Change{Kind: ChangeUpdate, Table: table, RowID: rowID}, nil
	}

	cols := make([]string, 0, len(setClauses))
	for c := range setClauses {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		assignments[i] = c + " = ?"
		args = append(args, setClauses[c])
	}
	args = append(args, rowID)

	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(assignments, ", "), pk.Columns[0])
	if _, err := w.eng.ExecContext(ctx, sqlText, args...); err != nil {
		return nil, types.WrapEngineError(types.FamilyUpdate, err, "update %q row %q", table, rowID)
	}

	if w.journal != nil {
		entryCols := make(map[string]string, len(accepted))
		for _, c := range accepted {
			v, _ := changes.Get(c)
			entryCols[c] = v.Text()
		}
		if err := w.journal.Record(ctx, journal.Entry{Table: table, RowID: rowID, Op: journal.OpUpdate, Columns: entryCols, HLC: stamp.String()}); err != nil {
			return nil, err
		}
	}

	return &Change{Kind: ChangeUpdate, Table: table, RowID: rowID, MutatedColumns: accepted}, nil
}

// Delete removes a row outright. This module uses hard deletes rather than
// tombstones (see DESIGN.md): a deletion is journaled as an OpDelete entry
// so sync still propagates it.
func (w *Writer) Delete(ctx context.Context, table, rowID string) (*Change, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, types.NewFailure(types.FamilyDelete, types.Unreachable, err, "acquire write slot")
	}
	defer w.sem.Release(1)

	t, ok := w.schema.Table(table)
	if !ok {
		return nil, types.NewFailure(types.FamilyDelete, types.InvalidData, nil, "unknown table %q", table)
	}
	pk := t.PrimaryKey()
	if pk == nil || len(pk.Columns) != 1 {
		return nil, types.NewFailure(types.FamilyDelete, types.InvalidData, nil, "table %q has no single-column primary key", table)
	}

	sqlText := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, pk.Columns[0])
	result, err := w.eng.ExecContext(ctx, sqlText, rowID)
	if err != nil {
		return nil, types.WrapEngineError(types.FamilyDelete, err, "delete from %q", table)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, types.NewFailure(types.FamilyDelete, types.NotFound, nil, "row %q not found in %q", rowID, table)
	}

	if w.journal != nil {
		stamp := w.clock.Now()
		if err := w.journal.Record(ctx, journal.Entry{Table: table, RowID: rowID, Op: journal.OpDelete, HLC: stamp.String()}); err != nil {
			return nil, err
		}
	}

	return &Change{Kind: ChangeDelete, Table: table, RowID: rowID}, nil
}

// readShadows loads the current <col>__hlc values for every LWW column of
// t for the row identified by rowID, returning nil (no error) if the row
// doesn't exist.
func (w *Writer) readShadows(ctx context.Context, t *schema.Table, pkCol, rowID string) (map[string]hlc.Stamp, error) {
	lww := t.LWWColumns()
	cols := make([]string, len(lww))
	for i, c := range lww {
		cols[i] = c.ShadowName()
	}
	if len(cols) == 0 {
		cols = []string{pkCol}
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(cols, ", "), t.Name, pkCol)
	row := w.eng.QueryRowContext(ctx, query, rowID)

	dest := make([]any, len(cols))
	scanTargets := make([]sql.NullString, len(cols))
	for i := range dest {
		dest[i] = &scanTargets[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, types.WrapEngineError(types.FamilyRead, err, "read shadow columns of %q", t.Name)
	}

	out := map[string]hlc.Stamp{}
	for i, c := range cols {
		if c == pkCol && len(lww) == 0 {
			continue
		}
		if !scanTargets[i].Valid {
			continue
		}
		s, err := hlc.Parse(scanTargets[i].String)
		if err != nil {
			continue
		}
		out[c] = s
	}
	return out, nil
}

// ValidateBounds checks v against c's declared MaxLen/MinNum/MaxNum,
// exported so the typed record layer can validate a field the moment it's
// set rather than waiting for Save to round-trip through Insert/Update.
func ValidateBounds(c *schema.Column, v types.Value) error {
	return validateBounds(c, v)
}

func validateBounds(c *schema.Column, v types.Value) error {
	if c.MaxLen != nil && len(v.Text()) > *c.MaxLen {
		return fmt.Errorf("value exceeds max length %d", *c.MaxLen)
	}
	if c.MinNum != nil || c.MaxNum != nil {
		var n float64
		switch c.Kind {
		case types.KindInteger:
			n = float64(v.Int())
		case types.KindReal:
			n = v.Real()
		default:
			return nil
		}
		if c.MinNum != nil && n < *c.MinNum {
			return fmt.Errorf("value %v below minimum %v", n, *c.MinNum)
		}
		if c.MaxNum != nil && n > *c.MaxNum {
			return fmt.Errorf("value %v above maximum %v", n, *c.MaxNum)
		}
	}
	return nil
}
