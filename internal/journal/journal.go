// Package journal tracks dirty rows: rows mutated locally since they were
// last synced to a server, carrying the minimum-diff payload of just the
// columns that changed. The journal itself is a system table so it
// survives process restarts.
package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// TableName is the system table backing the journal.
const TableName = "__dirty_rows"

// Op classifies the kind of mutation a dirty entry represents.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Entry is one dirty row: the minimum set of columns that changed since the
// row was last synced (or, for inserts/deletes, the full row / just the
// identity).
type Entry struct {
	Table   string
	RowID   string
	Op      Op
	Columns map[string]string // column name -> Value.Text() form
	HLC     string
}

// EnsureTable creates the journal's backing table if it doesn't exist yet.
// Called once during migration, alongside the fileset __files table. There
// is deliberately no primary key on (table_name, row_id): a row can carry
// any number of pending entries, one per committed mutation, so the same
// row_id recurs across rows of this table.
func EnsureTable(ctx context.Context, eng engine.Engine) error {
	_, err := eng.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  table_name TEXT NOT NULL,
  row_id TEXT NOT NULL,
  op TEXT NOT NULL,
  payload TEXT NOT NULL,
  hlc TEXT NOT NULL
)`, TableName))
	if err != nil {
		return types.WrapEngineError(types.FamilyMigration, err, "create dirty-row journal table")
	}
	_, err = eng.ExecContext(ctx, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_table_row ON %s (table_name, row_id)", TableName[2:], TableName))
	if err != nil {
		return types.WrapEngineError(types.FamilyMigration, err, "create dirty-row journal index")
	}
	return nil
}

// Store records and enumerates dirty rows against a live engine connection.
type Store struct {
	eng engine.Engine
}

func NewStore(eng engine.Engine) *Store { return &Store{eng: eng} }

// Record appends a new dirty entry for one committed mutation. Entries are
// never merged: a row updated twice between sync cycles ends up with two
// separate entries, each carrying exactly the fields that mutation
// committed, so the minimum-diff contract holds per mutation rather than
// per row (dirty_rows() replays them in the order they committed).
func (s *Store) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Columns)
	if err != nil {
		return fmt.Errorf("journal: marshal payload: %w", err)
	}
	_, err = s.eng.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (table_name, row_id, op, payload, hlc) VALUES (?, ?, ?, ?, ?)", TableName),
		e.Table, e.RowID, string(e.Op), string(payload), e.HLC)
	if err != nil {
		return types.WrapEngineError(types.FamilySync, err, "record dirty row %s/%s", e.Table, e.RowID)
	}
	return nil
}

// ListDirty returns every pending entry in commit order, optionally
// restricted to one table (table == "" lists all tables).
func (s *Store) ListDirty(ctx context.Context, table string) ([]Entry, error) {
	query := fmt.Sprintf("SELECT table_name, row_id, op, payload, hlc FROM %s", TableName)
	args := []any{}
	if table != "" {
		query += " WHERE table_name = ?"
		args = append(args, table)
	}
	query += " ORDER BY hlc ASC"
	rows, err := s.eng.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.WrapEngineError(types.FamilyRead, err, "list dirty rows")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var op, payload string
		if err := rows.Scan(&e.Table, &e.RowID, &op, &payload, &e.HLC); err != nil {
			return nil, types.WrapEngineError(types.FamilyRead, err, "scan dirty row")
		}
		e.Op = Op(op)
		var cols map[string]string
		if err := json.Unmarshal([]byte(payload), &cols); err != nil {
			return nil, fmt.Errorf("journal: unmarshal payload: %w", err)
		}
		e.Columns = cols
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSynced removes every pending entry for a row once the server has
// acknowledged it, so none of them are resent on the next sync pass. A row
// synced after several local mutations clears all of its accumulated
// entries at once, not just the most recent one.
func (s *Store) MarkSynced(ctx context.Context, table, rowID string) error {
	_, err := s.eng.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE table_name = ? AND row_id = ?", TableName), table, rowID)
	if err != nil {
		return types.WrapEngineError(types.FamilySync, err, "mark synced %s/%s", table, rowID)
	}
	return nil
}

// Discard drops all of a row's pending entries without syncing them, used
// when a local row is superseded by a remote write during apply_remote.
func (s *Store) Discard(ctx context.Context, table, rowID string) error {
	return s.MarkSynced(ctx, table, rowID)
}
