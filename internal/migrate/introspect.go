package migrate

import (
	"context"
	"fmt"

	"github.com/graknol/declarative-sqlite/internal/engine"
)

// Introspect reads the physical schema of a SQLite database via the
// sqlite_master catalog and the PRAGMA table_info/index_list/index_info
// introspection pragmas: the same mechanism used to check column
// existence before altering, comparing the declared schema against
// what the database actually has.
func Introspect(ctx context.Context, eng engine.Engine) (PhysicalSchema, error) {
	phys := PhysicalSchema{Tables: map[string]PhysicalTable{}, Views: map[string]string{}}

	tableNames, err := listNames(ctx, eng, "table")
	if err != nil {
		return phys, err
	}
	for _, name := range tableNames {
		pt, err := introspectTable(ctx, eng, name)
		if err != nil {
			return phys, err
		}
		phys.Tables[name] = pt
	}

	views, err := introspectViews(ctx, eng)
	if err != nil {
		return phys, err
	}
	phys.Views = views

	return phys, nil
}

func listNames(ctx context.Context, eng engine.Engine, kind string) ([]string, error) {
	rows, err := eng.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%'", kind)
	if err != nil {
		return nil, fmt.Errorf("migrate: list %ss: %w", kind, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("migrate: scan %s name: %w", kind, err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func introspectTable(ctx context.Context, eng engine.Engine, table string) (PhysicalTable, error) {
	pt := PhysicalTable{Columns: map[string]bool{}, Indexes: map[string]PhysicalIndex{}}

	rows, err := eng.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return pt, fmt.Errorf("migrate: table_info(%s): %w", table, err)
	}
	func() {
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt any
			if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				continue
			}
			pt.Columns[name] = true
		}
	}()

	idxRows, err := eng.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return pt, fmt.Errorf("migrate: index_list(%s): %w", table, err)
	}
	type idxMeta struct {
		name   string
		unique bool
	}
	var metas []idxMeta
	func() {
		defer idxRows.Close()
		for idxRows.Next() {
			var seq int
			var name string
			var unique int
			var origin, partial any
			if err := idxRows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
				continue
			}
			metas = append(metas, idxMeta{name: name, unique: unique == 1})
		}
	}()

	for _, m := range metas {
		cols, err := introspectIndexColumns(ctx, eng, m.name)
		if err != nil {
			return pt, err
		}
		pt.Indexes[m.name] = PhysicalIndex{Columns: cols, IsUnique: m.unique}
	}

	return pt, nil
}

func introspectIndexColumns(ctx context.Context, eng engine.Engine, index string) ([]string, error) {
	rows, err := eng.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", index))
	if err != nil {
		return nil, fmt.Errorf("migrate: index_info(%s): %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name string
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func introspectViews(ctx context.Context, eng engine.Engine) (map[string]string, error) {
	rows, err := eng.QueryContext(ctx, "SELECT name, sql FROM sqlite_master WHERE type = 'view'")
	if err != nil {
		return nil, fmt.Errorf("migrate: list views: %w", err)
	}
	defer rows.Close()

	views := map[string]string{}
	for rows.Next() {
		var name, sqlText string
		if err := rows.Scan(&name, &sqlText); err != nil {
			return nil, err
		}
		views[name] = sqlText
	}
	return views, rows.Err()
}
