package sync

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/hlc"
	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// ApplyResult reports what happened to one applied remote row.
type ApplyResult struct {
	RowID           string
	AppliedColumns  []string
	RejectedColumns []string
}

// ApplyRemote merges incoming remote rows into table using per-column LWW
// arbitration for LWW columns (commit only if the remote HLC is strictly
// greater than the row's stored shadow) and a caller-supplied updated_at
// tiebreak for non-LWW columns: the remote value wins unless the local row
// is strictly newer, so a tie favors the server.
func ApplyRemote(ctx context.Context, eng engine.Engine, t *schema.Table, rows []RemoteRow) ([]ApplyResult, error) {
	pk := t.PrimaryKey()
	if pk == nil || len(pk.Columns) != 1 {
		return nil, types.NewFailure(types.FamilySync, types.InvalidData, nil, "table %q has no single-column primary key", t.Name)
	}

	results := make([]ApplyResult, 0, len(rows))
	for _, r := range rows {
		res, err := applyOneRemoteRow(ctx, eng, t, pk.Columns[0], r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func applyOneRemoteRow(ctx context.Context, eng engine.Engine, t *schema.Table, pkCol string, r RemoteRow) (ApplyResult, error) {
	existingShadows, localUpdatedAt, exists, err := readRowState(ctx, eng, t, pkCol, r.RowID)
	if err != nil {
		return ApplyResult{}, err
	}

	res := ApplyResult{RowID: r.RowID}
	sets := map[string]any{}

	if !exists {
		// The row doesn't exist locally: insert it outright, columns and
		// shadows both taken verbatim from the remote write.
		cols := []string{pkCol}
		args := []any{r.RowID}
		for name, val := range r.Columns {
			c := t.Column(name)
			if c == nil {
				continue
			}
			cols = append(cols, name)
			args = append(args, val)
			res.AppliedColumns = append(res.AppliedColumns, name)
			if c.IsLWW {
				cols = append(cols, c.ShadowName())
				args = append(args, r.UpdatedAt)
			}
		}
		placeholders := make([]string, len(cols))
		for i := range placeholders {
			placeholders[i] = "?"
		}
		sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := eng.ExecContext(ctx, sqlText, args...); err != nil {
			return res, types.WrapEngineError(types.FamilySync, err, "insert remote row %q into %q", r.RowID, t.Name)
		}
		sort.Strings(res.AppliedColumns)
		return res, nil
	}

	remoteStamp, remoteStampErr := hlc.Parse(r.UpdatedAt)

	for name, val := range r.Columns {
		c := t.Column(name)
		if c == nil {
			continue
		}
		if c.IsLWW {
			existingText, hasShadow := existingShadows[c.ShadowName()]
			if remoteStampErr == nil && hasShadow {
				if existingStamp, err := hlc.Parse(existingText); err == nil && !remoteStamp.Greater(existingStamp) {
					res.RejectedColumns = append(res.RejectedColumns, name)
					continue
				}
			}
			sets[c.ShadowName()] = r.UpdatedAt
		} else {
			// Non-LWW: remote wins unless the local row is strictly newer;
			// a tie favors the server.
			if localUpdatedAt != "" && localUpdatedAt > r.UpdatedAt {
				res.RejectedColumns = append(res.RejectedColumns, name)
				continue
			}
		}
		sets[name] = val
		res.AppliedColumns = append(res.AppliedColumns, name)
	}

	if len(sets) == 0 {
		sort.Strings(res.RejectedColumns)
		return res, nil
	}

	cols := make([]string, 0, len(sets))
	for c := range sets {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		assignments[i] = c + " = ?"
		args = append(args, sets[c])
	}
	args = append(args, r.RowID)

	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.Name, strings.Join(assignments, ", "), pkCol)
	if _, err := eng.ExecContext(ctx, sqlText, args...); err != nil {
		return res, types.WrapEngineError(types.FamilySync, err, "apply remote row %q to %q", r.RowID, t.Name)
	}

	sort.Strings(res.AppliedColumns)
	sort.Strings(res.RejectedColumns)
	return res, nil
}

// readRowState loads the row's current LWW shadow values plus its
// system_version (used as the non-LWW tiebreak), returning exists=false if
// the row isn't present locally.
func readRowState(ctx context.Context, eng engine.Engine, t *schema.Table, pkCol, rowID string) (map[string]string, string, bool, error) {
	lww := t.LWWColumns()
	cols := make([]string, 0, len(lww)+1)
	for _, c := range lww {
		cols = append(cols, c.ShadowName())
	}
	hasVersion := t.Column(schema.ColSystemVersion) != nil
	if hasVersion {
		cols = append(cols, schema.ColSystemVersion)
	}
	if len(cols) == 0 {
		cols = []string{pkCol}
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(cols, ", "), t.Name, pkCol)
	row := eng.QueryRowContext(ctx, query, rowID)

	scanTargets := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = &scanTargets[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", false, nil
		}
		return nil, "", false, types.WrapEngineError(types.FamilyRead, err, "read row state for %q in %q", rowID, t.Name)
	}

	shadows := map[string]string{}
	var version string
	for i, c := range cols {
		if !scanTargets[i].Valid {
			continue
		}
		if hasVersion && c == schema.ColSystemVersion {
			version = scanTargets[i].String
			continue
		}
		shadows[c] = scanTargets[i].String
	}
	return parseShadows(shadows), version, true, nil
}

func parseShadows(raw map[string]string) map[string]string {
	// Kept as a pass-through seam: shadow values are already the fixed-width
	// HLC text form, parsed lazily at comparison time via hlc.Parse.
	return raw
}
