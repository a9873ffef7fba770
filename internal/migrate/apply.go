package migrate

import (
	"context"
	"database/sql"

	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/schema"
	"github.com/graknol/declarative-sqlite/internal/types"
)

// Apply introspects the live database, diffs it against declared, and
// executes the resulting plan inside a single transaction: either every
// step lands or none do (a TransactionFailure on
// a mid-migration failure with rollback).
func Apply(ctx context.Context, eng engine.Engine, declared *schema.Schema) (*Plan, error) {
	physical, err := Introspect(ctx, eng)
	if err != nil {
		return nil, types.WrapEngineError(types.FamilyMigration, err, "introspect physical schema")
	}

	plan, err := Diff(declared, physical)
	if err != nil {
		return nil, types.NewFailure(types.FamilyMigration, types.SchemaMismatch, err, "compute migration plan")
	}
	if len(plan.Steps) == 0 {
		return plan, nil
	}

	tx, err := eng.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, types.WrapEngineError(types.FamilyTransaction, err, "begin migration transaction")
	}

	for _, step := range plan.Steps {
		ddl, err := RenderDDL(declared, step)
		if err != nil {
			_ = tx.Rollback()
			return nil, types.NewFailure(types.FamilyMigration, types.SchemaMismatch, err, "render migration step for %q", step.Table)
		}
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			_ = tx.Rollback()
			return nil, types.NewFailure(types.FamilyTransaction, types.Rollback, err, "apply migration step %q", ddl)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, types.WrapEngineError(types.FamilyTransaction, err, "commit migration transaction")
	}

	return plan, nil
}
