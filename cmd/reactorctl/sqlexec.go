package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/graknol/declarative-sqlite/internal/engine"
)

// runRawQuery executes a literal SELECT against eng and prints each row as a
// JSON object, one per line. This bypasses the structured query builder and
// dependency analyzer entirely: it is a convenience for inspecting a
// database from the command line, not how an application reads data.
func runRawQuery(ctx context.Context, eng engine.Engine, sqlText string) error {
	rows, err := eng.QueryContext(ctx, sqlText)
	if err != nil {
		return fmt.Errorf("reactorctl: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("reactorctl: columns: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	count := 0
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("reactorctl: scan: %w", err)
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = dest[i]
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reactorctl: rows: %w", err)
	}
	fmt.Fprintf(os.Stderr, "(%d row(s))\n", count)
	return nil
}
