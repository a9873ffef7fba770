package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graknol/declarative-sqlite/internal/journal"
)

// syncStatusCmd reports dirty-row counts per table. reactorctl has no live
// Transport configured (that's supplied by the embedding application), so
// this is as far as a generic CLI can go: it demonstrates the journal's
// bookkeeping without driving an actual push/pull round trip.
var syncStatusCmd = &cobra.Command{
	Use:   "sync status",
	Short: "Report dirty-row counts per declared table",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		decl, err := loadSchema()
		if err != nil {
			return err
		}
		ctx := context.Background()
		eng, err := openEngine(ctx, settings.Engine)
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := journal.EnsureTable(ctx, eng); err != nil {
			return err
		}
		store := journal.NewStore(eng)

		total := 0
		for _, t := range decl.Tables {
			entries, err := store.ListDirty(ctx, t.Name)
			if err != nil {
				return fmt.Errorf("reactorctl: list dirty rows for %q: %w", t.Name, err)
			}
			if len(entries) == 0 {
				continue
			}
			fmt.Printf("%-24s %d dirty row(s)\n", t.Name, len(entries))
			total += len(entries)
		}
		if total == 0 {
			fmt.Println("no dirty rows; everything is synced")
		}
		return nil
	},
}
