package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graknol/declarative-sqlite/internal/journal"
	"github.com/graknol/declarative-sqlite/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Reconcile the database's physical schema with the declared schema",
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

		plan, err := migrate.Apply(ctx, eng, decl)
		if err != nil {
			return err
		}

		if len(plan.Steps) == 0 {
			fmt.Println("already up to date")
			return nil
		}
		fmt.Printf("applied %d migration step(s):\n", len(plan.Steps))
		for _, step := range plan.Steps {
			fmt.Printf("  - %s %s\n", step.Kind, step.Table)
		}
		return nil
	},
}
