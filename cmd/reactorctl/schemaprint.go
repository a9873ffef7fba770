package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graknol/declarative-sqlite/internal/migrate"
	"github.com/graknol/declarative-sqlite/internal/schema"
)

var schemaPrintCmd = &cobra.Command{
	Use:   "schema print",
	Short: "Render the declared schema as DDL-shaped text",
	RunE: func(cmd *cobra.Command, args []string) error {
		decl, err := loadSchema()
		if err != nil {
			return err
		}
		fmt.Print(RenderSchemaText(decl))
		return nil
	},
}

// RenderSchemaText renders decl as human-readable, DDL-shaped text: not
// part of the core library contract, a thin CLI convenience grounded in
// a CLI habit of printing derived state from its own sub-commands.
func RenderSchemaText(decl *schema.Schema) string {
	out := fmt.Sprintf("-- schema version %d\n", decl.Version)
	for _, t := range decl.Tables {
		ddl, err := migrate.RenderDDL(decl, migrate.Step{Kind: migrate.StepCreateTable, Table: t.Name})
		if err != nil {
			out += fmt.Sprintf("-- %s: %v\n", t.Name, err)
			continue
		}
		out += ddl + ";\n"
		for _, k := range t.Keys {
			if k.Kind == schema.KeyPrimary {
				continue // already rendered inline by the CREATE TABLE
			}
			idxDDL, err := migrate.RenderDDL(decl, migrate.Step{Kind: migrate.StepCreateIndex, Table: t.Name, Key: k})
			if err != nil {
				continue
			}
			out += idxDDL + ";\n"
		}
	}
	for _, v := range decl.Views {
		sql, err := v.Select.RenderSQL(func(name string) (*schema.Table, bool) { return decl.Table(name) })
		if err != nil {
			out += fmt.Sprintf("-- view %s: %v\n", v.Name, err)
			continue
		}
		viewDDL, err := migrate.RenderDDL(decl, migrate.Step{Kind: migrate.StepCreateView, Table: v.Name, View: v, SQL: sql})
		if err != nil {
			out += fmt.Sprintf("-- view %s: %v\n", v.Name, err)
			continue
		}
		out += viewDDL + ";\n"
	}
	return out
}
