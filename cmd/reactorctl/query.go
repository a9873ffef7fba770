package main

import (
	"context"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run a raw SELECT and print the results as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		ctx := context.Background()
		eng, err := openEngine(ctx, settings.Engine)
		if err != nil {
			return err
		}
		defer eng.Close()

		return runRawQuery(ctx, eng, args[0])
	},
}
