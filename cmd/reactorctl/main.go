// Command reactorctl is a thin CLI wrapper around the data access stack:
// migrate, query, watch, sync status, and schema print, kept deliberately
// minimal. It is
// not how an application embeds this module day to day — that's done by
// declaring a schema.Builder in Go code directly — but it's handy for
// inspecting a database created by one.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graknol/declarative-sqlite/internal/config"
	"github.com/graknol/declarative-sqlite/internal/engine"
	"github.com/graknol/declarative-sqlite/internal/schema"
)

var (
	configPath string
	schemaPath string
	traceOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "reactorctl",
	Short: "reactorctl - inspect and migrate a declarative-sqlite database",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config.yaml (optional; defaults apply without one)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schema.json", "path to a JSON schema declaration")
	rootCmd.PersistentFlags().BoolVar(&traceOut, "trace", false, "print engine traces and metrics to stdout as the command runs")

	rootCmd.AddCommand(migrateCmd, queryCmd, watchCmd, syncStatusCmd, schemaPrintCmd)

	if traceOutRequested() {
		shutdown, err := setupStdoutTelemetry(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: telemetry setup:", err)
			os.Exit(1)
		}
		defer shutdown()
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// traceOutRequested checks for --trace before cobra parses flags, since the
// telemetry providers must be installed before any command runs, not after.
func traceOutRequested() bool {
	for _, a := range os.Args[1:] {
		if a == "--trace" || a == "-trace" {
			return true
		}
	}
	return false
}

func loadSettings() (config.Settings, error) {
	return config.NewLoader(configPath).Load()
}

func loadSchema() (*schema.Schema, error) {
	return LoadSchemaFile(schemaPath)
}

func openEngine(ctx context.Context, s config.EngineSettings) (engine.Engine, error) {
	switch s.System {
	case "", "sqlite":
		return engine.OpenSQLite(engine.OpenSQLiteOptions{Path: s.DSN})
	case "mysql":
		return engine.OpenMySQL(ctx, s.DSN)
	default:
		return nil, fmt.Errorf("reactorctl: unknown engine system %q", s.System)
	}
}
