package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/graknol/declarative-sqlite/internal/engine"
)

// watchCmd re-runs a raw SELECT every time the database file is written.
// It does not go through the reactive query manager's dependency analysis
// (that requires a query built with the structured query builder); instead
// it treats any write to the database file as a DDL-class invalidation of
// everything, which is the same coarse-grained signal a file-watching
// CLI typically falls back to for on-disk state it can't diff cheaply.
var watchCmd = &cobra.Command{
	Use:   "watch [sql]",
	Short: "Re-run a raw SELECT whenever the database file changes",
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

		return watchRawQuery(ctx, settings.Engine.DSN, eng, args[0])
	},
}

func watchRawQuery(ctx context.Context, dbPath string, eng engine.Engine, sqlText string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reactorctl: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(dbPath)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("reactorctl: watch %q: %w", dir, err)
	}
	base := filepath.Base(dbPath)

	if err := runRawQuery(ctx, eng, sqlText); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\nWatching %s for changes... (Ctrl+C to exit)\n", dbPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var debounce *time.Timer
	const debounceDelay = 300 * time.Millisecond

	for {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nstopped watching.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := runRawQuery(ctx, eng, sqlText); err != nil {
					fmt.Fprintf(os.Stderr, "reactorctl: refresh: %v\n", err)
					return
				}
				fmt.Fprintf(os.Stderr, "\nWatching %s for changes... (Ctrl+C to exit)\n", dbPath)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "reactorctl: watcher error: %v\n", err)
		}
	}
}
