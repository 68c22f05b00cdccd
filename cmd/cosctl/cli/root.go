// Package cli holds the operator commands for inspecting and recovering the
// console's settings record.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cosconsole/internal/config"
	"github.com/cosconsole/internal/store"
)

type storeOptions struct {
	settingsFile string
	sqlitePath   string
	databaseURL  string
}

var opts storeOptions

func NewRootCommand(version string) *cobra.Command {
	defaults, err := config.FromEnv()
	if err != nil {
		defaults = &config.Config{SettingsFile: "settings.json"}
	}

	var verbose bool
	cmd := &cobra.Command{
		Use:           "cosctl",
		Short:         "Operator tool for the COS image console",
		Long:          "Inspects, resets and migrates the settings record used by the COS image console server.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			var w io.Writer = cmd.ErrOrStderr()
			slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.settingsFile, "settings-file", defaults.SettingsFile, "path of the settings JSON file")
	cmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", defaults.SQLitePath, "path of a SQLite settings database (overrides --settings-file)")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", defaults.DatabaseURL, "PostgreSQL connection string (overrides --settings-file)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func openStore(ctx context.Context) (*store.SettingsStore, func(), error) {
	return store.Open(ctx, store.Source{
		File:        opts.settingsFile,
		SQLitePath:  opts.sqlitePath,
		PostgresURL: opts.databaseURL,
	})
}
