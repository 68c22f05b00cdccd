package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/cosconsole/internal/store"
)

func NewMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the settings database",
		Long: "Applies migrations to the Postgres database named by --database-url, or to the " +
			"SQLite file named by --sqlite-path. SQLite databases are also migrated when the server opens them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, dsn := store.DialectPostgres, opts.databaseURL
			if dsn == "" {
				dialect, dsn = store.DialectSQLite, opts.sqlitePath
			}
			if dsn == "" {
				return errors.New("--database-url or --sqlite-path is required")
			}

			var source fs.FS
			if dir != "" {
				source = os.DirFS(dir)
			}

			version, err := store.MigrateDSN(cmd.Context(), dialect, dsn, source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s schema at version %d\n",
				Success.Sprint("ok"), dialect, version)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")
	return cmd
}
