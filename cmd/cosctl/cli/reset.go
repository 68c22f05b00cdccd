package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosconsole/internal/service"
)

func NewResetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the admin password, signing secret and bucket credentials",
		Long: "Returns the settings record to its uninitialized state so setup can run again. " +
			"Custom domain preferences are kept. All issued sessions become invalid.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}

			st, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := service.New(st, 0).Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", Success.Sprint("settings reset"), Muted.Sprint(st.Location()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
