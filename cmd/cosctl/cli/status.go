package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cosconsole/internal/store"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the console is initialized and the bucket it targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "settings: %s\n", Highlight.Sprint(st.Location()))

			if err := st.Ping(cmd.Context()); err != nil {
				fmt.Fprintf(out, "backend:  %s %s\n", Error.Sprint("unreachable"), Muted.Sprint(err))
			}

			s, err := st.Read(cmd.Context())
			var readErr *store.ReadError
			if errors.As(err, &readErr) {
				fmt.Fprintf(out, "record:   %s %s\n", Error.Sprint("unreadable"), Muted.Sprint(readErr.Err))
				fmt.Fprintf(out, "run %s to recover\n", Highlight.Sprint("cosctl reset --yes"))
				return nil
			}
			if err != nil {
				return err
			}

			if !s.IsInitialized {
				fmt.Fprintf(out, "state:    %s\n", Warning.Sprint("not initialized"))
				return nil
			}
			fmt.Fprintf(out, "state:    %s\n", Success.Sprint("initialized"))
			safe := s.Safe()
			fmt.Fprintf(out, "bucket:   %s %s\n", safe.COS.Bucket, Muted.Sprint(safe.COS.Region))
			fmt.Fprintf(out, "secretId: %s\n", safe.COS.SecretID)
			if s.UseCustomDomain && s.CustomDomain != "" {
				fmt.Fprintf(out, "domain:   %s\n", s.CustomDomain)
			}
			if !store.ValidateCredentials(s.COS) {
				fmt.Fprintln(out, Warning.Sprint("credentials are incomplete or could not be decrypted"))
			}
			return nil
		},
	}
}
