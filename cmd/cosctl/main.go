package main

import (
	"fmt"
	"os"

	"github.com/cosconsole/cmd/cosctl/cli"
)

var version = "0.1.0-dev"

func main() {
	root := cli.NewRootCommand(version)

	root.AddCommand(cli.NewStatusCommand())
	root.AddCommand(cli.NewResetCommand())
	root.AddCommand(cli.NewMigrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.Error.Sprint("error:"), err)
		os.Exit(1)
	}
}
