package main

import (
	"fmt"
	"os"

	"pocket/cmd/pocket/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		os.Exit(commands.ExitCode(err))
	}
}
