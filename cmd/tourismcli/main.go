package main

import (
	"os"

	"tourismcli/cmd/tourismcli/commands"
)

func main() {
	// Errors are printed by the commands themselves
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
