package main

import (
	"os"

	"github.com/switchyard-io/switchyard/cmd/switchyard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
