// Package main is the entry point for the shelfwatch CLI.
package main

import (
	"os"

	"github.com/shelfwatch/shelfwatch/cmd/shelfwatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
