package main

import (
	"os"

	"github.com/marmos91/dittocache/cmd/dittocache/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
