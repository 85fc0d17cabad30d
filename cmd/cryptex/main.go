package main

import (
	"os"

	"cryptex/cmd/cryptex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
