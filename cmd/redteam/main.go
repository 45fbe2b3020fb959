package main

import (
	"os"

	"redteam/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}
