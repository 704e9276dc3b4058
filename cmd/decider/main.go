package main

import (
	"os"

	"github.com/rustyeddy/decider/cmd/decider/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
