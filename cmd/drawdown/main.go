package main

import (
	"os"

	"github.com/rustyeddy/drawdown/cmd/drawdown/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
