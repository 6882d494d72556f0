package main

import (
	"os"

	"github.com/dunamismax/voteframe/cmd/voteframe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
