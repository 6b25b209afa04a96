package main

import (
	"os"

	"github.com/project-kessel/remoteclaim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
