package main

import (
	"os"

	"github.com/Ramsey-B/docket/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
