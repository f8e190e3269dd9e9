package main

import (
	"os"

	"github.com/romkeeper/romkeeper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
