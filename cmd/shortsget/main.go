package main

import (
	"os"

	"github.com/shortsget/shortsget/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
