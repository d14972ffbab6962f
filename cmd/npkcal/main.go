package main

import (
	"os"

	"github.com/agrisense-lab/npkcal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
