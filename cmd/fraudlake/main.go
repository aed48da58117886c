// Package main is the entry point for the fraudlake binary.
package main

import (
	"os"

	"fraud-lake/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
