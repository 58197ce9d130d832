// Package main is the entry point for the querybench binary.
package main

import (
	"os"

	"querybench/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
