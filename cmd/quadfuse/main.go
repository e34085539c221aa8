// Package main provides the entry point for the quadfuse CLI.
package main

import (
	"os"

	"github.com/quadfuse/quadfuse/cmd/quadfuse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
