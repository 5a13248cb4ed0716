// Package main is the entry point for the Poseidon CLI.
// Poseidon provides command-line access to the Poken REST API.
package main

import (
	"os"

	"github.com/poken/poseidon/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
