// Package main provides the entry point for the notesage CLI.
package main

import (
	"os"

	"github.com/notesage/notesage/cmd/notesage/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
