// Package main is the entry point for jobctl, the command-line tool for
// interacting with the jobplane controller API.
package main

import (
	"os"

	"jobplane/cmd/jobctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
