// Package main is the entry point for the taxctl CLI.
package main

import (
	"os"

	"github.com/noah-isme/taxbridge/cmd/taxctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
