// Package main is the entry point for the buildpulse CLI tool.
package main

import (
	"os"

	"github.com/good-yellow-bee/buildpulse/cmd/buildpulsectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
