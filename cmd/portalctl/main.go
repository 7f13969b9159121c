// Package main is the entry point for the portalctl CLI.
package main

import (
	"os"

	"github.com/harman-health/portalctl/internal/cli"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
