// Package main is catalogctl, the command line tool for content catalogs.
//
// It inspects catalogs, prints where every record is packed, verifies a
// deployment against a catalog, mints content ids and packs loose sources
// into .package fixtures.
package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := newRootCmd()
	root.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
