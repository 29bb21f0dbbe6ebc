// Package main is the entry point for the skiacanvas provisioning CLI.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	a := newApp()
	cmd := newRootCmd(a)
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		a.printError(cmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}
