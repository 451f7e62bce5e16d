// Package main is the entry point for the linear-agent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/linear-agent/cmd"
	"github.com/danielolaszy/linear-agent/internal/logging"
	"github.com/danielolaszy/linear-agent/internal/version"
)

func main() {
	logging.Debug("starting linear-agent", "version", version.Version)

	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
