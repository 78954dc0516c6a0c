// Package main provides the entry point for tokengate-cli.
//
// tokengate-cli is the command-line management tool for TokenGate. It
// opens the configured token store directly, so it works against the
// same backend the daemon uses.
package main

import (
	"fmt"
	"os"

	"github.com/norlun/tokengate-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
