// Package main provides the entry point for tillvault.
//
// tillvault is a single-shop inventory and sales store with local
// backups. All data lives on this machine; no server is involved.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/tillvault-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
