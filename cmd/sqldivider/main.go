// Command sqldivider is an interactive SQL workbench.
//
// Configuration is read from ./sqldivider.yaml (or --config), SQLDIVIDER_*
// environment variables and flags, in increasing order of precedence.
//
// Usage:
//
//	go run ./cmd/sqldivider
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
