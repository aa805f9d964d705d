// Package main provides the entry point for ledgerctl.
//
// ledgerctl opens the ledger at storage.db_path, finishes any write
// interrupted by a crash, runs one command and closes the ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yndnr/acctledger/internal/cli/command"
	"github.com/yndnr/acctledger/internal/infra/shutdown"
)

func main() {
	ctx, stop := shutdown.WithSignals(context.Background())
	err := command.App().RunContext(ctx, os.Args)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
