// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"

	"github.com/miniscope/calab/cmd/calab/commands"
)

func main() {
	if err := run(); err != nil {
		// "calab tune" prints its own reason before returning an
		// ExitError; don't add a redundant "error:" line.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parameters go to stdout; keep the browser launcher's chatter off it.
	browser.Stdout = os.Stderr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return commands.Run(ctx, commands.Environment{}, os.Args[1:])
}
