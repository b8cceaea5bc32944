// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the calab command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/miniscope/calab/bridge"
	"github.com/miniscope/calab/cmd/calab/cli"
	"github.com/miniscope/calab/lib/version"
)

// Environment is what the commands read from and write to. The zero value
// uses the process streams and the system browser.
type Environment struct {
	// Stdout receives command results: parameter JSON, file summaries.
	Stdout io.Writer

	// Stderr receives help, operator messages, and log output.
	Stderr io.Writer

	// Opener launches the browser for "calab tune". Nil uses
	// bridge.SystemOpener.
	Opener bridge.Opener
}

func (e Environment) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e Environment) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func (e Environment) logger(level slog.Level) *slog.Logger {
	return cli.NewCommandLogger(e.stderr(), level)
}

// Run executes the command line args (without the program name).
func Run(ctx context.Context, env Environment, args []string) error {
	if len(args) == 1 && args[0] == "--version" {
		fmt.Fprintf(env.stdout(), "calab %s\n", version.Info())
		return nil
	}
	return Root(env).Execute(ctx, args)
}

// Root returns the top-level command.
func Root(env Environment) *cli.Command {
	return &cli.Command{
		Name:        "calab",
		Description: "CaLab: calcium imaging analysis tools.",
		HelpOutput:  env.stderr(),
		Subcommands: []*cli.Command{
			tuneCommand(env),
			infoCommand(env),
			kernelCommand(env),
			probeCommand(env),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(ctx context.Context, args []string) error {
					fmt.Fprintf(env.stdout(), "calab %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Tune deconvolution parameters for a recording",
				Command:     "calab tune traces.npy --fs 30",
			},
			{
				Description: "Inspect a CaTune export",
				Command:     "calab info catune-params.json",
			},
		},
	}
}
