// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/miniscope/calab/bridge"
	"github.com/miniscope/calab/cmd/calab/cli"
)

type probeParams struct {
	cli.JSONOutput
	Timeout time.Duration `flag:"timeout" default:"5s" desc:"give up on the bridge after this long"`
}

type probeReport struct {
	URL      string          `json:"url"`
	Healthy  bool            `json:"healthy"`
	Status   bridge.Status   `json:"status"`
	Metadata bridge.Metadata `json:"metadata"`
}

func probeCommand(env Environment) *cli.Command {
	var params probeParams

	return &cli.Command{
		Name:    "probe",
		Summary: "Check a running bridge",
		Description: `Check that a bridge started by "calab tune" is reachable.

Accepts the bridge address (http://127.0.0.1:PORT) or the full CaTune URL
containing a bridge= parameter. Reports health, status, and the shape of
the traces being served. Probing does not count as a heartbeat.`,
		Usage: "calab probe <bridge-url> [flags]",
		Flags: func() *pflag.FlagSet {
			params = probeParams{}
			return cli.FlagsFromParams("probe", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one bridge URL, got %d arguments\n\nRun 'calab probe --help' for usage.", len(args))
			}
			client, err := bridge.NewClient(args[0])
			if err != nil {
				return err
			}
			if params.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, params.Timeout)
				defer cancel()
			}

			report := probeReport{URL: client.BaseURL()}
			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("bridge at %s is not healthy: %w", client.BaseURL(), err)
			}
			report.Healthy = true
			if report.Status, err = client.Status(ctx); err != nil {
				return err
			}
			if report.Metadata, err = client.Metadata(ctx); err != nil {
				return err
			}

			if done, err := params.EmitJSON(env.stdout(), report); done {
				return err
			}
			w := env.stdout()
			fmt.Fprintf(w, "Bridge: %s\n", report.URL)
			fmt.Fprintf(w, "  App: %s (ready: %t)\n", report.Status.App, report.Status.Ready)
			fmt.Fprintf(w, "  Cells: %d\n", report.Metadata.NumCells)
			fmt.Fprintf(w, "  Timepoints: %d\n", report.Metadata.NumTimepoints)
			fmt.Fprintf(w, "  Sampling rate: %g Hz\n", report.Metadata.SamplingRateHz)
			return nil
		},
	}
}
