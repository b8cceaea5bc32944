// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/floats"

	"github.com/miniscope/calab/cmd/calab/cli"
	"github.com/miniscope/calab/kernel"
)

type kernelParams struct {
	cli.JSONOutput
	TauRise      float64 `flag:"tau-rise" desc:"rise time constant in seconds"`
	TauDecay     float64 `flag:"tau-decay" desc:"decay time constant in seconds"`
	SamplingRate float64 `flag:"fs" desc:"sampling rate in Hz"`
	Samples      bool    `flag:"samples" desc:"include every kernel sample"`
}

// kernelSummary is the set of quantities derived from one parameter set.
type kernelSummary struct {
	TauRise      float64    `json:"tau_rise"`
	TauDecay     float64    `json:"tau_decay"`
	SamplingRate float64    `json:"fs"`
	Length       int        `json:"length"`
	PeakIndex    int        `json:"peak_index"`
	PeakTime     float64    `json:"peak_time_s"`
	AR2          kernel.AR2 `json:"ar2"`
	Lipschitz    float64    `json:"lipschitz"`
	Samples      []float64  `json:"samples,omitempty"`

	kernel []float64
}

func summarizeKernel(tauRise, tauDecay, fs float64) (*kernelSummary, error) {
	values, err := kernel.Build(tauRise, tauDecay, fs)
	if err != nil {
		return nil, err
	}
	coefficients, err := kernel.TauToAR2(tauRise, tauDecay, fs)
	if err != nil {
		return nil, err
	}
	peak := floats.MaxIdx(values)
	return &kernelSummary{
		TauRise:      tauRise,
		TauDecay:     tauDecay,
		SamplingRate: fs,
		Length:       len(values),
		PeakIndex:    peak,
		PeakTime:     float64(peak) / fs,
		AR2:          coefficients,
		Lipschitz:    kernel.Lipschitz(values),
		kernel:       values,
	}, nil
}

func kernelCommand(env Environment) *cli.Command {
	var params kernelParams

	return &cli.Command{
		Name:    "kernel",
		Summary: "Print the calcium kernel for a parameter set",
		Description: `Print the double-exponential calcium kernel for a parameter set.

Reports the kernel length, where it peaks, the equivalent AR(2)
coefficients, and the Lipschitz constant the deconvolution solver uses
for its step size.`,
		Usage: "calab kernel --tau-rise S --tau-decay S --fs HZ [flags]",
		Examples: []cli.Example{
			{
				Description: "GCaMP6f-like kernel at 30 Hz",
				Command:     "calab kernel --tau-rise 0.02 --tau-decay 0.4 --fs 30",
			},
		},
		Flags: func() *pflag.FlagSet {
			params = kernelParams{}
			return cli.FlagsFromParams("kernel", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments %q\n\nRun 'calab kernel --help' for usage.", args)
			}
			summary, err := summarizeKernel(params.TauRise, params.TauDecay, params.SamplingRate)
			if err != nil {
				return err
			}
			if params.Samples {
				summary.Samples = summary.kernel
			}
			if done, err := params.EmitJSON(env.stdout(), summary); done {
				return err
			}

			w := env.stdout()
			fmt.Fprintf(w, "Kernel: tau_rise=%gs tau_decay=%gs fs=%g Hz\n", summary.TauRise, summary.TauDecay, summary.SamplingRate)
			fmt.Fprintf(w, "  Length: %d samples (%.3f s)\n", summary.Length, float64(summary.Length)/summary.SamplingRate)
			fmt.Fprintf(w, "  Peak: sample %d (%.3f s)\n", summary.PeakIndex, summary.PeakTime)
			fmt.Fprintf(w, "  AR(2): g1=%.6f g2=%.6f (d=%.6f r=%.6f)\n", summary.AR2.G1, summary.AR2.G2, summary.AR2.D, summary.AR2.R)
			fmt.Fprintf(w, "  Lipschitz: %.6g\n", summary.Lipschitz)
			if params.Samples {
				for i, value := range summary.Samples {
					fmt.Fprintf(w, "  %d\t%.9g\n", i, value)
				}
			}
			return nil
		},
	}
}
