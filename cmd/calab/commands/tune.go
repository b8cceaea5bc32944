// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/miniscope/calab/bridge"
	"github.com/miniscope/calab/cmd/calab/cli"
	"github.com/miniscope/calab/lib/config"
	"github.com/miniscope/calab/lib/npy"
)

type tuneParams struct {
	SamplingRate float64       `flag:"fs" desc:"sampling rate in Hz (default: sampling_rate_hz from <stem>_metadata.json)"`
	Port         int           `flag:"port" desc:"loopback port for the bridge (0 picks a free port)"`
	Timeout      time.Duration `flag:"timeout" desc:"give up after this long (0 waits until the browser disconnects)"`
	AppURL       string        `flag:"app-url" desc:"CaTune deployment to open"`
	NoBrowser    bool          `flag:"no-browser" desc:"print the URL instead of opening a browser"`
	Output       string        `flag:"output,o" desc:"also write the parameters to this file (.json or .cbor)"`
	ConfigPath   string        `flag:"config" desc:"config file (default: $CALAB_CONFIG)"`
	Verbose      bool          `flag:"verbose,v" desc:"log debug output"`
}

func tuneCommand(env Environment) *cli.Command {
	var params tuneParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "tune",
		Summary: "Tune deconvolution parameters in the browser",
		Description: `Serve a traces matrix to CaTune and wait for the exported parameters.

The traces file is a NumPy .npy array of shape (cells, timepoints) or a
single trace. A local bridge on 127.0.0.1 serves it to the browser, which
is opened at the CaTune URL with a bridge= query parameter. When CaTune
posts its export, the normalized parameters are printed to stdout as JSON.

The command exits 1 if no parameters arrive: the timeout elapsed, the
browser stopped sending heartbeats, or the command was interrupted.`,
		Usage: "calab tune <traces.npy> [flags]",
		Examples: []cli.Example{
			{
				Description: "Tune a 30 Hz recording",
				Command:     "calab tune traces.npy --fs 30",
			},
			{
				Description: "Use a local CaTune dev server and keep the result",
				Command:     "calab tune traces.npy --app-url http://localhost:5173/ --no-browser -o params.json",
			},
		},
		Flags: func() *pflag.FlagSet {
			params = tuneParams{}
			flagSet = cli.FlagsFromParams("tune", &params)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one traces file, got %d arguments\n\nRun 'calab tune --help' for usage.", len(args))
			}
			return runTune(ctx, env, args[0], params, flagSet)
		},
	}
}

func runTune(ctx context.Context, env Environment, path string, params tuneParams, flagSet *pflag.FlagSet) error {
	cfg, err := config.Resolve(params.ConfigPath)
	if err != nil {
		return err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	if params.Verbose {
		level = slog.LevelDebug
	}
	logger := env.logger(level).With("command", "tune", "traces", path)
	if source := cfg.Source(); source != "" {
		logger.Debug("loaded config", "path", source)
	}

	traces, err := npy.ReadFile(path)
	if err != nil {
		return err
	}

	samplingRate := params.SamplingRate
	if samplingRate == 0 {
		samplingRate, err = sidecarRate(path)
		if err != nil {
			return err
		}
		if samplingRate == 0 {
			return fmt.Errorf("--fs (sampling rate) is required: %s has no sampling_rate_hz", bridge.SidecarPath(path))
		}
		logger.Info("sampling rate from metadata", "sampling_rate_hz", samplingRate)
	}

	timeout := params.Timeout
	if !flagSet.Changed("timeout") {
		if timeout, err = cfg.Bridge.TimeoutDuration(); err != nil {
			return err
		}
	}
	port := params.Port
	if !flagSet.Changed("port") {
		port = cfg.Bridge.Port
	}
	appURL := params.AppURL
	if appURL == "" {
		appURL = cfg.Bridge.AppURL
	}

	result, err := bridge.Tune(ctx, bridge.Options{
		Traces:       traces,
		SamplingRate: samplingRate,
		Timeout:      timeout,
		Port:         port,
		AppURL:       appURL,
		NoBrowser:    params.NoBrowser || !cfg.Bridge.OpenBrowser,
		Opener:       env.Opener,
		Logger:       logger,
		Output:       env.stderr(),
	})
	if err != nil {
		return err
	}

	if result.Params == nil {
		fmt.Fprintln(env.stderr(), "No parameters received.")
		return &cli.ExitError{Code: 1}
	}
	if !result.Params.Complete() {
		logger.Warn("export is missing parameters", "tau_rise", result.Params.TauRise != nil,
			"tau_decay", result.Params.TauDecay != nil, "lambda", result.Params.Lambda != nil)
	}

	if params.Output != "" {
		if err := bridge.SaveParams(params.Output, result.Params); err != nil {
			return err
		}
		fmt.Fprintf(env.stderr(), "Parameters written to %s\n", params.Output)
	}
	return cli.WriteJSON(env.stdout(), result.Params)
}

// sidecarRate returns the sampling rate recorded next to a traces file, or
// zero when there is no metadata file or it has no rate.
func sidecarRate(tracesPath string) (float64, error) {
	sidecar, err := bridge.ReadSidecar(tracesPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sidecar.SamplingRate, nil
}
