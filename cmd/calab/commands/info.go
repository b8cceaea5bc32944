// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/miniscope/calab/bridge"
	"github.com/miniscope/calab/cmd/calab/cli"
	"github.com/miniscope/calab/lib/codec"
	"github.com/miniscope/calab/lib/npy"
)

type infoParams struct {
	cli.JSONOutput
	Diagnostic bool `flag:"diag" desc:"print CBOR diagnostic notation for .cbor exports"`
}

// arrayInfo describes a traces file.
type arrayInfo struct {
	Path         string   `json:"path"`
	Dtype        string   `json:"dtype"`
	Shape        []int    `json:"shape"`
	FortranOrder bool     `json:"fortran_order"`
	Cells        int      `json:"cells"`
	Timepoints   int      `json:"timepoints"`
	FileSize     int64    `json:"file_size"`
	Metadata     string   `json:"metadata,omitempty"`
	SamplingRate float64  `json:"sampling_rate_hz,omitempty"`
	Duration     *float64 `json:"duration_s,omitempty"`
	Schema       string   `json:"schema_version,omitempty"`
}

// exportInfo describes a CaTune export.
type exportInfo struct {
	Path       string         `json:"path"`
	Schema     string         `json:"schema_version,omitempty"`
	Nested     bool           `json:"nested"`
	Parameters *bridge.Params `json:"parameters"`
	Complete   bool           `json:"complete"`
	Kernel     *kernelSummary `json:"kernel,omitempty"`
	Keys       []string       `json:"keys"`
	raw        map[string]any
}

func infoCommand(env Environment) *cli.Command {
	var params infoParams

	return &cli.Command{
		Name:    "info",
		Summary: "Describe a traces array or a CaTune export",
		Description: `Describe a traces array or a CaTune export.

For a .npy file, prints the shape, dtype, and size, and the sampling rate
from the <stem>_metadata.json file next to it if there is one. For a .json
or .cbor export, prints the normalized parameters and, when they are
complete, the kernel they describe.`,
		Usage: "calab info <file> [flags]",
		Flags: func() *pflag.FlagSet {
			params = infoParams{}
			return cli.FlagsFromParams("info", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one file, got %d arguments\n\nRun 'calab info --help' for usage.", len(args))
			}
			path := args[0]
			switch extension := strings.ToLower(filepath.Ext(path)); extension {
			case ".npy":
				return runArrayInfo(env, path, params)
			case ".json", ".cbor":
				return runExportInfo(env, path, params)
			default:
				return fmt.Errorf("unknown file type %q (want .npy, .json, or .cbor)", extension)
			}
		},
	}
}

func runArrayInfo(env Environment, path string, params infoParams) error {
	info, err := describeArray(path)
	if err != nil {
		return err
	}
	if done, err := params.EmitJSON(env.stdout(), info); done {
		return err
	}

	w := env.stdout()
	fmt.Fprintf(w, "File: %s\n", info.Path)
	fmt.Fprintf(w, "  Shape: %s\n", formatShape(info.Shape))
	fmt.Fprintf(w, "  Dtype: %s\n", info.Dtype)
	fmt.Fprintf(w, "  Size: %s\n", humanize.Bytes(uint64(info.FileSize)))
	fmt.Fprintf(w, "  Cells: %s\n", humanize.Comma(int64(info.Cells)))
	fmt.Fprintf(w, "  Timepoints: %s\n", humanize.Comma(int64(info.Timepoints)))
	if info.Metadata != "" {
		fmt.Fprintf(w, "  Metadata: %s\n", info.Metadata)
	}
	if info.SamplingRate > 0 {
		fmt.Fprintf(w, "  Sampling rate: %s Hz\n", humanize.Ftoa(info.SamplingRate))
	}
	if info.Duration != nil {
		duration := time.Duration(*info.Duration * float64(time.Second)).Round(time.Millisecond)
		fmt.Fprintf(w, "  Duration: %s\n", duration)
	}
	if info.Schema != "" {
		fmt.Fprintf(w, "  Schema: v%s\n", info.Schema)
	}
	return nil
}

func describeArray(path string) (*arrayInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	header, err := npy.ReadHeader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	info := &arrayInfo{
		Path:         path,
		Dtype:        header.Descr,
		Shape:        header.Shape,
		FortranOrder: header.FortranOrder,
		FileSize:     stat.Size(),
	}
	switch len(header.Shape) {
	case 1:
		info.Cells, info.Timepoints = 1, header.Shape[0]
	case 2:
		info.Cells, info.Timepoints = header.Shape[0], header.Shape[1]
	default:
		return nil, fmt.Errorf("%s: %w: expected 1 or 2 dimensions, got shape %v", path, npy.ErrFormat, header.Shape)
	}

	sidecar, err := bridge.ReadSidecar(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		info.Metadata = sidecar.Path
		info.SamplingRate = sidecar.SamplingRate
		info.Schema = sidecar.SchemaVersion
		if sidecar.SamplingRate > 0 {
			duration := float64(info.Timepoints) / sidecar.SamplingRate
			info.Duration = &duration
		}
	}
	return info, nil
}

func runExportInfo(env Environment, path string, params infoParams) error {
	info, err := describeExport(path)
	if err != nil {
		return err
	}

	if params.Diagnostic {
		if !strings.EqualFold(filepath.Ext(path), ".cbor") {
			return fmt.Errorf("--diag applies only to .cbor exports")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		diagnostic, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintln(env.stdout(), diagnostic)
		return nil
	}

	if done, err := params.EmitJSON(env.stdout(), info); done {
		return err
	}

	w := env.stdout()
	fmt.Fprintf(w, "File: %s\n", info.Path)
	fmt.Fprintf(w, "  Type: CaTune export\n")
	if info.Schema != "" {
		fmt.Fprintf(w, "  Schema: v%s\n", info.Schema)
	}
	if info.Nested {
		if nested, ok := info.raw["parameters"].(map[string]any); ok {
			printFields(w, nested)
		}
	} else {
		fmt.Fprintf(w, "  Keys: %s\n", strings.Join(info.Keys, ", "))
	}
	fmt.Fprintf(w, "  Normalized: tau_rise=%s tau_decay=%s lambda=%s fs=%s filter=%t\n",
		formatOptional(info.Parameters.TauRise), formatOptional(info.Parameters.TauDecay),
		formatOptional(info.Parameters.Lambda), humanize.Ftoa(info.Parameters.SamplingRate),
		info.Parameters.FilterEnabled)
	if info.Kernel != nil {
		fmt.Fprintf(w, "  Kernel: %d samples, AR(2) g1=%.6f g2=%.6f\n",
			info.Kernel.Length, info.Kernel.AR2.G1, info.Kernel.AR2.G2)
	} else {
		fmt.Fprintln(w, "  Incomplete: the export is missing tau_rise, tau_decay, lambda, or a sampling rate")
	}
	return nil
}

func describeExport(path string) (*exportInfo, error) {
	payload, err := bridge.ReadExport(path)
	if err != nil {
		return nil, err
	}

	params := bridge.Normalize(payload, 0)
	info := &exportInfo{
		Path:       path,
		Parameters: params,
		Complete:   params.Complete() && params.SamplingRate > 0,
		Keys:       sortedKeys(payload),
		raw:        payload,
	}
	if version, ok := payload["schema_version"]; ok && version != nil {
		info.Schema = fmt.Sprint(version)
	}
	_, info.Nested = payload["parameters"].(map[string]any)
	if info.Complete {
		summary, err := summarizeKernel(*params.TauRise, *params.TauDecay, params.SamplingRate)
		if err == nil {
			info.Kernel = summary
		}
	}
	return info, nil
}

func printFields(w io.Writer, fields map[string]any) {
	for _, key := range sortedKeys(fields) {
		fmt.Fprintf(w, "  %s: %v\n", key, fields[key])
	}
}

func sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, dimension := range shape {
		parts[i] = fmt.Sprint(dimension)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatOptional(value *float64) string {
	if value == nil {
		return "-"
	}
	return humanize.Ftoa(*value)
}
