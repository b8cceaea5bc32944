// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/miniscope/calab/lib/codec"
)

func writeFile(t *testing.T, directory, name, content string) string {
	t.Helper()
	path := filepath.Join(directory, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadExportJSON(t *testing.T) {
	directory := t.TempDir()
	path := writeFile(t, directory, "catune-export.json", `{
		// exported from CaTune
		"schema_version": 2,
		"parameters": {
			"tau_rise_s": 0.02,
			"tau_decay_s": 0.4,
			"lambda": 0.01,
			"sampling_rate_hz": 30,
			"filter_enabled": true,
		},
	}`)

	params, err := LoadExport(path)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	want := &Params{TauRise: float(0.02), TauDecay: float(0.4), Lambda: float(0.01), SamplingRate: 30, FilterEnabled: true}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadExportRequiresSamplingRate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "flat.json", `{"tau_rise":0.01,"tau_decay":0.2}`)

	if _, err := LoadExport(path); err == nil {
		t.Fatal("expected error for an export without a sampling rate")
	}
	params, err := LoadParams(path, 20)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if params.SamplingRate != 20 {
		t.Fatalf("sampling rate = %v, want the fallback 20", params.SamplingRate)
	}
}

func TestLoadExportCBOR(t *testing.T) {
	data, err := codec.Marshal(map[string]any{
		"parameters": map[string]any{"tau_rise_s": 0.05, "tau_decay_s": 1, "sampling_rate_hz": 20},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "export.cbor")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	params, err := LoadExport(path)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	want := &Params{TauRise: float(0.05), TauDecay: float(1), SamplingRate: 20}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestReadExportErrors(t *testing.T) {
	directory := t.TempDir()
	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(directory, "absent.json")},
		{"invalid JSON", writeFile(t, directory, "broken.json", `{"tau_rise":`)},
		{"array root", writeFile(t, directory, "array.json", `[1, 2]`)},
		{"null root", writeFile(t, directory, "null.json", `null`)},
		{"invalid CBOR", writeFile(t, directory, "broken.cbor", "\xff\xfe")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ReadExport(test.path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSaveParamsRoundTrip(t *testing.T) {
	params := &Params{TauRise: float(0.02), TauDecay: float(0.4), Lambda: float(0.01), SamplingRate: 30, FilterEnabled: true}
	for _, name := range []string{"params.json", "params.cbor"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := SaveParams(path, params); err != nil {
				t.Fatalf("SaveParams: %v", err)
			}
			loaded, err := LoadExport(path)
			if err != nil {
				t.Fatalf("LoadExport: %v", err)
			}
			if diff := cmp.Diff(params, loaded); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if err := SaveParams(filepath.Join(t.TempDir(), "none.json"), nil); err == nil {
		t.Fatal("SaveParams(nil) succeeded")
	}
}

func TestReadSidecar(t *testing.T) {
	directory := t.TempDir()
	tracesPath := filepath.Join(directory, "cells.npy")

	if got := SidecarPath(tracesPath); got != filepath.Join(directory, "cells_metadata.json") {
		t.Fatalf("SidecarPath = %q", got)
	}
	if _, err := ReadSidecar(tracesPath); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("missing sidecar error = %v, want fs.ErrNotExist", err)
	}

	writeFile(t, directory, "cells_metadata.json", `{"sampling_rate_hz": 30.0, "schema_version": 1, "source": "caiman"}`)
	sidecar, err := ReadSidecar(tracesPath)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if sidecar.SamplingRate != 30 || sidecar.SchemaVersion != "1" || sidecar.Fields["source"] != "caiman" {
		t.Fatalf("sidecar = %+v", sidecar)
	}
}
