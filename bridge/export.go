// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/miniscope/calab/lib/codec"
)

// ReadExport reads a CaTune export file without normalizing it. Files
// ending in .cbor are decoded as CBOR; anything else is read as JSON,
// tolerating comments and trailing commas so hand-edited exports load.
// The root must be an object.
func ReadExport(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if isCBOR(path) {
		err = codec.Unmarshal(data, &payload)
	} else {
		err = json.Unmarshal(jsonc.ToJSON(data), &payload)
	}
	if err != nil {
		return nil, fmt.Errorf("bridge: parsing export %s: %w", path, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("bridge: export %s is not an object", path)
	}
	return payload, nil
}

// LoadExport reads and normalizes a CaTune export. The export must carry
// its own sampling rate.
func LoadExport(path string) (*Params, error) {
	params, err := LoadParams(path, 0)
	if err != nil {
		return nil, err
	}
	if params.SamplingRate == 0 {
		return nil, fmt.Errorf("bridge: export %s has no sampling rate", path)
	}
	return params, nil
}

// LoadParams reads and normalizes a CaTune export, using fallbackRate
// when the export has no sampling rate.
func LoadParams(path string, fallbackRate float64) (*Params, error) {
	payload, err := ReadExport(path)
	if err != nil {
		return nil, err
	}
	return Normalize(payload, fallbackRate), nil
}

// SaveParams writes params to path as CBOR when the name ends in .cbor
// and as indented JSON otherwise.
func SaveParams(path string, params *Params) error {
	if params == nil {
		return fmt.Errorf("bridge: no parameters to save")
	}

	var data []byte
	var err error
	if isCBOR(path) {
		data, err = codec.Marshal(params)
	} else {
		data, err = json.MarshalIndent(params, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("bridge: encoding parameters: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("bridge: writing %s: %w", path, err)
	}
	return nil
}

// Sidecar is the JSON metadata file written next to a traces array by
// the CaLab converters.
type Sidecar struct {
	Path string

	// SamplingRate is the sampling_rate_hz field, or zero.
	SamplingRate float64

	// SchemaVersion is the schema_version field formatted as text, or
	// empty.
	SchemaVersion string

	// Fields holds every field in the file.
	Fields map[string]any
}

// SidecarPath returns the metadata file name for a traces file:
// "cells.npy" pairs with "cells_metadata.json".
func SidecarPath(tracesPath string) string {
	return strings.TrimSuffix(tracesPath, filepath.Ext(tracesPath)) + "_metadata.json"
}

// ReadSidecar reads the metadata file paired with tracesPath. If there
// is none, the returned error wraps fs.ErrNotExist.
func ReadSidecar(tracesPath string) (*Sidecar, error) {
	path := SidecarPath(tracesPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &fields); err != nil {
		return nil, fmt.Errorf("bridge: parsing metadata %s: %w", path, err)
	}

	sidecar := &Sidecar{Path: path, Fields: fields}
	if rate := lookupNumber(fields, "sampling_rate_hz"); rate != nil {
		sidecar.SamplingRate = *rate
	}
	if version, ok := fields["schema_version"]; ok && version != nil {
		sidecar.SchemaVersion = fmt.Sprint(version)
	}
	return sidecar, nil
}

func isCBOR(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}
