// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds CaLab's CBOR encoding configuration.
//
// Parameter exports are JSON when a person will read or edit them and
// CBOR when another program will. Both formats are produced from the same
// types: fxamacker/cbor reads `json` struct tags when no `cbor` tag is
// present, so a type tagged for JSON gets the same field names in CBOR.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same parameters always produce identical bytes. The decoder maps
// untyped CBOR maps to map[string]any, matching what encoding/json
// produces, so code that normalizes an export does not care which format
// it came from.
//
//	data, err := codec.Marshal(params)
//	err = codec.Unmarshal(data, &payload)
package codec
