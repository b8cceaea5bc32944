// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"math"
)

// Params is the canonical deconvolution configuration recovered from a
// CaTune export. Pointer fields are nil when the export did not carry a
// numeric value for them.
type Params struct {
	TauRise       *float64 `json:"tau_rise"`
	TauDecay      *float64 `json:"tau_decay"`
	Lambda        *float64 `json:"lambda"`
	SamplingRate  float64  `json:"fs"`
	FilterEnabled bool     `json:"filter_enabled"`
}

// Complete reports whether every time constant and the penalty weight
// are present.
func (p *Params) Complete() bool {
	return p.TauRise != nil && p.TauDecay != nil && p.Lambda != nil
}

// Normalize converts an exported configuration into Params.
//
// CaTune exports either nest the values under a "parameters" object or
// place them at the top level; a "parameters" value that is not an object
// is ignored and the top level is read instead. Within the chosen object
// the current key spelling wins over the legacy alias:
//
//	tau_rise_s       > tau_rise
//	tau_decay_s      > tau_decay
//	lambda           > lambda_
//	sampling_rate_hz > fs > fallbackRate
//	filter_enabled   (default false)
//
// A key whose value is not a number (or not a boolean, for
// filter_enabled) is treated as absent, so a lower-precedence alias can
// still supply the value.
func Normalize(payload map[string]any, fallbackRate float64) *Params {
	source := payload
	if nested, ok := payload["parameters"].(map[string]any); ok {
		source = nested
	}

	params := &Params{
		TauRise:      lookupNumber(source, "tau_rise_s", "tau_rise"),
		TauDecay:     lookupNumber(source, "tau_decay_s", "tau_decay"),
		Lambda:       lookupNumber(source, "lambda", "lambda_"),
		SamplingRate: fallbackRate,
	}
	if rate := lookupNumber(source, "sampling_rate_hz", "fs"); rate != nil {
		params.SamplingRate = *rate
	}
	if enabled, ok := source["filter_enabled"].(bool); ok {
		params.FilterEnabled = enabled
	}
	return params
}

// lookupNumber returns the first key, in order, holding a numeric value.
func lookupNumber(source map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		if value, ok := asFloat(source[key]); ok {
			return &value
		}
	}
	return nil
}

// asFloat converts the numeric types produced by encoding/json and the
// CBOR decoder to float64. NaN is rejected, since no parameter can take
// it and CaTune never exports it.
func asFloat(value any) (float64, bool) {
	var result float64
	switch v := value.(type) {
	case float64:
		result = v
	case float32:
		result = float64(v)
	case int:
		result = float64(v)
	case int8:
		result = float64(v)
	case int16:
		result = float64(v)
	case int32:
		result = float64(v)
	case int64:
		result = float64(v)
	case uint:
		result = float64(v)
	case uint8:
		result = float64(v)
	case uint16:
		result = float64(v)
	case uint32:
		result = float64(v)
	case uint64:
		result = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		result = parsed
	default:
		return 0, false
	}
	if math.IsNaN(result) {
		return 0, false
	}
	return result, true
}
