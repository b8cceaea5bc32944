// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func float(value float64) *float64 { return &value }

func decodePayload(t *testing.T, body string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decoding %s: %v", body, err)
	}
	return payload
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		fallback float64
		want     Params
	}{
		{
			name:     "nested export",
			payload:  `{"parameters":{"tau_rise_s":0.02,"tau_decay_s":0.4,"lambda":0.01,"sampling_rate_hz":30.0,"filter_enabled":false}}`,
			fallback: 10,
			want:     Params{TauRise: float(0.02), TauDecay: float(0.4), Lambda: float(0.01), SamplingRate: 30},
		},
		{
			name:     "flat legacy payload",
			payload:  `{"tau_rise":0.01,"tau_decay":0.2}`,
			fallback: 30,
			want:     Params{TauRise: float(0.01), TauDecay: float(0.2), SamplingRate: 30},
		},
		{
			name:     "current keys win over legacy aliases",
			payload:  `{"tau_rise_s":0.03,"tau_rise":9,"tau_decay_s":0.5,"tau_decay":9,"lambda":0.2,"lambda_":9,"sampling_rate_hz":25,"fs":9}`,
			fallback: 30,
			want:     Params{TauRise: float(0.03), TauDecay: float(0.5), Lambda: float(0.2), SamplingRate: 25},
		},
		{
			name:     "fs used when sampling_rate_hz is absent",
			payload:  `{"fs":15,"lambda_":0.5}`,
			fallback: 30,
			want:     Params{Lambda: float(0.5), SamplingRate: 15},
		},
		{
			name:     "filter flag",
			payload:  `{"parameters":{"filter_enabled":true}}`,
			fallback: 30,
			want:     Params{SamplingRate: 30, FilterEnabled: true},
		},
		{
			name:     "non-numeric values are absent",
			payload:  `{"tau_rise_s":"fast","tau_rise":0.04,"tau_decay_s":null,"lambda":[1],"sampling_rate_hz":"30","filter_enabled":"yes"}`,
			fallback: 12,
			want:     Params{TauRise: float(0.04), SamplingRate: 12},
		},
		{
			name:     "nested object only is read",
			payload:  `{"tau_rise":0.9,"parameters":{"tau_decay_s":0.4}}`,
			fallback: 30,
			want:     Params{TauDecay: float(0.4), SamplingRate: 30},
		},
		{
			name:     "non-object parameters falls back to root",
			payload:  `{"parameters":"v2","tau_rise":0.05}`,
			fallback: 30,
			want:     Params{TauRise: float(0.05), SamplingRate: 30},
		},
		{
			name:     "empty payload",
			payload:  `{}`,
			fallback: 30,
			want:     Params{SamplingRate: 30},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Normalize(decodePayload(t, test.payload), test.fallback)
			if diff := cmp.Diff(&test.want, got); diff != "" {
				t.Fatalf("Normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeAcceptsDecoderNumberTypes(t *testing.T) {
	payload := map[string]any{
		"tau_rise":         json.Number("0.02"),
		"tau_decay":        uint64(1),
		"lambda":           int64(-2),
		"sampling_rate_hz": float32(25),
	}
	want := &Params{TauRise: float(0.02), TauDecay: float(1), Lambda: float(-2), SamplingRate: 25}
	if diff := cmp.Diff(want, Normalize(payload, 30)); diff != "" {
		t.Fatalf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestParamsWireNames(t *testing.T) {
	data, err := json.Marshal(Normalize(decodePayload(t,
		`{"parameters":{"tau_rise_s":0.02,"tau_decay_s":0.4,"lambda":0.01,"sampling_rate_hz":30.0,"filter_enabled":false}}`), 30))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"tau_rise":0.02,"tau_decay":0.4,"lambda":0.01,"fs":30,"filter_enabled":false}`
	if string(data) != want {
		t.Fatalf("JSON = %s, want %s", data, want)
	}
}

func TestParamsComplete(t *testing.T) {
	if (&Params{TauRise: float(1), TauDecay: float(2)}).Complete() {
		t.Fatal("params without lambda reported complete")
	}
	if !(&Params{TauRise: float(1), TauDecay: float(2), Lambda: float(0)}).Complete() {
		t.Fatal("params with every field reported incomplete")
	}
}
