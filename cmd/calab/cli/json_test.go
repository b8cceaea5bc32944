// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"testing"
)

func TestEmitJSON(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		var output JSONOutput
		var buffer bytes.Buffer
		done, err := output.EmitJSON(&buffer, map[string]int{"cells": 3})
		if done || err != nil {
			t.Fatalf("EmitJSON = (%v, %v), want (false, nil)", done, err)
		}
		if buffer.Len() != 0 {
			t.Errorf("wrote %q with --json unset", buffer.String())
		}
	})

	t.Run("enabled", func(t *testing.T) {
		output := JSONOutput{OutputJSON: true}
		var buffer bytes.Buffer
		done, err := output.EmitJSON(&buffer, map[string]int{"cells": 3})
		if !done || err != nil {
			t.Fatalf("EmitJSON = (%v, %v), want (true, nil)", done, err)
		}
		if got, want := buffer.String(), "{\n  \"cells\": 3\n}\n"; got != want {
			t.Errorf("output = %q, want %q", got, want)
		}
	})

	t.Run("nil slice becomes empty array", func(t *testing.T) {
		output := JSONOutput{OutputJSON: true}
		var buffer bytes.Buffer
		var values []float64
		if _, err := output.EmitJSON(&buffer, values); err != nil {
			t.Fatalf("EmitJSON: %v", err)
		}
		if got := buffer.String(); got != "[]\n" {
			t.Errorf("output = %q, want []", got)
		}
	})
}
