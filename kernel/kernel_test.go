// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestBuildShapeAndNormalization(t *testing.T) {
	kernel, err := Build(0.02, 0.4, 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// ceil(13.8155 * 0.4 * 30) = 166
	if len(kernel) != 166 {
		t.Fatalf("len(kernel) = %d, want 166", len(kernel))
	}
	if kernel[0] != 0 {
		t.Fatalf("kernel[0] = %v, want 0", kernel[0])
	}
	if peak := floats.Max(kernel); math.Abs(peak-1) > 1e-12 {
		t.Fatalf("peak = %v, want 1", peak)
	}
	if last := kernel[len(kernel)-1]; last <= 0 || last > 1e-5 {
		t.Fatalf("tail sample = %v, want a small positive value", last)
	}
}

func TestBuildMinimumLength(t *testing.T) {
	kernel, err := Build(0.001, 0.001, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(kernel) != 2 {
		t.Fatalf("len(kernel) = %d, want 2", len(kernel))
	}
}

func TestBuildRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name                  string
		tauRise, tauDecay, fs float64
	}{
		{"zero rise", 0, 0.4, 30},
		{"negative decay", 0.02, -1, 30},
		{"zero rate", 0.02, 0.4, 0},
		{"NaN rate", 0.02, 0.4, math.NaN()},
		{"infinite decay", 0.02, math.Inf(1), 30},
		{"kernel too long", 0.02, 1e6, 1e6},
		{"kernel just over the limit", 0.02, 1, float64(MaxLength)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Build(test.tauRise, test.tauDecay, test.fs); err == nil {
				t.Fatal("expected error")
			}
			if _, err := TauToAR2(test.tauRise, test.tauDecay, test.fs); err == nil {
				t.Fatal("expected error from TauToAR2")
			}
		})
	}
}

func TestLengthIsBounded(t *testing.T) {
	if got := Length(1e6, 1e6); got != MaxLength {
		t.Fatalf("Length(1e6, 1e6) = %d, want %d", got, MaxLength)
	}
	if got := Length(1e300, 1e300); got != MaxLength {
		t.Fatalf("Length(1e300, 1e300) = %d, want %d", got, MaxLength)
	}
}

func TestTauToAR2(t *testing.T) {
	coefficients, err := TauToAR2(0.02, 0.4, 30)
	if err != nil {
		t.Fatalf("TauToAR2: %v", err)
	}

	dt := 1.0 / 30
	wantD := math.Exp(-dt / 0.4)
	wantR := math.Exp(-dt / 0.02)
	if coefficients.D != wantD || coefficients.R != wantR {
		t.Fatalf("roots = (%v, %v), want (%v, %v)", coefficients.D, coefficients.R, wantD, wantR)
	}
	if coefficients.G1 != wantD+wantR {
		t.Fatalf("G1 = %v, want %v", coefficients.G1, wantD+wantR)
	}
	if coefficients.G2 != -(wantD * wantR) {
		t.Fatalf("G2 = %v, want %v", coefficients.G2, -(wantD * wantR))
	}
}

func TestLipschitz(t *testing.T) {
	t.Run("empty kernel", func(t *testing.T) {
		if got := Lipschitz(nil); got != minLipschitz {
			t.Fatalf("Lipschitz(nil) = %v, want %v", got, minLipschitz)
		}
	})

	t.Run("impulse", func(t *testing.T) {
		// A unit impulse has a flat spectrum of magnitude 1.
		if got := Lipschitz([]float64{1}); math.Abs(got-1) > 1e-12 {
			t.Fatalf("Lipschitz(impulse) = %v, want 1", got)
		}
	})

	t.Run("positive kernel peaks at DC", func(t *testing.T) {
		kernel := []float64{1, 0.5, 0.25}
		sum := floats.Sum(kernel)
		if got := Lipschitz(kernel); math.Abs(got-sum*sum) > 1e-12 {
			t.Fatalf("Lipschitz = %v, want %v", got, sum*sum)
		}
	})

	t.Run("zero kernel hits the floor", func(t *testing.T) {
		if got := Lipschitz(make([]float64, 4)); got != minLipschitz {
			t.Fatalf("Lipschitz(zeros) = %v, want %v", got, minLipschitz)
		}
	})
}
