// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel builds the double-exponential calcium response kernel and
// the closed-form quantities derived from it.
//
// Everything here is pure arithmetic on the tuned parameters (rise and decay
// time constants in seconds, sampling rate in Hz). The deconvolution solver
// consumes these values; the CLI prints them so a user can sanity-check a
// parameter set before running a batch.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// decayCutoff is the fraction of the peak below which the decay envelope
// is truncated.
const decayCutoff = 1e-6

// minLipschitz is the floor returned for degenerate kernels.
const minLipschitz = 1e-10

// MaxLength is the longest kernel Build will produce.
const MaxLength = 1 << 24

// AR2 holds the coefficients of the equivalent second-order autoregressive
// process c[t] = G1*c[t-1] + G2*c[t-2] + s[t].
type AR2 struct {
	G1 float64 `json:"g1"`
	G2 float64 `json:"g2"`

	// D and R are the characteristic roots for decay and rise.
	D float64 `json:"d"`
	R float64 `json:"r"`
}

// Validate reports whether the time constants and sampling rate are usable.
func Validate(tauRise, tauDecay, fs float64) error {
	for _, parameter := range []struct {
		name  string
		value float64
	}{
		{"tau_rise", tauRise},
		{"tau_decay", tauDecay},
		{"fs", fs},
	} {
		if !(parameter.value > 0) || math.IsInf(parameter.value, 0) {
			return fmt.Errorf("kernel: %s must be a positive finite number, got %v", parameter.name, parameter.value)
		}
	}
	if samples := samplesToCutoff(tauDecay, fs); samples > MaxLength {
		return fmt.Errorf("kernel: tau_decay %v s at %v Hz needs %.0f samples, more than %d", tauDecay, fs, samples, MaxLength)
	}
	return nil
}

// Length returns the number of samples in the kernel: long enough for the
// decay envelope to fall below decayCutoff of its peak, never fewer than
// two, and never more than MaxLength.
func Length(tauDecay, fs float64) int {
	samples := samplesToCutoff(tauDecay, fs)
	if !(samples <= MaxLength) {
		return MaxLength
	}
	return max(2, int(samples))
}

func samplesToCutoff(tauDecay, fs float64) float64 {
	dt := 1 / fs
	return math.Ceil(-math.Log(decayCutoff) * tauDecay / dt)
}

// Build returns h(t) = exp(-t/tauDecay) - exp(-t/tauRise) sampled at fs and
// scaled so its maximum is 1. A kernel with no positive peak (equal time
// constants) is returned unscaled.
func Build(tauRise, tauDecay, fs float64) ([]float64, error) {
	if err := Validate(tauRise, tauDecay, fs); err != nil {
		return nil, err
	}

	dt := 1 / fs
	kernel := make([]float64, Length(tauDecay, fs))
	for i := range kernel {
		t := float64(i) * dt
		kernel[i] = math.Exp(-t/tauDecay) - math.Exp(-t/tauRise)
	}

	if peak := floats.Max(kernel); peak > 0 {
		floats.Scale(1/peak, kernel)
	}
	return kernel, nil
}

// TauToAR2 derives the AR(2) coefficients from the time constants:
// d = exp(-dt/tauDecay), r = exp(-dt/tauRise), g1 = d + r, g2 = -(d*r).
func TauToAR2(tauRise, tauDecay, fs float64) (AR2, error) {
	if err := Validate(tauRise, tauDecay, fs); err != nil {
		return AR2{}, err
	}
	dt := 1 / fs
	d := math.Exp(-dt / tauDecay)
	r := math.Exp(-dt / tauRise)
	return AR2{G1: d + r, G2: -(d * r), D: d, R: r}, nil
}

// Lipschitz returns the Lipschitz constant of the gradient of
// (1/2)||y - K*s||^2, which is max_w |H(w)|^2 for the kernel's DFT H. The
// kernel is zero-padded to the next power of two at or above twice its
// length. The result is never below 1e-10.
func Lipschitz(kernel []float64) float64 {
	if len(kernel) == 0 {
		return minLipschitz
	}

	size := 1
	for size < 2*len(kernel) {
		size *= 2
	}
	padded := make([]float64, size)
	copy(padded, kernel)

	// A real signal's spectrum is conjugate-symmetric, so the half
	// spectrum holds every distinct magnitude.
	coefficients := fourier.NewFFT(size).Coefficients(nil, padded)
	maxPower := 0.0
	for _, coefficient := range coefficients {
		power := real(coefficient)*real(coefficient) + imag(coefficient)*imag(coefficient)
		maxPower = max(maxPower, power)
	}
	return max(maxPower, minLipschitz)
}
