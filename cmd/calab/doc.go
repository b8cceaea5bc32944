// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Calab is the command-line entry point for CaLab's calcium imaging tools.
//
// The main subcommand, "calab tune", serves a traces matrix to the CaTune
// browser app over a loopback bridge and prints the deconvolution
// parameters the user exports from it:
//
//	calab tune traces.npy --fs 30 > params.json
//
// "calab info" describes traces arrays and CaTune exports, "calab kernel"
// prints the calcium kernel for a parameter set, and "calab probe" checks a
// running bridge. Run "calab --help" for the full command list.
package main
