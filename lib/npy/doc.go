// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package npy reads and writes two-dimensional float64 matrices in the
// NumPy .npy format.
//
// The format is self-describing: a magic string, a format version, a
// Python-literal header carrying the dtype, memory order, and shape, then
// the raw element payload. The browser tool decodes exactly this format, so
// the bridge serves traces with [Encode] and the CLI loads user files with
// [ReadFile].
//
// [Encode] always writes version 1.0, little-endian float64, C order, with
// the header padded so the payload starts on a 64-byte boundary. [Decode]
// also accepts versions 2.0 and 3.0, Fortran order, big-endian data, and
// the common integer and float32 dtypes, converting every element to
// float64. One-dimensional arrays decode as a single-row matrix.
//
// Round trips are bit-exact: Decode(Encode(m)) reproduces every float64 in
// m, including NaN payloads and signed zeros.
package npy
