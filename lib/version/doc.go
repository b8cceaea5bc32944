// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports what calab binary is running.
//
// Release builds inject [Version], [GitCommit], [GitDirty], and
// [BuildTime] with -ldflags -X. Anything left empty is filled from the
// VCS stamp that "go build" embeds in module-mode builds, and finally
// from "unknown". "calab version" prints [Full]; "calab --version"
// prints [Info].
package version
