// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
)

// IsExpectedCloseError reports whether err only says that a peer or the
// server went away: EOF, a closed listener or connection, a stopped
// http.Server, a broken pipe, or a reset. A browser tab closed while the
// traces response is in flight produces EPIPE or ECONNRESET; the bridge
// logs those at debug level instead of as failures.
func IsExpectedCloseError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, http.ErrServerClosed),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return true
	default:
		return false
	}
}
