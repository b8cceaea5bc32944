// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge hands an interactive tuning step off to the CaTune
// browser tool and waits for the result.
//
// The browser tool is served from a separate origin (normally the public
// deployment at [DefaultAppURL]) and cannot read files from the local
// machine. [Tune] closes that gap: it starts a [Listener] bound to
// 127.0.0.1, opens the tool with a ?bridge= query parameter naming the
// listener, and blocks until the tool posts its exported configuration.
//
// The wire protocol is a small JSON/binary route table under /api/v1/:
//
//	GET  /api/v1/traces     the traces matrix as a NumPy .npy array
//	GET  /api/v1/metadata   sampling rate and matrix dimensions
//	GET  /api/v1/status     readiness probe for the browser tool
//	GET  /api/v1/health     plain-text liveness check
//	POST /api/v1/heartbeat  the tool is still open
//	POST /api/v1/params     the exported configuration; ends the handoff
//
// Every response carries permissive CORS headers, since the tool calls a
// plaintext loopback endpoint from an https page. There is no
// authentication: the listener never binds anything but loopback and
// lives only for the duration of one handoff.
//
// The wait ends in exactly one [Outcome]. [OutcomeReceived] carries the
// exported configuration normalized by [Normalize]. [OutcomeTimedOut],
// [OutcomeHeartbeatStale], and [OutcomeCancelled] return no parameters
// and are not errors: a user who closes the tab or walks away is an
// ordinary result. Heartbeat staleness is only checked once the tool has
// sent its first heartbeat, so a slow page load is never mistaken for a
// disconnect.
//
// [Session] holds the state shared between request handlers and the wait
// loop. [Client] speaks the same protocol from the browser's side and is
// used by "calab probe" and by tests.
package bridge
