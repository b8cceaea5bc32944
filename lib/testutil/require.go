// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first. what names the
// value in the failure message and may be a format string.
//
//	result := testutil.RequireReceive(t, results, 5*time.Second, "Tune result")
func RequireReceive[T any](t testing.TB, ch <-chan T, timeout time.Duration, what string, args ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock bounds a hung test
	defer timer.Stop()

	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", fmt.Sprintf(what, args...))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", fmt.Sprintf(what, args...), timeout)
		var zero T
		return zero
	}
}

// RequireClosed fails the test unless ch is closed (or yields a value)
// within timeout. Latches such as Session.Done signal by closing.
//
//	testutil.RequireClosed(t, session.Done(), time.Second, "params latch")
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, what string, args ...any) {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock bounds a hung test
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: not closed within %v", fmt.Sprintf(what, args...), timeout)
	}
}
