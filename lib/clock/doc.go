// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the bridge.
//
// The handoff wait loop and the heartbeat handler read time only through
// [Clock]. Production code passes [Real]; tests pass a [FakeClock] whose
// time moves only when [FakeClock.Advance] is called.
//
// # Driving a poll loop from a test
//
// A goroutine blocked in After registers a pending waiter. Tests wait for
// the registration before advancing, which removes any race between the
// loop parking and the test moving time forward:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go loop(fake)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
//
// [FakeClock.AwaitTimers] is the same wait with an escape channel, for
// loops that may exit instead of parking again.
package clock
