// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the server
// tick loop, the keep-responsive wrapper, and readiness polling.
//
// Production code holds a Clock field instead of calling time.Now,
// time.After, time.NewTicker, or time.Sleep directly:
//
//	loop := server.NewLoop(server.Config{Clock: clock.Real(), ...})
//
// Tests inject a FakeClock and drive time explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go runner.WaitReady(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(time.Second)
//
// WaitForTimers blocks until the goroutine under test has registered
// its sleep or ticker, which removes the race between registration and
// Advance.
package clock
