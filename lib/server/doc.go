// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs the control loop of a scenario server.
//
// A [Loop] owns the scenario lifecycle and the session registry: every
// mutation of either happens on the goroutine running [Loop.Run].
// Websocket readers only enqueue transport events, which each tick
// drains (bounded per tick) before advancing the world one slice and
// running periodic maintenance:
//
//   - the heartbeat, which re-asserts the configured scenario through
//     [scenario.Lifecycle.Reassert] every heartbeat interval, starting
//     with the first tick;
//   - shutdown-if-idle, which stops the loop when an idle interval
//     passes with nobody logged in;
//   - shutdown-if-empty, signalled by the session registry.
//
// Each tick ends by flushing the outbox. Between ticks the loop sleeps
// until the next tick boundary, never less than the minimum delay.
// Quit requests (context cancellation, [Loop.Quit], shutdown policies)
// are observed at tick boundaries; a transition in progress always
// completes.
//
// [NewLogger] builds the process logger from the configured level and
// format.
package server
