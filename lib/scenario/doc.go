// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package scenario owns the authoritative "current scenario": which
// asset is loaded, under which activity, and the epoch token that
// versions it.
//
// A [Lifecycle] is one state machine shared by both sides of a
// session, parameterised by [Role]. The server resolves and validates
// the asset, tells clients to prepare, loads the world, creates its
// entities and announces the live scenario. The client echoes the path
// the server sent and loads the same world. Role only matters at those
// steps.
//
// Phases run IDLE → RESOLVING → LOADING → READY and back to RESOLVING
// on the next transition. A transition commits its new state in a
// single write after the world loaded; a failed transition leaves the
// previous scenario in place and returns a [*TransitionError].
//
// Every successful transition mints a new epoch from the configured
// [EpochSource] (UUIDv4 by default) and keeps drawing until the token
// differs from the previous one. Clients drop messages tagged with a
// superseded epoch, so two consecutive transitions never share one.
//
// Transitions are serialised: SetScenario holds a transition lock for
// its whole duration. All other methods are safe for concurrent use.
package scenario
