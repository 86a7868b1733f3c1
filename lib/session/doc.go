// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package session tracks the clients logged in to a server instance
// and decides who may join.
//
// Admission runs through a fixed rule order in [Registry.Login]: no
// scenario running, then local mode (loopback clients become the
// administrator "local_editor", everyone else is refused), then private
// edit mode, then capacity. A refusal is a [Decision] value rather than
// an error; the caller reports the reason to the connection and kicks
// it.
//
// [Registry.RequestPrivateEdit] grants exclusive editing to a lone
// administrator. With shutdown-if-empty enabled the registry closes
// [Registry.ShutdownRequested] once the last client of a non-empty
// instance leaves.
//
// The registry is owned by the server loop. Its lock protects readers
// on other goroutines (status reporting), not concurrent mutation.
package session
