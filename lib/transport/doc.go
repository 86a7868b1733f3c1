// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries scenario and session messages between the
// server loop and connected clients.
//
// Messages are [Frame] values: a [Kind] and positional fields, encoded
// with lib/codec. The server loop talks to clients only through the
// [Sender] interface, which [Outbox] implements: Send queues a frame
// for one client or for [AllClients], ForceFlush writes everything
// queued to the attached [Peer]s, and Kick ejects a client after
// flushing what was queued for it.
//
// [WebSocketHub] is the network side. It upgrades HTTP requests with
// gorilla/websocket, assigns each connection a client [Number],
// attaches it to the outbox, and turns inbound traffic into [Event]s
// the loop drains once per tick. Reader goroutines never touch
// scenario or session state; they only enqueue events.
//
// [MemoryPeer] records frames in memory and stands in for a client in
// tests.
package transport
