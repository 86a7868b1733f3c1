// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package localserver runs a tessera-server as a child process beside
// a single-player client.
//
// The child is bound to the loopback address (so it runs in local
// mode), pinned to one scenario through its force_location setting,
// and started with shutdown-if-idle and shutdown-if-empty so it never
// outlives its user. Its combined output goes to a file. [Runner.WaitReady]
// polls that file, once per poll interval up to a bounded number of
// attempts, for the line the scenario lifecycle logs when a map
// finishes loading.
package localserver
