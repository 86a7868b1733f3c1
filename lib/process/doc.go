// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the Tessera
// binaries: reporting a fatal error before or after the structured
// logger exists, and exiting.
package process
