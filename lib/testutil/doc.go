// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [Home] creates a throwaway server home directory with the data/
// subdirectory assets live under, and [WriteAsset] places a file at an
// asset location inside it.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so individual tests do not need direct time.After calls.
//
// [Logger] returns a slog logger that discards output, for components
// that require one.
//
// All helpers call t.Fatalf on failure.
package testutil
