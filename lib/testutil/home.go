// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// Home creates a temporary server home directory containing an empty
// data/ subdirectory and returns the home path.
func Home(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	if err := os.MkdirAll(filepath.Join(home, "data"), 0o755); err != nil {
		t.Fatalf("creating data directory: %v", err)
	}
	return home
}

// WriteAsset writes content at data/<location> under home, creating
// parent directories. Returns the absolute path.
func WriteAsset(t *testing.T, home, location string, content []byte) string {
	t.Helper()
	path := filepath.Join(home, "data", filepath.FromSlash(location))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", location, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing %s: %v", location, err)
	}
	return path
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
