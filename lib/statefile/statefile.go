// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile writes small state files atomically.
//
// A file is written to a temporary sibling, fsynced, renamed into place
// and its directory synced, so readers see either the old content or
// the new content and never a torn write. [Write] and [Read] encode
// values with lib/codec; [WriteFile] takes raw bytes for callers that
// own their format (entity exports).
package statefile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tessera-engine/tessera/lib/codec"
)

// Write atomically replaces path with the CBOR encoding of value. The
// file is created with mode 0600. The parent directory must exist.
func Write(path string, value any) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", path, err)
	}
	return WriteFile(path, data, 0o600)
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}

	// Write, sync, close; on any failure the temporary file goes away.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file for %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file for %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file for %s: %w", path, err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}

// Read decodes the CBOR state file at path into value. A missing file
// yields an error wrapping os.ErrNotExist.
func Read(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(data, value); err != nil {
		return fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return nil
}

// Clear removes path. Removing a file that does not exist succeeds.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file %s: %w", path, err)
	}
	return nil
}
