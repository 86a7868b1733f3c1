// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"path/filepath"
)

// DataSubdirectory is the directory under the server home that holds
// asset content.
const DataSubdirectory = "data"

// Layout maps asset locations to paths on disk.
type Layout struct {
	// Home is the server home directory.
	Home string
}

// DataDir returns <home>/data.
func (l Layout) DataDir() string {
	return filepath.Join(l.Home, DataSubdirectory)
}

// Path returns the on-disk path of a slash-separated location.
func (l Layout) Path(location string) string {
	return filepath.Join(l.DataDir(), filepath.FromSlash(location))
}

// ContentPath returns where the descriptor's file lives.
func (l Layout) ContentPath(d Descriptor) string {
	return l.Path(d.Location())
}

// ExpansionDir returns the directory an archive descriptor expands to.
func (l Layout) ExpansionDir(d Descriptor) string {
	return l.Path(d.BaseLocation())
}

// Resolve joins a content prefix and a relative file name, rejecting
// names that would leave the prefix.
func (l Layout) Resolve(prefix, relative string) (string, error) {
	if err := ValidateRelativePath(relative); err != nil {
		return "", fmt.Errorf("resolving %q under %q: %w", relative, prefix, err)
	}
	return l.Path(prefix + relative), nil
}
