// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ArchiveSuffixes lists the location suffixes that denote packed
// archives. The archive package carries one decoder per suffix.
var ArchiveSuffixes = []string{".tar.gz", ".tar.zst", ".tar.lz4", ".tgz"}

// SplitArchiveSuffix splits a location into its base and archive
// suffix. ok is false (and base is the location unchanged) when the
// location is not an archive.
func SplitArchiveSuffix(location string) (base, suffix string, ok bool) {
	for _, candidate := range ArchiveSuffixes {
		if len(location) > len(candidate) && strings.HasSuffix(location, candidate) {
			return strings.TrimSuffix(location, candidate), candidate, true
		}
	}
	return location, "", false
}

// ValidateRelativePath checks that p is a relative, slash-separated
// path that never climbs above its root. Backslashes are treated as
// separators. "data/models/../skin.jpg" is accepted;
// "data/../../skin.jpg" and "/etc/passwd" are not.
func ValidateRelativePath(p string) error {
	if p == "" {
		return errors.New("empty path")
	}
	normalized := strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(normalized, "/") || filepath.VolumeName(p) != "" {
		return fmt.Errorf("path %q is absolute", p)
	}

	depth := 0
	for _, segment := range strings.Split(normalized, "/") {
		switch segment {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return fmt.Errorf("path %q escapes its root", p)
			}
		default:
			if strings.HasPrefix(segment, "~") {
				return fmt.Errorf("path %q has a home-relative segment", p)
			}
			depth++
		}
	}
	if path.Clean(normalized) == "." {
		return fmt.Errorf("path %q names the root itself", p)
	}
	return nil
}

// NewerThan reports whether principal exists and was modified no
// earlier than every one of others. Others that do not exist are
// ignored.
func NewerThan(principal string, others ...string) bool {
	info, err := os.Stat(principal)
	if err != nil {
		return false
	}
	modified := info.ModTime()
	for _, other := range others {
		otherInfo, err := os.Stat(other)
		if err != nil {
			continue
		}
		if otherInfo.ModTime().After(modified) {
			return false
		}
	}
	return true
}
