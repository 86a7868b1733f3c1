// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"context"
	"fmt"
	"os"

	"github.com/tessera-engine/tessera/lib/digest"
)

// BinaryDigest returns the BLAKE3 digest of the executable at path.
func BinaryDigest(ctx context.Context, path string) (digest.Digest, error) {
	sum, err := digest.File(ctx, digest.BLAKE3, path)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("hashing binary at %s: %w", path, err)
	}
	return sum, nil
}

// SelfDigest returns the digest and path of the running binary.
// os.Executable resolves through /proc/self/exe on Linux, so the result
// describes the binary that was started even if it has since been
// replaced on disk.
func SelfDigest(ctx context.Context) (digest.Digest, string, error) {
	executable, err := os.Executable()
	if err != nil {
		return digest.Digest{}, "", fmt.Errorf("resolving own executable path: %w", err)
	}
	sum, err := BinaryDigest(ctx, executable)
	if err != nil {
		return digest.Digest{}, "", err
	}
	return sum, executable, nil
}
