// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes typed content digests over local files.
//
// A [Digest] pairs an [Algorithm] with a lowercase hex value. Catalogs
// carry digests in the text form "ALGO|hex" (for example
// "SHA256|9f86d0..."), parsed by [Parse] and produced by
// [Digest.String]. The algorithm NONE carries no value: content with a
// NONE digest is trusted whenever it exists on disk.
//
// [File] streams a file through the algorithm's hash, checking the
// context between reads so that long hashes of large archives can be
// abandoned when the caller gives up.
package digest
