// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive expands packed asset archives into the sibling
// directory their content prefix names.
//
// A [Materializer] subscribes to the asset bus content-changed topic.
// When an archive asset changes (fetched, or found on disk without its
// expansion directory), it extracts every member into <name>/,
// overwriting stale members in place, and then publishes one
// content-changed event per member file followed by one for the
// archive itself. Those follow-up events are marked Extracted so the
// materializer does not react to its own announcements.
//
// Supported formats are tar streams compressed with gzip (.tar.gz,
// .tgz), zstd (.tar.zst) and LZ4 frames (.tar.lz4).
package archive
