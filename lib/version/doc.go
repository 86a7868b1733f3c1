// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package version identifies Tessera binaries.
//
// [Current] describes the running build. Release builds inject
// [Version], [GitCommit], [GitDirty] and [BuildTime] with -ldflags -X;
// development builds fall back to the vcs.revision, vcs.modified and
// vcs.time stamps the go command embeds. [Build] is a slog.LogValuer
// so servers can log it at startup.
//
// [BinaryDigest] and [SelfDigest] identify an executable by content,
// so logs from a server and its companion can be matched to the exact
// build that produced them.
package version
