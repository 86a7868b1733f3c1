// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package asset is the content cache: it resolves asset identifiers to
// immutable [Descriptor] values, decides whether the locally held copy
// of an asset is valid, and fetches content that is not.
//
// # Layout
//
// Asset content lives under <home>/data/<location>. A location ending
// in one of [ArchiveSuffixes] denotes a packed archive that expands to
// a sibling directory named after the location with the suffix
// stripped; that stripped name plus "/" is the content prefix a
// scenario uses to find its files.
//
// # Validity
//
// [Registry.IsValidLocally] publishes the descriptor on the [Bus]
// check-existing topic. Each registered handler answers with a
// [Verdict]; [Aggregate] reduces them: the asset is valid when no
// handler answered Invalid and the digest handler answered Valid. The
// archive-expansion handler never votes; it enqueues a synthetic
// content-changed event when an archive is present but its expansion
// directory is missing, and the registry delivers those events after
// the check so the archive materializer can expand it.
//
// # Fetching
//
// [Registry.Materialize] fetches remote content for descriptors whose
// local copy is invalid, verifies the downloaded bytes against the
// descriptor digest, moves them into place atomically and publishes a
// content-changed event.
package asset
