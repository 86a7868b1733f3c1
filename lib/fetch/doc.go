// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch downloads asset content over HTTP and looks up asset
// descriptors in a remote catalog.
//
// [Client] implements asset.Fetcher. Transient failures (connection
// errors, 429, 5xx) are retried a bounded number of times with
// exponential backoff driven by the injected clock. Once response bytes
// have reached the destination writer, a failure is final; the
// registry discards the partial temp file.
//
// [RemoteCatalog] implements asset.Catalog against a content service
// that answers GET <base>/assets/<id> with a JSON catalog entry.
package fetch
