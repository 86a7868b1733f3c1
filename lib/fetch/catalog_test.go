// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessera-engine/tessera/lib/asset"
	"github.com/tessera-engine/tessera/lib/testutil"
)

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/assets/base%2Fforest":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"asset_id":"base/forest","location":"base/forest.tar.gz","url":"https://content.example/base/forest.tar.gz","type":"b"}`))
		case "/assets/liar":
			w.Write([]byte(`{"asset_id":"someone-else","location":"x.ogz"}`))
		case "/assets/broken":
			http.Error(w, "database down", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRemoteCatalogLookup(t *testing.T) {
	server := newCatalogServer(t)
	catalog := &RemoteCatalog{BaseURL: server.URL + "/", HTTPClient: server.Client()}

	descriptor, err := catalog.Lookup(context.Background(), "base/forest")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if descriptor.Location() != "base/forest.tar.gz" || !descriptor.HasRemoteContent() {
		t.Errorf("descriptor = %+v", descriptor.Spec())
	}
	if descriptor.ContentPrefix() != "base/forest/" {
		t.Errorf("ContentPrefix = %q", descriptor.ContentPrefix())
	}
}

func TestRemoteCatalogErrors(t *testing.T) {
	server := newCatalogServer(t)
	catalog := &RemoteCatalog{BaseURL: server.URL, HTTPClient: server.Client()}

	if _, err := catalog.Lookup(context.Background(), "unknown"); !errors.Is(err, asset.ErrNotFound) {
		t.Errorf("unknown id error = %v, want asset.ErrNotFound", err)
	}

	_, err := catalog.Lookup(context.Background(), "broken")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("server failure error = %v, want *FetchError with 500", err)
	}

	_, err = catalog.Lookup(context.Background(), "liar")
	var validationErr *asset.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("mismatched id error = %v, want *asset.ValidationError", err)
	}
}

func TestRemoteCatalogInChain(t *testing.T) {
	server := newCatalogServer(t)
	local, err := asset.ParseFileCatalog([]byte("assets:\n  - id: base/plain\n    location: base/plain.ogz\n"))
	if err != nil {
		t.Fatalf("ParseFileCatalog: %v", err)
	}
	chain := asset.Chain{local, &RemoteCatalog{BaseURL: server.URL, HTTPClient: server.Client()}}

	for _, id := range []string{"base/plain", "base/forest"} {
		if _, err := chain.Lookup(context.Background(), id); err != nil {
			t.Errorf("chain.Lookup(%q): %v", id, err)
		}
	}
}

func TestRemoteCatalogLookupTimesOut(t *testing.T) {
	var requests atomic.Int32
	server := newStalledServer(t, &requests)
	catalog := &RemoteCatalog{BaseURL: server.URL, HTTPClient: server.Client(), Timeout: 50 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		_, err := catalog.Lookup(context.Background(), "base/forest")
		done <- err
	}()

	err := testutil.RequireReceive(t, done, 5*time.Second, "Lookup against a stalled catalog")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lookup error = %v, want *FetchError wrapping context.DeadlineExceeded", err)
	}
}
