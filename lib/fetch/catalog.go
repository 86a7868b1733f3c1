// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tessera-engine/tessera/lib/asset"
	"github.com/tessera-engine/tessera/lib/netutil"
)

// DefaultLookupTimeout bounds one catalog lookup when
// RemoteCatalog.Timeout is zero.
const DefaultLookupTimeout = 10 * time.Second

// RemoteCatalog resolves asset identifiers against a content service.
type RemoteCatalog struct {
	// BaseURL is the service root; lookups hit BaseURL/assets/<id>.
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Timeout bounds each lookup. Defaults to DefaultLookupTimeout.
	Timeout time.Duration
}

// Lookup fetches and validates the catalog entry for id. A 404 yields
// an error wrapping asset.ErrNotFound.
func (catalog *RemoteCatalog) Lookup(ctx context.Context, id string) (asset.Descriptor, error) {
	httpClient := catalog.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := catalog.Timeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimRight(catalog.BaseURL, "/") + "/assets/" + url.PathEscape(id)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return asset.Descriptor{}, fmt.Errorf("creating catalog request for %q: %w", id, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := httpClient.Do(request)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no response within %s: %w", timeout, context.DeadlineExceeded)
		}
		return asset.Descriptor{}, &FetchError{URL: endpoint, Attempts: 1, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return asset.Descriptor{}, fmt.Errorf("remote catalog %s: %q: %w", catalog.BaseURL, id, asset.ErrNotFound)
	}
	if response.StatusCode != http.StatusOK {
		return asset.Descriptor{}, &FetchError{
			URL:        endpoint,
			Attempts:   1,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
		}
	}

	var entry asset.Entry
	if err := netutil.DecodeResponse(response.Body, &entry); err != nil {
		return asset.Descriptor{}, fmt.Errorf("remote catalog entry for %q: %w", id, err)
	}
	if entry.ID != id {
		return asset.Descriptor{}, &asset.ValidationError{
			ID:     id,
			Reason: fmt.Sprintf("remote catalog answered with asset %q", entry.ID),
		}
	}
	return entry.Descriptor()
}
