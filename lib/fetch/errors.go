// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"fmt"
	"net/http"
)

// FetchError describes a failed download after all attempts.
type FetchError struct {
	URL      string
	Attempts int

	// StatusCode is the last HTTP status received, or zero when the
	// last attempt failed before a response arrived.
	StatusCode int

	// Body is the start of the last error response body.
	Body string

	Err error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("fetching %s: HTTP %d after %d attempt(s): %s", e.URL, e.StatusCode, e.Attempts, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetching %s: HTTP %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	default:
		return fmt.Sprintf("fetching %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether trying again later might succeed.
func (e *FetchError) Temporary() bool {
	if e.StatusCode == 0 {
		return e.Err != nil
	}
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
