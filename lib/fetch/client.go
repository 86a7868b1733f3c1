// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/netutil"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultTimeout     = 2 * time.Minute
)

// Config holds configuration for a download Client.
type Config struct {
	// HTTPClient performs requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// MaxAttempts bounds tries per download. Defaults to
	// DefaultMaxAttempts.
	MaxAttempts int

	// Timeout bounds one attempt, from request to the last body byte.
	// Defaults to DefaultTimeout.
	Timeout time.Duration

	// Backoff is the wait before the second attempt; it doubles for
	// each attempt after that. Defaults to DefaultBackoff.
	Backoff time.Duration

	// UserAgent is sent with every request when non-empty.
	UserAgent string

	// Clock drives backoff waits. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client downloads asset content.
type Client struct {
	httpClient  *http.Client
	maxAttempts int
	timeout     time.Duration
	backoff     time.Duration
	userAgent   string
	clock       clock.Clock
	logger      *slog.Logger
}

// NewClient returns a Client with defaults applied.
func NewClient(config Config) *Client {
	client := &Client{
		httpClient:  config.HTTPClient,
		maxAttempts: config.MaxAttempts,
		timeout:     config.Timeout,
		backoff:     config.Backoff,
		userAgent:   config.UserAgent,
		clock:       config.Clock,
		logger:      config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.maxAttempts <= 0 {
		client.maxAttempts = DefaultMaxAttempts
	}
	if client.timeout <= 0 {
		client.timeout = DefaultTimeout
	}
	if client.backoff <= 0 {
		client.backoff = DefaultBackoff
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client
}

// Fetch downloads url into w. On failure the returned error is a
// *FetchError unless ctx was cancelled.
func (client *Client) Fetch(ctx context.Context, url string, w io.Writer) error {
	var last *FetchError
	for attempt := 1; attempt <= client.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := client.backoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-client.clock.After(wait):
			}
		}

		written, err := client.attempt(ctx, url, w)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			fetchErr = &FetchError{URL: url, Err: err}
		}
		fetchErr.Attempts = attempt
		last = fetchErr

		if written > 0 || !fetchErr.Temporary() {
			return fetchErr
		}
		client.logger.Warn("transient fetch failure, retrying",
			"url", url,
			"attempt", attempt,
			"error", err,
		)
	}
	return last
}

// attempt performs one GET and streams a 2xx body into w within the
// attempt timeout. It reports how many bytes reached w.
func (client *Client) attempt(ctx context.Context, url string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &FetchError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	if client.userAgent != "" {
		request.Header.Set("User-Agent", client.userAgent)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return 0, &FetchError{URL: url, Err: client.timeoutError(ctx, err)}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return 0, &FetchError{
			URL:        url,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
		}
	}

	written, err := io.Copy(w, response.Body)
	if err != nil {
		return written, &FetchError{URL: url, Err: fmt.Errorf("reading body: %w", client.timeoutError(ctx, err))}
	}
	return written, nil
}

// timeoutError replaces err with a plain deadline error when the
// attempt ran out of time.
func (client *Client) timeoutError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("no complete response within %s: %w", client.timeout, context.DeadlineExceeded)
	}
	return err
}
