// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no catalog knows an asset identifier.
var ErrNotFound = errors.New("asset not found")

// ErrNoSource is returned when an asset's local copy is invalid and it
// has no source URL to fetch from.
var ErrNoSource = errors.New("asset has no valid local copy and no source URL")

// ValidationError reports a malformed descriptor. Assets that fail
// validation are unusable.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid asset descriptor: %s", e.Reason)
	}
	return fmt.Sprintf("invalid asset descriptor %q: %s", e.ID, e.Reason)
}
