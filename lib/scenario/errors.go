// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned by operations that need a committed
	// scenario.
	ErrNotRunning = errors.New("no scenario is running")

	// ErrWorldMissing means the pre-flight check found no world file
	// under the scenario's content prefix.
	ErrWorldMissing = errors.New("world file not found")

	// ErrLoadFailed means the engine refused to load the world.
	ErrLoadFailed = errors.New("world load failed")

	// ErrUnsafePath rejects script-supplied file names that could
	// leave the data directory.
	ErrUnsafePath = errors.New("unsafe path")
)

// TransitionError reports a failed SetScenario. The previous scenario,
// if any, is still current.
type TransitionError struct {
	AssetID string

	// Step names where the transition stopped: "resolve",
	// "materialize", "preflight" or "load".
	Step string

	Err error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("switching scenario to %q: %s: %v", e.AssetID, e.Step, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }
