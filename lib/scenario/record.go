// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"errors"
	"os"
	"time"

	"github.com/tessera-engine/tessera/lib/statefile"
)

// Record is the persisted form of a committed scenario.
type Record struct {
	State       State     `cbor:"state"`
	CommittedAt time.Time `cbor:"committed_at"`
}

// StateFile persists the last committed scenario so that a restarted
// server can resume it.
type StateFile struct {
	Path string
}

// Save records state as committed at now.
func (f *StateFile) Save(state State, now time.Time) error {
	return statefile.Write(f.Path, Record{State: state, CommittedAt: now})
}

// Load returns the saved record. ok is false when there is no file or
// the record is older than maxAge (zero maxAge accepts any age). Other
// read failures are returned so callers can tell "nothing saved" from
// "saved but unreadable".
func (f *StateFile) Load(now time.Time, maxAge time.Duration) (Record, bool, error) {
	var record Record
	if err := statefile.Read(f.Path, &record); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if maxAge > 0 && now.Sub(record.CommittedAt) > maxAge {
		return Record{}, false, nil
	}
	if !record.State.Running() {
		return Record{}, false, nil
	}
	return record, true, nil
}

// Clear removes the saved record.
func (f *StateFile) Clear() error {
	return statefile.Clear(f.Path)
}
