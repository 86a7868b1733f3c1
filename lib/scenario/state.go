// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import "fmt"

// Role selects the server or client behaviour of a Lifecycle.
type Role uint8

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// Phase is where a Lifecycle is in its state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseLoading
	PhaseReady
)

var phaseNames = []string{"idle", "resolving", "loading", "ready"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// MarshalText encodes the phase name.
func (p Phase) MarshalText() ([]byte, error) {
	if int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("unknown phase %d", uint8(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// ForcedActivity is the activity recorded when the configured forced
// location overrides a requested scenario.
const ForcedActivity = "*FORCED*"

// ReadyIndicator is logged when a scenario becomes ready. Supervisors
// watching server output wait for it.
const ReadyIndicator = "[[MAP LOADING]] - Success"

// State is a snapshot of the current scenario.
type State struct {
	ActivityID string `cbor:"activity_id,omitempty"`
	AssetID    string `cbor:"asset_id"`
	Epoch      string `cbor:"epoch"`

	// Prefix is the content prefix the scenario's files live under,
	// relative to the data directory and ending in "/".
	Prefix string `cbor:"prefix"`

	Phase Phase `cbor:"phase"`
}

// Running reports whether a scenario has been committed.
func (s State) Running() bool {
	return s.AssetID != ""
}
