// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/tessera-engine/tessera/lib/transport"
)

// ErrNotFound is returned for session numbers with no logged-in
// client.
var ErrNotFound = errors.New("session not found")

// LocalEditor is the username and user ID given to the loopback
// client admitted in local mode.
const LocalEditor = "local_editor"

// Denial reasons reported to refused clients.
const (
	ReasonNotRunning       = "instance is not running a scenario"
	ReasonLocalOnly        = "instance is local-mode only"
	ReasonPrivateOccupied  = "instance is in private edit mode and occupied"
	ReasonAtCapacity       = "instance is at capacity"
	ReasonAlreadyLoggedIn  = "session is already logged in"
	ReasonNotAdministrator = "not an administrator"
	ReasonOthersPresent    = "other clients present"
)

// Message titles used with transport.ShowMessage.
const (
	TitleLoginFailure  = "Login failure"
	TitleRequestDenied = "Request denied"
)

// Identity is what a client claims when it logs in. Nothing in it is
// verified except Token, which is compared with the configured
// administrator token.
type Identity struct {
	Username string
	UserID   string
	Token    string
}

// Client is one logged-in session.
type Client struct {
	Number      transport.Number
	Addr        netip.Addr
	Admin       bool
	Username    string
	UserID      string
	ConnectedAt time.Time
}

func (c Client) String() string {
	return fmt.Sprintf("client %d (%s@%s)", c.Number, c.Username, c.Addr)
}

// Decision is the outcome of a login or private edit request.
type Decision struct {
	Accepted bool

	// Reason explains a refusal. Empty when Accepted.
	Reason string

	// Local is set for the loopback administrator admitted in local
	// mode.
	Local bool
}

func accept(local bool) Decision { return Decision{Accepted: true, Local: local} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// InstanceStatus holds the instance-wide admission flags.
type InstanceStatus struct {
	LocalMode       bool
	PrivateEditMode bool
	MapLoaded       bool
}
