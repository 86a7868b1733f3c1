// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"cmp"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/netip"
	"slices"
	"sync"

	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/transport"
)

// DefaultCapacity is the client limit when Config.Capacity is zero.
const DefaultCapacity = 10

// Scenario reports whether a scenario is running.
// *scenario.Lifecycle implements it.
type Scenario interface {
	Running() bool
}

// Config wires a Registry.
type Config struct {
	// Capacity limits the number of logged-in clients. Zero means
	// DefaultCapacity.
	Capacity int

	// LocalMode admits only loopback clients, as administrators.
	LocalMode bool

	// ShutdownIfEmpty closes ShutdownRequested when the instance
	// empties after having had a client.
	ShutdownIfEmpty bool

	// Admins lists user IDs granted administrator rights on login.
	// Loopback logins need only the ID; remote logins must also
	// present AdminToken. With no AdminToken, remote clients are never
	// administrators.
	Admins     []string
	AdminToken string

	Scenario Scenario
	Sender   transport.Sender
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Registry is the set of logged-in clients and the admission policy.
type Registry struct {
	capacity        int
	shutdownIfEmpty bool
	admins          []string
	adminToken      string
	scenario        Scenario
	sender          transport.Sender
	clock           clock.Clock
	logger          *slog.Logger

	mu              sync.RWMutex
	clients         map[transport.Number]Client
	localMode       bool
	privateEditMode bool
	hadClients      bool
	shutdown        chan struct{}
	shutdownClosed  bool
	onConnect       []func(Client)
	onDisconnect    []func(Client)
}

// New returns an empty registry.
func New(config Config) *Registry {
	registry := &Registry{
		capacity:        config.Capacity,
		shutdownIfEmpty: config.ShutdownIfEmpty,
		admins:          slices.Clone(config.Admins),
		adminToken:      config.AdminToken,
		scenario:        config.Scenario,
		sender:          config.Sender,
		clock:           config.Clock,
		logger:          config.Logger,
		clients:         make(map[transport.Number]Client),
		localMode:       config.LocalMode,
		shutdown:        make(chan struct{}),
	}
	if registry.capacity <= 0 {
		registry.capacity = DefaultCapacity
	}
	if registry.clock == nil {
		registry.clock = clock.Real()
	}
	if registry.logger == nil {
		registry.logger = slog.Default()
	}
	return registry
}

// OnConnect registers fn to run after each accepted login.
func (r *Registry) OnConnect(fn func(Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnect = append(r.onConnect, fn)
}

// OnDisconnect registers fn to run when a client logs out, before it
// is removed, so Get still finds it.
func (r *Registry) OnDisconnect(fn func(Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDisconnect = append(r.onDisconnect, fn)
}

// Login applies the admission rules to a connection and registers it
// when accepted. The first matching rule decides.
func (r *Registry) Login(number transport.Number, addr netip.Addr, identity Identity) Decision {
	decision, client := r.admit(number, addr, identity)
	if !decision.Accepted {
		r.logger.Warn("login refused",
			"client", int(number),
			"addr", addr.String(),
			"username", identity.Username,
			"reason", decision.Reason,
		)
		return decision
	}

	r.mu.RLock()
	hooks := slices.Clone(r.onConnect)
	count := len(r.clients)
	r.mu.RUnlock()

	r.logger.Info("client logged in",
		"client", int(number),
		"addr", addr.String(),
		"username", client.Username,
		"admin", client.Admin,
		"local", decision.Local,
		"clients", count,
	)
	for _, hook := range hooks {
		hook(client)
	}
	return decision
}

func (r *Registry) admit(number transport.Number, addr netip.Addr, identity Identity) (Decision, Client) {
	if r.scenario == nil || !r.scenario.Running() {
		return deny(ReasonNotRunning), Client{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[number]; exists {
		return deny(ReasonAlreadyLoggedIn), Client{}
	}

	client := Client{
		Number:      number,
		Addr:        addr,
		Admin:       r.isAdministrator(addr, identity),
		Username:    identity.Username,
		UserID:      identity.UserID,
		ConnectedAt: r.clock.Now(),
	}

	if r.localMode {
		if !isLoopback(addr) {
			return deny(ReasonLocalOnly), Client{}
		}
		client.Admin = true
		client.Username = LocalEditor
		client.UserID = LocalEditor
		r.registerLocked(client)
		return accept(true), client
	}
	if r.privateEditMode && len(r.clients) >= 1 {
		return deny(ReasonPrivateOccupied), Client{}
	}
	if len(r.clients) >= r.capacity {
		return deny(ReasonAtCapacity), Client{}
	}
	r.registerLocked(client)
	return accept(false), client
}

// isAdministrator reports whether identity may act as an administrator
// from addr.
func (r *Registry) isAdministrator(addr netip.Addr, identity Identity) bool {
	if identity.UserID == "" || !slices.Contains(r.admins, identity.UserID) {
		return false
	}
	if isLoopback(addr) {
		return true
	}
	if r.adminToken != "" && subtle.ConstantTimeCompare([]byte(identity.Token), []byte(r.adminToken)) == 1 {
		return true
	}
	r.logger.Warn("administrator user ID presented without a valid token",
		"addr", addr.String(),
		"user_id", identity.UserID,
	)
	return false
}

func (r *Registry) registerLocked(client Client) {
	r.clients[client.Number] = client
	r.hadClients = true
}

// Logout removes a client. Unknown numbers (connections that never
// finished logging in) are ignored.
func (r *Registry) Logout(number transport.Number) {
	r.mu.RLock()
	client, ok := r.clients[number]
	hooks := slices.Clone(r.onDisconnect)
	r.mu.RUnlock()
	if !ok {
		return
	}

	for _, hook := range hooks {
		hook(client)
	}

	r.mu.Lock()
	delete(r.clients, number)
	remaining := len(r.clients)
	requestShutdown := r.shutdownIfEmpty && r.hadClients && remaining == 0 && !r.shutdownClosed
	if requestShutdown {
		r.shutdownClosed = true
		close(r.shutdown)
	}
	r.mu.Unlock()

	r.logger.Info("client logged out", "client", int(number), "username", client.Username, "clients", remaining)
	if requestShutdown {
		r.logger.Info("instance is empty, requesting shutdown")
	}
}

// Count returns the number of logged-in clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Get returns the client logged in under number.
func (r *Registry) Get(number transport.Number) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[number]
	if !ok {
		return Client{}, fmt.Errorf("client %d: %w", number, ErrNotFound)
	}
	return client, nil
}

// List returns the logged-in clients ordered by number.
func (r *Registry) List() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	slices.SortFunc(clients, func(a, b Client) int { return cmp.Compare(a.Number, b.Number) })
	return clients
}

// Status returns the current admission flags.
func (r *Registry) Status() InstanceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return InstanceStatus{
		LocalMode:       r.localMode,
		PrivateEditMode: r.privateEditMode,
		MapLoaded:       r.scenario != nil && r.scenario.Running(),
	}
}

// SetLocalMode changes whether only loopback clients are admitted.
// Clients already logged in are not affected.
func (r *Registry) SetLocalMode(local bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localMode = local
}

// RequestPrivateEdit grants private edit mode to number when it is an
// administrator and the only client. The outcome is sent to the
// client either way; refusals change nothing.
func (r *Registry) RequestPrivateEdit(number transport.Number) (Decision, error) {
	r.mu.Lock()
	client, ok := r.clients[number]
	if !ok {
		r.mu.Unlock()
		return Decision{}, fmt.Errorf("requesting private edit for client %d: %w", number, ErrNotFound)
	}
	var decision Decision
	switch {
	case !client.Admin:
		decision = deny(ReasonNotAdministrator)
	case len(r.clients) != 1:
		decision = deny(ReasonOthersPresent)
	default:
		r.privateEditMode = true
		decision = accept(false)
	}
	r.mu.Unlock()

	if decision.Accepted {
		r.logger.Info("private edit mode enabled", "client", int(number), "username", client.Username)
		r.send(number, transport.NotifyPrivateEditMode)
	} else {
		r.logger.Info("private edit refused", "client", int(number), "reason", decision.Reason)
		r.send(number, transport.ShowMessage, TitleRequestDenied, decision.Reason)
	}
	return decision, nil
}

// ClearPrivateEdit ends private edit mode. A newly loaded scenario is
// always shared.
func (r *Registry) ClearPrivateEdit() {
	r.mu.Lock()
	wasPrivate := r.privateEditMode
	r.privateEditMode = false
	r.mu.Unlock()
	if wasPrivate {
		r.logger.Info("private edit mode cleared")
	}
}

func (r *Registry) send(to transport.Number, kind transport.Kind, fields ...any) {
	if r.sender != nil {
		r.sender.Send(to, kind, fields...)
	}
}

// ShutdownRequested is closed when shutdown-if-empty fires.
func (r *Registry) ShutdownRequested() <-chan struct{} {
	return r.shutdown
}

func isLoopback(addr netip.Addr) bool {
	return addr.IsValid() && addr.Unmap().IsLoopback()
}
