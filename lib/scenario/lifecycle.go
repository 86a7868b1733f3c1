// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tessera-engine/tessera/lib/asset"
	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/engine"
	"github.com/tessera-engine/tessera/lib/transport"
)

// EpochSource mints epoch tokens.
type EpochSource func() string

// Resolver is the part of the asset registry the server side needs.
// *asset.Registry implements it.
type Resolver interface {
	Resolve(ctx context.Context, id string) (asset.Descriptor, error)
	IsValidLocally(ctx context.Context, d asset.Descriptor) bool
	Materialize(ctx context.Context, d asset.Descriptor) error
}

// Config wires a Lifecycle.
type Config struct {
	Role Role

	// World is required for both roles.
	World engine.World

	// Resolver and Sender are required for RoleServer.
	Resolver Resolver
	Sender   transport.Sender

	// Layout locates scenario files for MapFilePath, ReadFile and
	// ExportEntities. Defaults to the world's home directory.
	Layout asset.Layout

	// Epochs defaults to uuid.NewString.
	Epochs EpochSource

	// ForceLocation, when non-empty on the server, replaces every
	// requested asset and records ForcedActivity as the activity.
	ForceLocation string

	// RememberLocation is called on the client with requested paths
	// under "base/", which the client then treats as its forced
	// location.
	RememberLocation func(location string)

	// StateFile, when set, receives every committed scenario.
	StateFile *StateFile

	Clock  clock.Clock
	Logger *slog.Logger
}

// Lifecycle sequences scenario transitions.
type Lifecycle struct {
	role             Role
	world            engine.World
	resolver         Resolver
	sender           transport.Sender
	layout           asset.Layout
	epochs           EpochSource
	forceLocation    string
	rememberLocation func(string)
	stateFile        *StateFile
	clock            clock.Clock
	logger           *slog.Logger

	// transition serialises SetScenario calls.
	transition sync.Mutex

	mu         sync.RWMutex
	state      State
	descriptor asset.Descriptor
	readyHooks []func(State)
}

// New returns an idle Lifecycle.
func New(config Config) *Lifecycle {
	lifecycle := &Lifecycle{
		role:             config.Role,
		world:            config.World,
		resolver:         config.Resolver,
		sender:           config.Sender,
		layout:           config.Layout,
		epochs:           config.Epochs,
		forceLocation:    config.ForceLocation,
		rememberLocation: config.RememberLocation,
		stateFile:        config.StateFile,
		clock:            config.Clock,
		logger:           config.Logger,
	}
	if lifecycle.layout.Home == "" && config.World != nil {
		lifecycle.layout = asset.Layout{Home: config.World.HomeDir()}
	}
	if lifecycle.epochs == nil {
		lifecycle.epochs = uuid.NewString
	}
	if lifecycle.clock == nil {
		lifecycle.clock = clock.Real()
	}
	if lifecycle.logger == nil {
		lifecycle.logger = slog.Default()
	}
	lifecycle.logger = lifecycle.logger.With("role", config.Role.String())
	return lifecycle
}

// OnReady registers fn to run, on the transitioning goroutine, each
// time a scenario becomes ready.
func (l *Lifecycle) OnReady(fn func(State)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readyHooks = append(l.readyHooks, fn)
}

// State returns the current scenario.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Running reports whether a scenario is committed.
func (l *Lifecycle) Running() bool { return l.State().Running() }

// Epoch returns the current epoch token, empty before the first
// transition.
func (l *Lifecycle) Epoch() string { return l.State().Epoch }

// Prefix returns the current content prefix.
func (l *Lifecycle) Prefix() string { return l.State().Prefix }

func (l *Lifecycle) setPhase(phase Phase) {
	l.mu.Lock()
	l.state.Phase = phase
	l.mu.Unlock()
}

// SetScenario switches to assetID under activityID. On failure the
// previous scenario stays current and the error is a *TransitionError.
func (l *Lifecycle) SetScenario(ctx context.Context, activityID, assetID string) error {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.logger.Debug("setting scenario", "activity_id", activityID, "asset_id", assetID)

	// Step 1: server override, client memory.
	switch l.role {
	case RoleServer:
		if l.forceLocation != "" {
			activityID = ForcedActivity
			assetID = l.forceLocation
		}
	case RoleClient:
		if strings.HasPrefix(assetID, "base/") && l.rememberLocation != nil {
			l.rememberLocation(assetID)
		}
	}

	previous := l.State()
	fail := func(step string, err error) error {
		l.setPhase(previous.Phase)
		transitionErr := &TransitionError{AssetID: assetID, Step: step, Err: err}
		l.logger.Error("scenario transition failed",
			"asset_id", assetID,
			"step", step,
			"error", err,
		)
		return transitionErr
	}

	// Step 2: resolve (server) or echo (client).
	l.setPhase(PhaseResolving)
	descriptor, step, err := l.resolve(ctx, assetID)
	if err != nil {
		return fail(step, err)
	}
	prefix := descriptor.ContentPrefix()

	// Step 3: an epoch distinct from the one being replaced.
	epoch := l.epochs()
	for epoch == previous.Epoch {
		epoch = l.epochs()
	}

	// Step 4: clients must see this before anything tagged with epoch.
	if l.role == RoleServer {
		l.sender.Send(transport.AllClients, transport.PrepareForNewScenario, epoch)
		l.sender.ForceFlush()
	}

	// Steps 5 and 6: pre-flight, load, then commit in one write.
	l.setPhase(PhaseLoading)
	worldName := prefix + "map"
	if !l.world.WorldExists(worldName) {
		return fail("preflight", ErrWorldMissing)
	}
	if !l.world.LoadWorld(worldName) {
		return fail("load", ErrLoadFailed)
	}

	committed := State{
		ActivityID: activityID,
		AssetID:    assetID,
		Epoch:      epoch,
		Prefix:     prefix,
		Phase:      PhaseLoading,
	}
	l.mu.Lock()
	l.state = committed
	l.descriptor = descriptor
	hooks := slices.Clone(l.readyHooks)
	l.mu.Unlock()

	if l.stateFile != nil {
		if err := l.stateFile.Save(committed, l.clock.Now()); err != nil {
			l.logger.Warn("persisting scenario state", "error", err)
		}
	}

	// Step 7: entities, then the announcement.
	if l.role == RoleServer {
		if err := l.world.CreateEntities(); err != nil {
			l.logger.Error("creating scenario entities", "asset_id", assetID, "error", err)
		}
		l.SendCurrent(transport.AllClients)
	}

	// Step 8.
	l.setPhase(PhaseReady)
	committed.Phase = PhaseReady
	for _, hook := range hooks {
		hook(committed)
	}
	l.logger.Info(ReadyIndicator,
		"activity_id", activityID,
		"asset_id", assetID,
		"epoch", epoch,
		"prefix", prefix,
	)
	return nil
}

// resolve produces the descriptor for assetID, fetching or expanding
// content on the server side as needed. It returns the step name to
// report on failure.
func (l *Lifecycle) resolve(ctx context.Context, assetID string) (asset.Descriptor, string, error) {
	if l.role == RoleClient {
		descriptor, err := asset.FromLocation(assetID)
		return descriptor, "resolve", err
	}

	descriptor, err := l.resolver.Resolve(ctx, assetID)
	if errors.Is(err, asset.ErrNotFound) && strings.Contains(assetID, "/") {
		// Unknown to every catalog but shaped like a path: use it as a
		// location under the data directory.
		descriptor, err = asset.FromLocation(assetID)
	}
	if err != nil {
		return asset.Descriptor{}, "resolve", err
	}

	if l.resolver.IsValidLocally(ctx, descriptor) {
		return descriptor, "", nil
	}
	if err := l.resolver.Materialize(ctx, descriptor); err != nil {
		if !errors.Is(err, asset.ErrNoSource) {
			return asset.Descriptor{}, "materialize", err
		}
		// Content that cannot be fetched may still be present in
		// unpacked form; the world pre-flight has the final word.
		l.logger.Warn("scenario asset not valid locally and has no source",
			"asset_id", assetID,
			"location", descriptor.Location(),
		)
	}
	return descriptor, "", nil
}

// Restart reloads the current scenario under a fresh epoch.
func (l *Lifecycle) Restart(ctx context.Context) error {
	state := l.State()
	if !state.Running() {
		return ErrNotRunning
	}
	return l.SetScenario(ctx, state.ActivityID, state.AssetID)
}

// SendCurrent tells one client, or AllClients, about the current
// scenario. With nothing running it only logs a warning.
func (l *Lifecycle) SendCurrent(to transport.Number) {
	state := l.State()
	if !state.Running() {
		l.logger.Warn("no scenario loaded, cannot send it", "to", int(to))
		return
	}
	if l.sender == nil {
		return
	}
	l.sender.Send(to, transport.NotifyAboutCurrentScenario, state.AssetID, state.Epoch)
}

// Reassert is the periodic heartbeat. target is the asset the instance
// should be running (the configured map, or empty for "whatever is
// running"). A different target, or remote content that is no longer
// valid locally, triggers a transition. Otherwise the current scenario
// is re-announced to every client.
func (l *Lifecycle) Reassert(ctx context.Context, target string) error {
	if l.role == RoleServer && l.forceLocation != "" {
		target = l.forceLocation
	}

	l.mu.RLock()
	state := l.state
	descriptor := l.descriptor
	l.mu.RUnlock()

	if target == "" {
		target = state.AssetID
	}
	if target == "" {
		return nil
	}
	if target != state.AssetID {
		l.logger.Info("heartbeat switching scenario", "from", state.AssetID, "to", target)
		return l.SetScenario(ctx, state.ActivityID, target)
	}
	if l.role == RoleServer && descriptor.HasRemoteContent() && !l.resolver.IsValidLocally(ctx, descriptor) {
		l.logger.Info("heartbeat reloading scenario with stale content", "asset_id", target)
		return l.SetScenario(ctx, state.ActivityID, target)
	}

	l.SendCurrent(transport.AllClients)
	if l.sender != nil {
		l.sender.ForceFlush()
	}
	return nil
}
