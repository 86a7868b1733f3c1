// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/engine"
	"github.com/tessera-engine/tessera/lib/scenario"
	"github.com/tessera-engine/tessera/lib/session"
	"github.com/tessera-engine/tessera/lib/transport"
)

// Defaults for zero Config fields.
const (
	DefaultTickInterval      = 33 * time.Millisecond
	DefaultMinDelay          = 10 * time.Millisecond
	DefaultHeartbeatInterval = 300 * time.Second
	DefaultIdleInterval      = 60 * time.Second
	DefaultMaxEventsPerTick  = 64
)

// Config wires a Loop.
type Config struct {
	Lifecycle *scenario.Lifecycle
	Sessions  *session.Registry
	World     engine.World
	Sender    transport.Sender

	// Events carries inbound transport events. Nil disables event
	// handling.
	Events <-chan transport.Event

	// HeartbeatTarget is the scenario the heartbeat keeps loaded, and
	// HeartbeatActivity the activity it is loaded under. An empty
	// target re-announces whatever is running.
	HeartbeatTarget   string
	HeartbeatActivity string

	TickInterval      time.Duration
	MinDelay          time.Duration
	HeartbeatInterval time.Duration

	// ShutdownIfIdle stops the loop when IdleInterval passes with no
	// client logged in.
	ShutdownIfIdle bool
	IdleInterval   time.Duration

	MaxEventsPerTick int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Loop is the server control loop.
type Loop struct {
	lifecycle         *scenario.Lifecycle
	sessions          *session.Registry
	world             engine.World
	sender            transport.Sender
	events            <-chan transport.Event
	heartbeatTarget   string
	heartbeatActivity string
	tickInterval      time.Duration
	minDelay          time.Duration
	heartbeatInterval time.Duration
	shutdownIfIdle    bool
	idleInterval      time.Duration
	maxEventsPerTick  int
	clock             clock.Clock
	logger            *slog.Logger

	// Tick state, touched only by the loop goroutine.
	ticks         uint64
	lastHeartbeat time.Time
	lastIdleCheck time.Time
	stopReason    string

	quit     chan struct{}
	quitOnce sync.Once
}

// New returns a Loop. Lifecycle, Sessions, World and Sender are
// required. Every scenario that becomes ready ends private edit mode.
func New(config Config) *Loop {
	loop := &Loop{
		lifecycle:         config.Lifecycle,
		sessions:          config.Sessions,
		world:             config.World,
		sender:            config.Sender,
		events:            config.Events,
		heartbeatTarget:   config.HeartbeatTarget,
		heartbeatActivity: config.HeartbeatActivity,
		tickInterval:      config.TickInterval,
		minDelay:          config.MinDelay,
		heartbeatInterval: config.HeartbeatInterval,
		shutdownIfIdle:    config.ShutdownIfIdle,
		idleInterval:      config.IdleInterval,
		maxEventsPerTick:  config.MaxEventsPerTick,
		clock:             config.Clock,
		logger:            config.Logger,
		quit:              make(chan struct{}),
	}
	if loop.tickInterval <= 0 {
		loop.tickInterval = DefaultTickInterval
	}
	if loop.minDelay <= 0 {
		loop.minDelay = DefaultMinDelay
	}
	if loop.heartbeatInterval <= 0 {
		loop.heartbeatInterval = DefaultHeartbeatInterval
	}
	if loop.idleInterval <= 0 {
		loop.idleInterval = DefaultIdleInterval
	}
	if loop.maxEventsPerTick <= 0 {
		loop.maxEventsPerTick = DefaultMaxEventsPerTick
	}
	if loop.clock == nil {
		loop.clock = clock.Real()
	}
	if loop.logger == nil {
		loop.logger = slog.Default()
	}
	loop.lifecycle.OnReady(func(scenario.State) { loop.sessions.ClearPrivateEdit() })
	return loop
}

// Quit asks the loop to stop at the next tick boundary.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Run ticks until ctx is cancelled, Quit is called or a shutdown
// policy fires. The outbox is flushed on the way out.
func (l *Loop) Run(ctx context.Context) error {
	l.lastIdleCheck = l.clock.Now()
	l.logger.Info("server loop started",
		"tick_interval", l.tickInterval,
		"heartbeat_interval", l.heartbeatInterval,
		"heartbeat_target", l.heartbeatTarget,
		"shutdown_if_idle", l.shutdownIfIdle,
	)
	defer l.sender.ForceFlush()

	for {
		if l.stopping(ctx) {
			l.logger.Info("server loop stopping", "reason", l.stopReason, "ticks", l.ticks)
			return nil
		}

		started := l.clock.Now()
		l.Tick(ctx)

		delay := max(l.tickInterval-l.clock.Now().Sub(started), l.minDelay)
		select {
		case <-ctx.Done():
		case <-l.quit:
		case <-l.clock.After(delay):
		}
	}
}

// stopping reports whether the loop should exit, recording why.
func (l *Loop) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		l.stopReason = "context cancelled"
		return true
	case <-l.quit:
		if l.stopReason == "" {
			l.stopReason = "quit requested"
		}
		return true
	case <-l.sessions.ShutdownRequested():
		l.stopReason = "last client left"
		return true
	default:
		return false
	}
}

// Tick runs one iteration: drain events, advance the world, then
// periodic maintenance and a flush.
func (l *Loop) Tick(ctx context.Context) {
	l.ticks++
	l.drainEvents(ctx)
	l.world.Slice()

	now := l.clock.Now()
	if l.lastHeartbeat.IsZero() || now.Sub(l.lastHeartbeat) >= l.heartbeatInterval {
		l.lastHeartbeat = now
		l.heartbeat(ctx)
	}
	if l.shutdownIfIdle {
		if l.lastIdleCheck.IsZero() {
			l.lastIdleCheck = now
		}
		if now.Sub(l.lastIdleCheck) >= l.idleInterval {
			l.lastIdleCheck = now
			if l.sessions.Count() == 0 {
				l.stopReason = "idle"
				l.logger.Info("no clients for the idle interval, stopping", "idle_interval", l.idleInterval)
				l.Quit()
			}
		}
	}

	l.sender.ForceFlush()
}

func (l *Loop) drainEvents(ctx context.Context) {
	if l.events == nil {
		return
	}
	for range l.maxEventsPerTick {
		select {
		case event, ok := <-l.events:
			if !ok {
				l.events = nil
				return
			}
			l.handleEvent(ctx, event)
		default:
			return
		}
	}
}

func (l *Loop) heartbeat(ctx context.Context) {
	var err error
	if !l.lifecycle.Running() && l.heartbeatTarget != "" {
		err = l.lifecycle.SetScenario(ctx, l.heartbeatActivity, l.heartbeatTarget)
	} else {
		err = l.lifecycle.Reassert(ctx, l.heartbeatTarget)
	}
	if err != nil {
		l.logger.Error("heartbeat could not assert scenario", "target", l.heartbeatTarget, "error", err)
	}
}
