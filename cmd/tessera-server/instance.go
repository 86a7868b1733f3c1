// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-engine/tessera/lib/archive"
	"github.com/tessera-engine/tessera/lib/asset"
	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/config"
	"github.com/tessera-engine/tessera/lib/engine"
	"github.com/tessera-engine/tessera/lib/fetch"
	"github.com/tessera-engine/tessera/lib/keepalive"
	"github.com/tessera-engine/tessera/lib/scenario"
	"github.com/tessera-engine/tessera/lib/server"
	"github.com/tessera-engine/tessera/lib/session"
	"github.com/tessera-engine/tessera/lib/transport"
	"github.com/tessera-engine/tessera/lib/version"
)

const shutdownGrace = 5 * time.Second

// instance is one wired server.
type instance struct {
	address  string
	hub      *transport.WebSocketHub
	loop     *server.Loop
	sessions *session.Registry
	logger   *slog.Logger
}

func newInstance(cfg *config.Config, logger *slog.Logger) (*instance, error) {
	realClock := clock.Real()
	layout := asset.Layout{Home: cfg.Home}

	catalog, err := buildCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}

	outbox := transport.NewOutbox(logger)
	pump := keepalive.Options{Clock: realClock, Pump: outbox.ForceFlush}

	registry := asset.NewRegistry(asset.RegistryConfig{
		Layout:  layout,
		Catalog: catalog,
		Fetcher: fetch.NewClient(fetch.Config{
			MaxAttempts: cfg.Catalog.FetchAttempts,
			Timeout:     cfg.FetchTimeout(),
			UserAgent:   "tessera-server/" + version.Version,
			Clock:       realClock,
			Logger:      logger,
		}),
		Side:      asset.AudienceServer,
		Keepalive: pump,
		Logger:    logger,
	})
	archive.NewMaterializer(archive.Config{
		Layout:    layout,
		Bus:       registry.Bus(),
		Keepalive: pump,
		Clock:     realClock,
		Logger:    logger,
	}).Subscribe()

	world := engine.NewHeadless(cfg.Home, logger)

	var stateFile *scenario.StateFile
	if path := cfg.HomePath(cfg.State.File); path != "" {
		stateFile = &scenario.StateFile{Path: path}
	}

	lifecycle := scenario.New(scenario.Config{
		Role:          scenario.RoleServer,
		World:         world,
		Resolver:      registry,
		Sender:        outbox,
		Layout:        layout,
		ForceLocation: cfg.Activity.ForceLocation,
		StateFile:     stateFile,
		Clock:         realClock,
		Logger:        logger,
	})

	localMode := session.IsLocalBinding(cfg.Network.Address)
	sessions := session.New(session.Config{
		Capacity:        cfg.Clients.Limit,
		LocalMode:       localMode,
		ShutdownIfEmpty: cfg.Shutdown.IfEmpty,
		Admins:          cfg.Clients.Admins,
		AdminToken:      cfg.Clients.AdminToken,
		Scenario:        lifecycle,
		Sender:          outbox,
		Clock:           realClock,
		Logger:          logger,
	})
	sessions.OnConnect(func(client session.Client) {
		logger.Info("client joined", "client", client.String(), "clients", sessions.Count())
	})
	sessions.OnDisconnect(func(client session.Client) {
		logger.Info("client leaving", "client", client.String(), "connected_for", realClock.Now().Sub(client.ConnectedAt))
	})
	lifecycle.OnReady(func(state scenario.State) {
		logger.Info("scenario announced", "asset_id", state.AssetID, "epoch", state.Epoch, "clients", sessions.Count())
	})

	target, activity := cfg.Activity.ForceMapAssetID, cfg.Activity.ForceActivityID
	if target == "" && cfg.Activity.ForceLocation == "" && cfg.State.Resume && stateFile != nil {
		record, ok, err := stateFile.Load(realClock.Now(), cfg.StateMaxAge())
		switch {
		case err != nil:
			logger.Warn("ignoring unreadable scenario record", "path", stateFile.Path, "error", err)
		case ok:
			target, activity = record.State.AssetID, record.State.ActivityID
			logger.Info("resuming recorded scenario", "asset_id", target, "committed_at", record.CommittedAt)
		}
	}

	hub := transport.NewWebSocketHub(transport.HubConfig{Outbox: outbox, Logger: logger})
	loop := server.New(server.Config{
		Lifecycle:         lifecycle,
		Sessions:          sessions,
		World:             world,
		Sender:            outbox,
		Events:            hub.Events(),
		HeartbeatTarget:   target,
		HeartbeatActivity: activity,
		TickInterval:      cfg.TickInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		ShutdownIfIdle:    cfg.Shutdown.IfIdle,
		IdleInterval:      cfg.IdleInterval(),
		Clock:             realClock,
		Logger:            logger,
	})

	logger.Info("server configured",
		"address", cfg.Network.Address,
		"local_mode", localMode,
		"capacity", cfg.Clients.Limit,
		"heartbeat_target", target,
		"force_location", cfg.Activity.ForceLocation,
	)
	return &instance{
		address:  cfg.Network.Address,
		hub:      hub,
		loop:     loop,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// buildCatalog chains the file catalog before the remote one. Nil when
// neither is configured.
func buildCatalog(cfg *config.Config, logger *slog.Logger) (asset.Catalog, error) {
	var chain asset.Chain
	if path := cfg.HomePath(cfg.Catalog.File); path != "" {
		fileCatalog, err := asset.LoadFileCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		logger.Info("catalog loaded", "path", path, "assets", fileCatalog.Len())
		chain = append(chain, fileCatalog)
	}
	if cfg.Catalog.URL != "" {
		chain = append(chain, &fetch.RemoteCatalog{BaseURL: cfg.Catalog.URL, Timeout: cfg.LookupTimeout()})
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

// serve runs the websocket listener and the loop until either stops.
func (i *instance) serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", i.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", i.address, err)
	}
	httpServer := &http.Server{
		Handler:           i.hub,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		i.logger.Info("accepting clients", "address", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving websocket clients: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		err := i.loop.Run(groupContext)
		i.hub.Close()
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
			i.logger.Warn("websocket listener did not shut down cleanly", "error", shutdownErr)
		}
		return err
	})

	err = group.Wait()
	i.logger.Info("tessera-server stopped", "clients", i.sessions.Count())
	return err
}
