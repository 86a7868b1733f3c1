// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// tessera-local starts a tessera-server on the loopback interface for
// single-user editing, waits until it has loaded its scenario, and
// stops it on interrupt.
//
// Usage:
//
//	tessera-local [home] [--map forest] [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tessera-engine/tessera/lib/config"
	"github.com/tessera-engine/tessera/lib/localserver"
	"github.com/tessera-engine/tessera/lib/process"
	"github.com/tessera-engine/tessera/lib/server"
	"github.com/tessera-engine/tessera/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var configFile, mapName, serverBinary, logLevel string
	var showVersion bool

	flagSet := pflag.NewFlagSet("tessera-local", pflag.ContinueOnError)
	flagSet.StringVar(&configFile, "config", "", "path to a tessera.yaml config file, passed to the server as well")
	flagSet.StringVar(&mapName, "map", "", "map to pin: a name under base/ or a full location (overrides activity.force_location)")
	flagSet.StringVar(&serverBinary, "server-binary", "", "tessera-server executable (overrides local.server_binary)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level for this supervisor")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("tessera-local %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(1))
	}

	if configFile == "" {
		configFile = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	if flagSet.NArg() == 1 {
		cfg.Home = flagSet.Arg(0)
	}
	if flagSet.Changed("server-binary") {
		cfg.Local.ServerBinary = serverBinary
	}
	if flagSet.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	location := cfg.Activity.ForceLocation
	if mapName != "" {
		location = mapName
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := server.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	binary, err := exec.LookPath(cfg.Local.ServerBinary)
	if err != nil {
		return fmt.Errorf("finding server binary %q: %w", cfg.Local.ServerBinary, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sum, err := version.BinaryDigest(ctx, binary); err == nil {
		logger.Info("local server binary", "path", binary, "digest", sum.String())
	} else {
		logger.Warn("could not hash local server binary", "path", binary, "error", err)
	}

	runner := localserver.New(localserver.Config{
		Binary:        binary,
		Home:          cfg.Home,
		ConfigFile:    configFile,
		Location:      location,
		OutputFile:    cfg.HomePath(cfg.Local.OutputFile),
		ReadyAttempts: cfg.Local.ReadyAttempts,
		Logger:        logger,
	})
	if err := runner.Start(); err != nil {
		return err
	}
	if err := runner.WaitReady(ctx); err != nil {
		if stopErr := runner.Stop(); stopErr != nil {
			logger.Warn("stopping local server", "error", stopErr)
		}
		return err
	}
	logger.Info("local server ready", "location", localserver.MapLocation(location), "home", cfg.Home)

	select {
	case <-ctx.Done():
		logger.Info("stopping local server")
		return runner.Stop()
	case <-runner.Done():
		return fmt.Errorf("%w while running", localserver.ErrExited)
	}
}
