// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// tessera-server runs one scenario server instance: it loads the
// configured scenario, accepts websocket clients under the admission
// policy, and keeps every client on the current scenario.
//
// Usage:
//
//	tessera-server [home | home/tessera.yaml] [flags]
//
// Legacy single-dash arguments (-log-level:debug, -set-map:base/forest,
// -shutdown-if-idle) are accepted and treated as their double-dash
// forms.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tessera-engine/tessera/lib/config"
	"github.com/tessera-engine/tessera/lib/process"
	"github.com/tessera-engine/tessera/lib/server"
	"github.com/tessera-engine/tessera/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			process.Usage(err)
		}
		process.Fatal(err)
	}
}

var errUsage = errors.New("invalid arguments")

// options are the command-line settings layered over the config file.
type options struct {
	home       string
	configFile string
	flags      *pflag.FlagSet

	logLevel             string
	setMap               string
	shutdownIfIdle       bool
	shutdownIfEmpty      bool
	idleShutdownInterval int
	showVersion          bool
}

// normalizeArgs rewrites legacy "-name:value" and "-long-name"
// arguments to pflag's "--name=value" and "--long-name".
func normalizeArgs(args []string) []string {
	normalized := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' {
			name := arg[1:]
			if key, value, ok := strings.Cut(name, ":"); ok {
				normalized = append(normalized, "--"+key+"="+value)
				continue
			}
			if len(name) > 1 {
				normalized = append(normalized, "--"+name)
				continue
			}
		}
		normalized = append(normalized, arg)
	}
	return normalized
}

func parseOptions(args []string) (*options, error) {
	opts := &options{}
	flagSet := pflag.NewFlagSet("tessera-server", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configFile, "config", "", "path to a tessera.yaml config file")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
	flagSet.StringVar(&opts.setMap, "set-map", "", "asset ID of the scenario to keep loaded (overrides activity.force_map_asset_id)")
	flagSet.BoolVar(&opts.shutdownIfIdle, "shutdown-if-idle", false, "exit when nobody is logged in for the idle interval")
	flagSet.BoolVar(&opts.shutdownIfEmpty, "shutdown-if-empty", false, "exit when the last client leaves")
	flagSet.IntVar(&opts.idleShutdownInterval, "idle-shutdown-interval", 0, "idle interval in seconds (overrides shutdown.idle_interval)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	opts.flags = flagSet

	if err := flagSet.Parse(normalizeArgs(args)); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("%w: unexpected argument %s", errUsage, positional[1])
	}
	if len(positional) == 1 {
		home := positional[0]
		if ext := filepath.Ext(home); ext == ".yaml" || ext == ".yml" {
			if opts.configFile == "" {
				opts.configFile = home
			}
			home = filepath.Dir(home)
		}
		opts.home = home
	}
	return opts, nil
}

// apply layers the command line over cfg.
func (opts *options) apply(cfg *config.Config) {
	if opts.home != "" {
		cfg.Home = opts.home
	}
	if opts.flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.flags.Changed("set-map") {
		cfg.Activity.ForceMapAssetID = opts.setMap
	}
	if opts.flags.Changed("shutdown-if-idle") {
		cfg.Shutdown.IfIdle = opts.shutdownIfIdle
	}
	if opts.flags.Changed("shutdown-if-empty") {
		cfg.Shutdown.IfEmpty = opts.shutdownIfEmpty
	}
	if opts.flags.Changed("idle-shutdown-interval") {
		cfg.Shutdown.IdleInterval = opts.idleShutdownInterval
	}
}

func run(args []string) error {
	opts, err := parseOptions(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("tessera-server %s\n", version.Info())
		return nil
	}

	configFile := opts.configFile
	if configFile == "" {
		configFile = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := server.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sum, path, err := version.SelfDigest(ctx); err == nil {
		logger.Info("tessera-server starting", "build", version.Current(), "binary", path, "digest", sum.String(), "home", cfg.Home)
	} else {
		logger.Warn("could not identify own binary", "error", err)
	}

	wired, err := newInstance(cfg, logger)
	if err != nil {
		return err
	}
	return wired.serve(ctx)
}
