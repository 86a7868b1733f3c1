// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/tessera-engine/tessera/lib/config"
)

func TestNormalizeArgs(t *testing.T) {
	got := normalizeArgs([]string{
		"/srv/home",
		"-log-level:debug",
		"-set-map:base/forest.tar.gz",
		"-shutdown-if-idle",
		"-idle-shutdown-interval:30",
		"--shutdown-if-empty",
		"-h",
	})
	want := []string{
		"/srv/home",
		"--log-level=debug",
		"--set-map=base/forest.tar.gz",
		"--shutdown-if-idle",
		"--idle-shutdown-interval=30",
		"--shutdown-if-empty",
		"-h",
	}
	if !slices.Equal(got, want) {
		t.Errorf("normalizeArgs = %v, want %v", got, want)
	}
}

func TestParseOptionsLegacyArguments(t *testing.T) {
	opts, err := parseOptions([]string{"/srv/home", "-log-level:debug", "-set-map:base/forest", "-shutdown-if-idle", "-idle-shutdown-interval:30"})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	cfg := config.Default()
	cfg.Shutdown.IfEmpty = true
	opts.apply(cfg)

	if cfg.Home != "/srv/home" || cfg.Logging.Level != "debug" || cfg.Activity.ForceMapAssetID != "base/forest" {
		t.Errorf("cfg = home %q level %q map %q", cfg.Home, cfg.Logging.Level, cfg.Activity.ForceMapAssetID)
	}
	if !cfg.Shutdown.IfIdle || cfg.Shutdown.IdleInterval != 30 {
		t.Errorf("shutdown = %+v", cfg.Shutdown)
	}
	// Flags not given leave the config alone.
	if !cfg.Shutdown.IfEmpty {
		t.Error("unset --shutdown-if-empty cleared the config value")
	}
}

func TestParseOptionsConfigPathAsHome(t *testing.T) {
	path := filepath.Join("/srv", "home", "tessera.yaml")
	opts, err := parseOptions([]string{path})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.configFile != path || opts.home != filepath.Join("/srv", "home") {
		t.Errorf("configFile = %q, home = %q", opts.configFile, opts.home)
	}

	opts, err = parseOptions([]string{path, "--config", "/etc/tessera.yaml"})
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.configFile != "/etc/tessera.yaml" {
		t.Errorf("explicit --config lost to the positional file: %q", opts.configFile)
	}
}

func TestParseOptionsRejectsBadArguments(t *testing.T) {
	for _, args := range [][]string{
		{"--no-such-flag"},
		{"/srv/a", "/srv/b"},
		{"-idle-shutdown-interval:soon"},
	} {
		if _, err := parseOptions(args); !errors.Is(err, errUsage) {
			t.Errorf("parseOptions(%v) = %v, want errUsage", args, err)
		}
	}
}
