// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tessera.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Clients.Limit != 10 {
		t.Errorf("expected clients.limit=10, got %d", cfg.Clients.Limit)
	}
	if cfg.TickInterval() != 33*time.Millisecond {
		t.Errorf("expected tick interval 33ms, got %v", cfg.TickInterval())
	}
	if cfg.HeartbeatInterval() != 300*time.Second {
		t.Errorf("expected heartbeat interval 300s, got %v", cfg.HeartbeatInterval())
	}
	if cfg.IdleInterval() != time.Minute {
		t.Errorf("expected idle interval 60s, got %v", cfg.IdleInterval())
	}
	if !cfg.State.Resume {
		t.Error("expected state.resume=true")
	}
	if cfg.FetchTimeout() != 2*time.Minute || cfg.LookupTimeout() != 10*time.Second {
		t.Errorf("expected fetch/lookup timeouts 2m/10s, got %v/%v", cfg.FetchTimeout(), cfg.LookupTimeout())
	}
	if cfg.Clients.AdminToken != "" {
		t.Errorf("expected no admin token by default, got %q", cfg.Clients.AdminToken)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
home: /srv/tessera
clients:
  limit: 4
  admins: [alice-id]
activity:
  force_location: base/forest
network:
  rate: 50
  master_update_rate: 120
catalog:
  file: catalog.yaml
logging:
  level: debug
shutdown:
  if_empty: true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Home != "/srv/tessera" {
		t.Errorf("expected home=/srv/tessera, got %s", cfg.Home)
	}
	if cfg.Clients.Limit != 4 || !slices.Equal(cfg.Clients.Admins, []string{"alice-id"}) {
		t.Errorf("clients = %+v", cfg.Clients)
	}
	if cfg.Activity.ForceLocation != "base/forest" {
		t.Errorf("expected force_location=base/forest, got %s", cfg.Activity.ForceLocation)
	}
	if cfg.TickInterval() != 50*time.Millisecond || cfg.HeartbeatInterval() != 2*time.Minute {
		t.Errorf("network = %+v", cfg.Network)
	}
	if !cfg.Shutdown.IfEmpty || cfg.Shutdown.IfIdle {
		t.Errorf("shutdown = %+v", cfg.Shutdown)
	}
	// Unset keys keep their defaults.
	if cfg.Network.Address != ":28787" || cfg.Catalog.FetchAttempts != 3 {
		t.Errorf("defaults lost: address=%q fetch_attempts=%d", cfg.Network.Address, cfg.Catalog.FetchAttempts)
	}
	if got := cfg.HomePath(cfg.Catalog.File); got != filepath.Join("/srv/tessera", "catalog.yaml") {
		t.Errorf("HomePath(catalog) = %s", got)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestLoadFileMalformed(t *testing.T) {
	path := writeConfig(t, "clients: [not, a, mapping")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
clients:
  limit: 4
network:
  address: 127.0.0.1:28787
`)
	t.Setenv("TESSERA_CLIENTS_LIMIT", "16")
	t.Setenv("TESSERA_CLIENTS_ADMINS", "a,b")
	t.Setenv("TESSERA_CLIENTS_ADMIN_TOKEN", "hunter2")
	t.Setenv("TESSERA_CATALOG_FETCH_TIMEOUT", "30")
	t.Setenv("TESSERA_SHUTDOWN_IF_IDLE", "true")
	t.Setenv("TESSERA_LOGGING_LEVEL", "warn")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Clients.Limit != 16 {
		t.Errorf("expected clients.limit=16 from the environment, got %d", cfg.Clients.Limit)
	}
	if !slices.Equal(cfg.Clients.Admins, []string{"a", "b"}) || cfg.Clients.AdminToken != "hunter2" {
		t.Errorf("expected admins [a b] with token, got %v %q", cfg.Clients.Admins, cfg.Clients.AdminToken)
	}
	if cfg.FetchTimeout() != 30*time.Second {
		t.Errorf("expected fetch timeout 30s from the environment, got %v", cfg.FetchTimeout())
	}
	if !cfg.Shutdown.IfIdle || cfg.Logging.Level != "warn" {
		t.Errorf("shutdown=%+v logging=%+v", cfg.Shutdown, cfg.Logging)
	}
	if cfg.Network.Address != "127.0.0.1:28787" {
		t.Errorf("file value lost: address=%q", cfg.Network.Address)
	}
}

func TestEnvironmentRejectsBadValues(t *testing.T) {
	t.Setenv("TESSERA_NETWORK_RATE", "fast")
	if _, err := LoadFile(""); err == nil {
		t.Fatal("expected error for a non-numeric rate")
	}
}

func TestLoadUsesConfigVariable(t *testing.T) {
	path := writeConfig(t, "clients:\n  limit: 3\n")
	t.Setenv("TESSERA_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Clients.Limit != 3 {
		t.Errorf("expected clients.limit=3, got %d", cfg.Clients.Limit)
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := writeConfig(t, `
home: ${HOME}/tessera
catalog:
  file: ${TESSERA_HOME}/catalog.yaml
state:
  file: ${STATE_DIR:-/var/lib/tessera}/scenario.cbor
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Home != "/home/tester/tessera" {
		t.Errorf("home = %s", cfg.Home)
	}
	if cfg.Catalog.File != "/home/tester/tessera/catalog.yaml" {
		t.Errorf("catalog.file = %s", cfg.Catalog.File)
	}
	if cfg.State.File != "/var/lib/tessera/scenario.cbor" {
		t.Errorf("state.file = %s", cfg.State.File)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero limit", func(c *Config) { c.Clients.Limit = 0 }, "clients.limit"},
		{"zero rate", func(c *Config) { c.Network.Rate = 0 }, "network.rate"},
		{"zero heartbeat", func(c *Config) { c.Network.MasterUpdateRate = -1 }, "network.master_update_rate"},
		{"zero fetch timeout", func(c *Config) { c.Catalog.FetchTimeout = 0 }, "catalog.fetch_timeout"},
		{"zero lookup timeout", func(c *Config) { c.Catalog.LookupTimeout = 0 }, "catalog.lookup_timeout"},
		{"bad catalog url", func(c *Config) { c.Catalog.URL = "ftp://example.com" }, "catalog.url"},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"idle without interval", func(c *Config) {
			c.Shutdown.IfIdle = true
			c.Shutdown.IdleInterval = 0
		}, "shutdown.idle_interval"},
		{"no home", func(c *Config) { c.Home = "" }, "home is required"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Clients.Limit = 0
	cfg.Network.Rate = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"clients.limit", "network.rate"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestLookup(t *testing.T) {
	cfg := Default()
	cfg.Activity.ForceLocation = "base/forest"

	tests := []struct {
		section, key string
		fallback     any
		want         any
	}{
		{"Clients", "limit", 99, 10},
		{"clients", "LIMIT", 99, 10},
		{"Network", "master_update_rate", 0, 300},
		{"Activity", "force_location", "", "base/forest"},
		{"Shutdown", "if_empty", true, false},
		{"Network", "missing", "fallback", "fallback"},
		{"Missing", "limit", 7, 7},
		{"home", "anything", "fallback", "fallback"},
	}
	for _, test := range tests {
		if got := cfg.Lookup(test.section, test.key, test.fallback); got != test.want {
			t.Errorf("Lookup(%s, %s) = %#v, want %#v", test.section, test.key, got, test.want)
		}
	}
}
