// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Tessera server
// binaries.
//
// Configuration is assembled in three layers: [Default] values, then
// an optional YAML file, then TESSERA_* environment variables. The
// file is named by the --config flag, by a positional argument ending
// in .yaml, or by the TESSERA_CONFIG environment variable (via
// [Load]). Without a file the defaults plus environment are used.
//
// Sections mirror the settings scripts and operators know: clients,
// activity, network, catalog, logging, shutdown, state and local.
// [Config.Lookup] reads a single value by section and key for code
// that only has names.
//
// ${HOME} and ${TESSERA_HOME} are expanded in path fields after
// loading.
//
// Key exports:
//
//   - [Config] -- master struct
//   - [Default] -- built-in defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- reports every problem at once
//
// This package depends on no other Tessera packages.
package config
