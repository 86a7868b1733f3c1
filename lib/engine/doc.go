// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the boundary between the scenario server and the
// world simulation it drives.
//
// [World] is everything the server needs from an engine: checking for
// and loading world files, instantiating scripted entities after a
// load, running script text, exporting entity state and advancing the
// simulation by one slice per loop tick. World names are content-prefix
// relative paths without extension ("base/forest/map"); the world file
// itself is <home>/data/<name>.ogz and its startup script is map.lua in
// the same directory.
//
// [Headless] implements World without a simulation. It validates world
// files on disk, keeps the startup script and entity document of the
// loaded world, and counts slices. The server binary runs it in
// dedicated-server mode and tests use it directly.
package engine
