// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package engine

// World is a loadable, steppable simulation.
type World interface {
	// WorldExists reports whether the world file for name is present.
	WorldExists(name string) bool

	// LoadWorld replaces the running world with name. It reports
	// whether the load succeeded; on failure the previous world keeps
	// running.
	LoadWorld(name string) bool

	// CreateEntities instantiates the loaded world's scripted entities.
	CreateEntities() error

	// RunScript evaluates script text and returns its result.
	RunScript(text string) (string, error)

	// SerializeEntities returns the loaded world's entities in the form
	// the entity export file uses.
	SerializeEntities() (string, error)

	// HomeDir is the server home the world reads content from.
	HomeDir() string

	// Slice advances the simulation by one loop tick.
	Slice()
}

// WorldFileExtension is appended to a world name to find its file.
const WorldFileExtension = ".ogz"

// Well-known files next to a world file.
const (
	ScriptFileName   = "map.lua"
	EntitiesFileName = "entities.json"
)
