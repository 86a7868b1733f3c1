// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/tessera-engine/tessera/lib/asset"
)

// ErrNoWorld is returned by operations that need a loaded world.
var ErrNoWorld = errors.New("no world loaded")

// Headless is a World backed only by the files on disk.
type Headless struct {
	layout asset.Layout
	logger *slog.Logger

	mu       sync.Mutex
	loaded   string
	script   string
	entities string
	created  bool
	scripts  []string
	slices   uint64
}

// NewHeadless returns a headless world reading content under home.
func NewHeadless(home string, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{layout: asset.Layout{Home: home}, logger: logger}
}

func (h *Headless) worldPath(name string) string {
	return h.layout.Path(name + WorldFileExtension)
}

// WorldExists implements World.
func (h *Headless) WorldExists(name string) bool {
	if asset.ValidateRelativePath(name) != nil {
		return false
	}
	info, err := os.Stat(h.worldPath(name))
	return err == nil && info.Mode().IsRegular()
}

// LoadWorld implements World. The world file must exist and be
// non-empty; the startup script and entity document are optional.
func (h *Headless) LoadWorld(name string) bool {
	if asset.ValidateRelativePath(name) != nil {
		h.logger.Error("refusing world name outside the data directory", "world", name)
		return false
	}
	worldPath := h.worldPath(name)
	info, err := os.Stat(worldPath)
	if err != nil {
		h.logger.Error("world file unavailable", "world", name, "error", err)
		return false
	}
	if info.Size() == 0 {
		h.logger.Error("world file is empty", "world", name, "path", worldPath)
		return false
	}

	directory := path.Dir(name)
	script, err := h.readOptional(path.Join(directory, ScriptFileName))
	if err != nil {
		h.logger.Error("reading world script", "world", name, "error", err)
		return false
	}
	entities, err := h.readOptional(path.Join(directory, EntitiesFileName))
	if err != nil {
		h.logger.Error("reading world entities", "world", name, "error", err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.loaded = name
	h.script = script
	h.entities = entities
	h.created = false
	if script != "" {
		h.scripts = append(h.scripts, script)
	}
	h.logger.Info("world loaded", "world", name, "bytes", info.Size(), "script", script != "")
	return true
}

func (h *Headless) readOptional(location string) (string, error) {
	data, err := os.ReadFile(h.layout.Path(location))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateEntities implements World.
func (h *Headless) CreateEntities() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded == "" {
		return ErrNoWorld
	}
	h.created = true
	return nil
}

// RunScript implements World. Scripts are recorded, not evaluated.
func (h *Headless) RunScript(text string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded == "" {
		return "", ErrNoWorld
	}
	h.scripts = append(h.scripts, text)
	return "", nil
}

// SerializeEntities implements World. It returns the entity document
// the world was loaded with, or an empty list.
func (h *Headless) SerializeEntities() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded == "" {
		return "", ErrNoWorld
	}
	if h.entities == "" {
		return "[]", nil
	}
	return h.entities, nil
}

// HomeDir implements World.
func (h *Headless) HomeDir() string { return h.layout.Home }

// Slice implements World.
func (h *Headless) Slice() {
	h.mu.Lock()
	h.slices++
	h.mu.Unlock()
}

// Status is a snapshot of a headless world.
type Status struct {
	Loaded          string
	EntitiesCreated bool
	Scripts         []string
	Slices          uint64
}

// Status returns a snapshot for tests and diagnostics.
func (h *Headless) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		Loaded:          h.loaded,
		EntitiesCreated: h.created,
		Scripts:         append([]string(nil), h.scripts...),
		Slices:          h.slices,
	}
}

// String describes the loaded world.
func (h *Headless) String() string {
	status := h.Status()
	if status.Loaded == "" {
		return "headless world (nothing loaded)"
	}
	return fmt.Sprintf("headless world %s (%s)", status.Loaded, filepath.Base(h.worldPath(status.Loaded)))
}
