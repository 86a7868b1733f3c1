// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"errors"
	"testing"

	"github.com/tessera-engine/tessera/lib/testutil"
)

func TestHeadlessLoadWorld(t *testing.T) {
	home := testutil.Home(t)
	testutil.WriteAsset(t, home, "base/forest/map.ogz", []byte("octree"))
	testutil.WriteAsset(t, home, "base/forest/map.lua", []byte("print('forest')"))
	testutil.WriteAsset(t, home, "base/forest/entities.json", []byte(`[{"class":"Door"}]`))
	world := NewHeadless(home, testutil.Logger())

	if !world.WorldExists("base/forest/map") {
		t.Fatal("WorldExists = false for a present world file")
	}
	if !world.LoadWorld("base/forest/map") {
		t.Fatal("LoadWorld failed")
	}
	if err := world.CreateEntities(); err != nil {
		t.Fatalf("CreateEntities: %v", err)
	}
	status := world.Status()
	if status.Loaded != "base/forest/map" || !status.EntitiesCreated {
		t.Errorf("status = %+v", status)
	}
	if len(status.Scripts) != 1 || status.Scripts[0] != "print('forest')" {
		t.Errorf("scripts = %v, want the startup script", status.Scripts)
	}
	entities, err := world.SerializeEntities()
	if err != nil || entities != `[{"class":"Door"}]` {
		t.Errorf("SerializeEntities = %q, %v", entities, err)
	}
}

func TestHeadlessLoadFailuresKeepPreviousWorld(t *testing.T) {
	home := testutil.Home(t)
	testutil.WriteAsset(t, home, "base/forest/map.ogz", []byte("octree"))
	testutil.WriteAsset(t, home, "base/empty/map.ogz", nil)
	world := NewHeadless(home, testutil.Logger())
	if !world.LoadWorld("base/forest/map") {
		t.Fatal("LoadWorld(base/forest/map) failed")
	}

	for _, name := range []string{"base/missing/map", "base/empty/map", "../outside/map"} {
		if world.LoadWorld(name) {
			t.Errorf("LoadWorld(%q) succeeded", name)
		}
	}
	if world.WorldExists("../outside/map") {
		t.Error("WorldExists accepted an escaping name")
	}
	if got := world.Status().Loaded; got != "base/forest/map" {
		t.Errorf("loaded = %q after failures, want base/forest/map", got)
	}
}

func TestHeadlessNeedsWorld(t *testing.T) {
	world := NewHeadless(testutil.Home(t), testutil.Logger())
	if err := world.CreateEntities(); !errors.Is(err, ErrNoWorld) {
		t.Errorf("CreateEntities = %v, want ErrNoWorld", err)
	}
	if _, err := world.RunScript("x = 1"); !errors.Is(err, ErrNoWorld) {
		t.Errorf("RunScript = %v, want ErrNoWorld", err)
	}
	world.Slice()
	world.Slice()
	if got := world.Status().Slices; got != 2 {
		t.Errorf("Slices = %d, want 2", got)
	}
}
