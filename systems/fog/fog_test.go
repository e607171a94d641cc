// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fog

import (
	"testing"

	"github.com/duskward/legion/world"
)

type flatHeight struct{}

func (flatHeight) HeightAt(world.Vec2) float32 { return 0 }

type wallHeight struct {
	wallX int
	tile  float32
}

// HeightAt returns a tall wall at a fixed tile column, blocking any
// line-of-sight that must cross it.
func (w wallHeight) HeightAt(xz world.Vec2) float32 {
	if int(xz.X/w.tile) == w.wallX {
		return 1000
	}
	return 0
}

func TestFog_AddVisionSetsVisible(t *testing.T) {
	s := New(20, 20, 1, world.Vec2{}, flatHeight{})
	s.AddVision(world.Vec2{X: 10, Z: 10}, 0, 3)

	if s.TileState(0, world.Vec2{X: 10, Z: 10}) != Visible {
		t.Fatal("expected origin tile visible")
	}
	if s.TileState(0, world.Vec2{X: 19, Z: 19}) != Hidden {
		t.Fatal("expected far tile to remain hidden")
	}
}

func TestFog_RemoveVisionDowngradesToInFogNotHidden(t *testing.T) {
	s := New(20, 20, 1, world.Vec2{}, flatHeight{})
	pos := world.Vec2{X: 10, Z: 10}
	s.AddVision(pos, 0, 3)
	s.RemoveVision(pos, 0, 3)

	if s.TileState(0, pos) != InFog {
		t.Fatalf("expected IN_FOG once last vision source withdraws, got %v", s.TileState(0, pos))
	}
}

func TestFog_RefcountKeepsVisibleUntilLastSourceLeaves(t *testing.T) {
	s := New(20, 20, 1, world.Vec2{}, flatHeight{})
	pos := world.Vec2{X: 10, Z: 10}
	s.AddVision(pos, 0, 3)
	s.AddVision(pos, 0, 3) // second observer covering the same tile

	s.RemoveVision(pos, 0, 3)
	if s.TileState(0, pos) != Visible {
		t.Fatal("expected tile to stay visible while one source remains")
	}
	s.RemoveVision(pos, 0, 3)
	if s.TileState(0, pos) != InFog {
		t.Fatal("expected tile to drop to IN_FOG once the last source leaves")
	}
}

func TestFog_WallOccludesLineOfSight(t *testing.T) {
	s := New(20, 20, 1, world.Vec2{}, wallHeight{wallX: 10, tile: 1})
	s.AddVision(world.Vec2{X: 5, Z: 10}, 0, 15)

	if s.TileState(0, world.Vec2{X: 15, Z: 10}) == Visible {
		t.Fatal("expected wall to block line of sight to the far side")
	}
}

func TestFog_PlayerVisibleIsOrAcrossFactions(t *testing.T) {
	s := New(20, 20, 1, world.Vec2{}, flatHeight{})
	pos := world.Vec2{X: 10, Z: 10}
	s.AddVision(pos, 2, 3)

	if !s.PlayerVisible(pos, []int{0, 1, 2}) {
		t.Fatal("expected player_visible true when any listed faction sees the tile")
	}
	if s.PlayerVisible(pos, []int{0, 1}) {
		t.Fatal("expected player_visible false when no listed faction sees the tile")
	}
}

func TestFog_DowngradeClearsVisibleButKeepsRefcounts(t *testing.T) {
	s := New(20, 20, 1, world.Vec2{}, flatHeight{})
	pos := world.Vec2{X: 10, Z: 10}
	s.AddVision(pos, 0, 3)

	s.Downgrade()
	if s.TileState(0, pos) != InFog {
		t.Fatal("expected downgrade to drop VISIBLE to IN_FOG")
	}

	// The live vision source's refcount is untouched by Downgrade, so
	// removing it must still take the refcount to zero without underflow.
	s.RemoveVision(pos, 0, 3)
	if s.TileState(0, pos) != InFog {
		t.Fatal("expected tile to remain IN_FOG after the refcounted source leaves")
	}
}
