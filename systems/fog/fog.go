// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fog implements the Fog of War subsystem (spec §4.K): a packed
// per-tile, per-faction visibility grid with refcounted vision sources and
// a line-of-sight corner-occlusion test against a height field. Grounded
// on the teacher's terrain heightmap byte grid (terrain/terrain.go's flat
// []byte indexed by tile) for the dense-array-over-map storage choice, and
// on its noise-driven Generate loop for iterating a tile rectangle.
package fog

import (
	"github.com/chewxy/math32"

	"github.com/duskward/legion/world"
)

// State is a tile's visibility state for one faction.
type State uint8

const (
	Hidden  State = iota // never seen
	InFog                // previously seen, no current vision source
	Visible              // at least one live vision source covers this tile
)

const maxFactions = 16 // 2 bits * 16 = 32-bit word (spec §4.K)

// HeightField is the collaborator queried for corner-occlusion testing.
type HeightField interface {
	HeightAt(xz world.Vec2) float32
}

// System is the Fog of War subsystem.
type System struct {
	width, height int
	tileSize      float32
	origin        world.Vec2
	heights       HeightField

	words     []uint32 // width*height, 2 bits per faction
	refcounts [maxFactions][]int32
}

// New creates a Fog of War grid covering a width x height tile rectangle
// starting at origin, each tile tileSize world units across.
func New(width, height int, tileSize float32, origin world.Vec2, heights HeightField) *System {
	return &System{
		width:    width,
		height:   height,
		tileSize: tileSize,
		origin:   origin,
		heights:  heights,
		words:    make([]uint32, width*height),
	}
}

func (s *System) inBounds(x, y int) bool {
	return x >= 0 && x < s.width && y >= 0 && y < s.height
}

func (s *System) tileIndex(x, y int) int {
	return y*s.width + x
}

func (s *System) tileCoord(xz world.Vec2) (int, int) {
	return int((xz.X - s.origin.X) / s.tileSize), int((xz.Z - s.origin.Z) / s.tileSize)
}

func (s *System) tileCenter(x, y int) world.Vec2 {
	return world.Vec2{
		X: s.origin.X + (float32(x)+0.5)*s.tileSize,
		Z: s.origin.Z + (float32(y)+0.5)*s.tileSize,
	}
}

func (s *System) state(idx int, faction int) State {
	shift := uint(faction) * 2
	return State((s.words[idx] >> shift) & 0x3)
}

func (s *System) setState(idx int, faction int, v State) {
	shift := uint(faction) * 2
	mask := uint32(0x3) << shift
	s.words[idx] = (s.words[idx] &^ mask) | (uint32(v) << shift)
}

func (s *System) refcount(faction int) []int32 {
	if s.refcounts[faction] == nil {
		s.refcounts[faction] = make([]int32, s.width*s.height)
	}
	return s.refcounts[faction]
}

// TileState reports faction's visibility state of the tile at xz.
func (s *System) TileState(faction int, xz world.Vec2) State {
	x, y := s.tileCoord(xz)
	if !s.inBounds(x, y) || faction < 0 || faction >= maxFactions {
		return Hidden
	}
	return s.state(s.tileIndex(x, y), faction)
}

// PlayerVisible reports whether any of playerFactions currently sees xz
// (spec §4.K: "OR across player-controlled factions").
func (s *System) PlayerVisible(xz world.Vec2, playerFactions []int) bool {
	for _, f := range playerFactions {
		if s.TileState(f, xz) == Visible {
			return true
		}
	}
	return false
}

// AddVision adds one vision source for faction at xz covering radius,
// line-of-sight tested against the height field, and sets VISIBLE on every
// covered tile, each of which now has a refcount above zero (spec §4.K).
func (s *System) AddVision(xz world.Vec2, faction int, radius float32) {
	s.walkVisionCircle(xz, faction, radius, func(idx int, rc []int32) {
		rc[idx]++
		s.setState(idx, faction, Visible)
	})
}

// RemoveVision removes one vision source for faction at xz covering radius
// (the same point/radius previously passed to AddVision), downgrading to
// IN_FOG any tile whose refcount falls back to zero (spec §4.K).
func (s *System) RemoveVision(xz world.Vec2, faction int, radius float32) {
	s.walkVisionCircle(xz, faction, radius, func(idx int, rc []int32) {
		if rc[idx] == 0 {
			return
		}
		rc[idx]--
		if rc[idx] == 0 {
			s.setState(idx, faction, InFog)
		}
	})
}

func (s *System) walkVisionCircle(xz world.Vec2, faction int, radius float32, apply func(idx int, rc []int32)) {
	if faction < 0 || faction >= maxFactions {
		return
	}
	cx, cy := s.tileCoord(xz)
	rTiles := int(radius/s.tileSize) + 1
	rc := s.refcount(faction)

	for dy := -rTiles; dy <= rTiles; dy++ {
		for dx := -rTiles; dx <= rTiles; dx++ {
			x, y := cx+dx, cy+dy
			if !s.inBounds(x, y) {
				continue
			}
			if float32(dx*dx+dy*dy) > float32(rTiles*rTiles) {
				continue
			}
			if !s.lineOfSight(cx, cy, x, y) {
				continue
			}
			apply(s.tileIndex(x, y), rc)
		}
	}
}

// lineOfSight samples the tiles on the straight line from the observer tile
// to (tx,ty) and reports the target hidden if any intermediate tile's height
// rises above the straight-line interpolation between observer and target
// height (spec §4.K). It is not a flood fill: only tiles on that one line
// are tested, so a higher tile beside the line does not occlude the target.
func (s *System) lineOfSight(ox, oy, tx, ty int) bool {
	steps := maxInt(absInt(tx-ox), absInt(ty-oy))
	if steps == 0 {
		return true
	}
	observerHeight := s.heights.HeightAt(s.tileCenter(ox, oy))
	targetHeight := s.heights.HeightAt(s.tileCenter(tx, ty))
	for i := 1; i < steps; i++ {
		t := float32(i) / float32(steps)
		ix := ox + int(math32.Floor(float32(tx-ox)*t+0.5))
		iy := oy + int(math32.Floor(float32(ty-oy)*t+0.5))
		lineHeight := observerHeight + (targetHeight-observerHeight)*t
		if s.heights.HeightAt(s.tileCenter(ix, iy)) > lineHeight {
			return false
		}
	}
	return true
}

// Downgrade implements the save policy (spec §4.K): on serialization, every
// VISIBLE tile for every faction drops to IN_FOG so a loaded game starts
// with no spurious vision. Refcounts are left untouched; live vision
// sources re-establish VISIBLE on their next AddVision call after load.
func (s *System) Downgrade() {
	for faction := 0; faction < maxFactions; faction++ {
		for idx := range s.words {
			if s.state(idx, faction) == Visible {
				s.setState(idx, faction, InFog)
			}
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
