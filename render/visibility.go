// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"github.com/duskward/legion/world"
)

// FogQuery is the collaborator used to filter entities by fog state (spec
// §4.N: "checking fog state per entity"). The core's Fog of War subsystem
// implements it directly.
type FogQuery interface {
	PlayerVisible(xz world.Vec2, playerFactions []int) bool
}

// Entity is one candidate for visibility computation: its bounding box for
// frustum culling, and whether it carries the ANIMATED flag.
type Entity struct {
	UID      world.UID
	Position world.Vec3
	Rotation world.Angle
	Bounds   world.OBB
	Animated bool
}

// Frustum approximates a camera's ground-plane visible area as an
// axis-aligned rectangle. This core has no 3D camera/projection model (Y
// is derived entirely outside it, spec §3 "Position"); a top-down
// rectangular cull region is the simplification that still exercises the
// broad-phase OBB.AABB() test other spatial queries use.
type Frustum struct {
	Bounds world.AABB
}

func (f Frustum) visible(e Entity) bool {
	return f.Bounds.Intersects(e.Bounds.AABB())
}

// BuildSnapshot computes the static+animated visible lists for one
// visibility pass (cam_visible or light_visible), frustum-culling against
// frustum and keeping only entities fog reports visible to
// playerFactions (spec §4.N).
func BuildSnapshot(entities []Entity, frustum Frustum, fog FogQuery, playerFactions []int) Snapshot {
	var snap Snapshot
	for _, e := range entities {
		if !frustum.visible(e) {
			continue
		}
		if fog != nil && !fog.PlayerVisible(e.Position.XZ(), playerFactions) {
			continue
		}
		v := Visible{UID: e.UID, Position: e.Position, Rotation: e.Rotation}
		if e.Animated {
			snap.Animated = append(snap.Animated, v)
		} else {
			snap.Static = append(snap.Static, v)
		}
	}
	return snap
}
