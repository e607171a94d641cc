// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "github.com/duskward/legion/world"

// navAndBlockers is a placeholder satisfying both garrison.Nav and
// construction.NavBlockers. Both interfaces exist so those packages stay
// independent of a concrete pathing/navgrid implementation, which this
// core explicitly does not define (construction.go's own doc comment:
// "spec names navgrid blocking but does not define its own module for
// it"). A real deployment supplies its own navgrid-backed implementation
// of these two interfaces; this stub lets World construct without one.
type navAndBlockers struct{}

// NearestWaterAdjacentLandTile reports from unchanged: without a navgrid
// there is no shoreline data to search.
func (navAndBlockers) NearestWaterAdjacentLandTile(from world.Vec2) world.Vec2 {
	return from
}

// NearestReachableWaterTile reports from unchanged, for the same reason.
func (navAndBlockers) NearestReachableWaterTile(from world.Vec2) world.Vec2 {
	return from
}

// Increment is a no-op: no navgrid exists to mark blocked.
func (navAndBlockers) Increment(obb world.OBB) {}

// Decrement is a no-op, for the same reason.
func (navAndBlockers) Decrement(obb world.OBB) {}
