// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package automation

import (
	"testing"

	"github.com/duskward/legion/systems/combat"
	"github.com/duskward/legion/systems/garrison"
	"github.com/duskward/legion/systems/harvest"
	"github.com/duskward/legion/systems/movement"
	"github.com/duskward/legion/world"
)

type fakeMovement struct{ state movement.State }

func (f fakeMovement) State(world.UID) movement.State { return f.state }

type fakeHarvest struct{ state harvest.State }

func (f fakeHarvest) State(world.UID) harvest.State { return f.state }

type fakeCombat struct{ state combat.State }

func (f fakeCombat) State(world.UID) combat.State { return f.state }

type fakeGarrison struct{ state garrison.UnitState }

func (f fakeGarrison) UnitState(world.UID) garrison.UnitState { return f.state }

func TestAutomation_BecomesActiveAfterTwoIdleTicks(t *testing.T) {
	reg := world.NewRegistry()
	uid := reg.NewUID()
	if err := reg.Add(uid, world.Movable, world.Vec3{}); err != nil {
		t.Fatal(err)
	}
	mv := fakeMovement{state: movement.Idle}
	sys := New(reg, mv, nil, nil, nil, 10)
	sys.AddEntity(uid, false)

	sys.Update()
	if sys.State(uid) != Waking {
		t.Fatalf("expected Waking after first idle tick, got %v", sys.State(uid))
	}
	sys.Update()
	if sys.State(uid) != Active {
		t.Fatalf("expected Active after second idle tick, got %v", sys.State(uid))
	}
}

func TestAutomation_BusyDuringHysteresisResetsToIdle(t *testing.T) {
	reg := world.NewRegistry()
	uid := reg.NewUID()
	if err := reg.Add(uid, world.Movable, world.Vec3{}); err != nil {
		t.Fatal(err)
	}
	mv := &fakeMovement{state: movement.Idle}
	sys := New(reg, mv, nil, nil, nil, 10)
	sys.AddEntity(uid, false)

	sys.Update() // Waking
	mv.state = movement.MovingToPoint
	sys.Update()
	if sys.State(uid) != Idle {
		t.Fatalf("expected a busy tick during Waking to revert to Idle, got %v", sys.State(uid))
	}
}

func TestAutomation_GarrisonedUnitNeverIdle(t *testing.T) {
	reg := world.NewRegistry()
	uid := reg.NewUID()
	if err := reg.Add(uid, world.Garrison, world.Vec3{}); err != nil {
		t.Fatal(err)
	}
	gs := fakeGarrison{state: garrison.Garrisoned}
	sys := New(reg, nil, nil, nil, gs, 10)
	sys.AddEntity(uid, false)

	sys.Update()
	sys.Update()
	if sys.State(uid) != Idle {
		t.Fatalf("expected a garrisoned unit to never leave Idle, got %v", sys.State(uid))
	}
}

func TestAutomation_AssignTransportPicksLowestCost(t *testing.T) {
	reg := world.NewRegistry()
	sys := New(reg, nil, nil, nil, nil, 10)

	near := world.UID(1)
	far := world.UID(2)
	candidates := []Site{
		{UID: far, Pos: world.Vec2{X: 100, Z: 0}},
		{UID: near, Pos: world.Vec2{X: 5, Z: 0}},
	}

	got := sys.AssignTransport(world.Vec2{}, candidates)
	if got != near {
		t.Fatalf("expected nearest site chosen, got %v", got)
	}
}

func TestAutomation_AssignTransportTieBreaksByAssignedThenDistance(t *testing.T) {
	reg := world.NewRegistry()
	sys := New(reg, nil, nil, nil, nil, 10)

	a := world.UID(1)
	b := world.UID(2)
	// Equal cost: a is floor(50/10)+1 prior assignment = 6, b is
	// floor(65/10)+0 = 6. The tie-break prefers fewer assignments, so b must
	// win despite being farther.
	candidates := []Site{
		{UID: a, Pos: world.Vec2{X: 50, Z: 0}},
		{UID: b, Pos: world.Vec2{X: 65, Z: 0}},
	}
	sys.assigned[a] = 1

	got := sys.AssignTransport(world.Vec2{}, candidates)
	if got != b {
		t.Fatalf("expected tie-break to favor the less-assigned site, got %v", got)
	}
}

func TestAutomation_ReleaseDecrementsAssignedCount(t *testing.T) {
	reg := world.NewRegistry()
	sys := New(reg, nil, nil, nil, nil, 10)
	site := world.UID(1)
	sys.assigned[site] = 2

	sys.Release(site)
	if sys.assigned[site] != 1 {
		t.Fatalf("expected assigned count decremented to 1, got %d", sys.assigned[site])
	}
	sys.Release(site)
	sys.Release(site) // must not underflow below zero
	if sys.assigned[site] != 0 {
		t.Fatalf("expected assigned count floored at 0, got %d", sys.assigned[site])
	}
}
