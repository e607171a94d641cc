// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package garrison

import (
	"testing"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

type fakeNav struct{}

func (fakeNav) NearestWaterAdjacentLandTile(from world.Vec2) world.Vec2 { return from }
func (fakeNav) NearestReachableWaterTile(from world.Vec2) world.Vec2    { return from }

func newHarness(t *testing.T) (*world.Registry, *eventbus.Bus, *System) {
	t.Helper()
	reg := world.NewRegistry()
	bus := eventbus.New()
	sys := New(reg, bus, fakeNav{}, world.ToTicks(1))
	return reg, bus, sys
}

func newUnit(t *testing.T, reg *world.Registry, sys *System, capacity int) world.UID {
	t.Helper()
	uid := reg.NewUID()
	if err := reg.Add(uid, world.Garrison, world.Vec3{}); err != nil {
		t.Fatal(err)
	}
	sys.AddUnit(uid, capacity)
	return uid
}

func newCarrier(t *testing.T, reg *world.Registry, sys *System, capacity int) world.UID {
	t.Helper()
	uid := reg.NewUID()
	if err := reg.Add(uid, world.Garrisonable, world.Vec3{}); err != nil {
		t.Fatal(err)
	}
	sys.AddCarrier(uid, capacity)
	return uid
}

func TestGarrison_BoardsWhenBothArrive(t *testing.T) {
	reg, bus, sys := newHarness(t)
	u := newUnit(t, reg, sys, 1)
	c := newCarrier(t, reg, sys, 2)

	var boarded int
	bus.Register(eventbus.UnitBoarded, eventbus.HandlerFunc(func(eventbus.Event) error {
		boarded++
		return nil
	}), eventbus.MaskAll)

	sys.RequestBoard(u, c, false, false)
	sys.UnitArrived(u)
	if sys.UnitState(u) != AwaitingPickup {
		t.Fatalf("expected unit to wait for its carrier, got %v", sys.UnitState(u))
	}
	sys.CarrierArrived(c)
	bus.ServiceQueue()

	if sys.UnitState(u) != Garrisoned {
		t.Fatalf("expected unit Garrisoned once carrier arrives, got %v", sys.UnitState(u))
	}
	if boarded != 1 {
		t.Fatalf("expected one UnitBoarded event, got %d", boarded)
	}
	if got := sys.Garrisoned(c); len(got) != 1 || got[0] != u {
		t.Fatalf("expected carrier to list unit as garrisoned, got %v", got)
	}
}

func TestGarrison_CapacityRejectsOverflow(t *testing.T) {
	reg, _, sys := newHarness(t)
	a := newUnit(t, reg, sys, 1)
	b := newUnit(t, reg, sys, 1)
	c := newCarrier(t, reg, sys, 1)

	sys.RequestBoard(a, c, false, false)
	sys.CarrierArrived(c)
	sys.UnitArrived(a)
	if sys.UnitState(a) != Garrisoned {
		t.Fatalf("expected first unit to board, got %v", sys.UnitState(a))
	}

	sys.RequestBoard(b, c, false, false)
	sys.UnitArrived(b)
	sys.CarrierArrived(c)
	if sys.UnitState(b) == Garrisoned {
		t.Fatal("expected second unit to be rejected once carrier is at capacity")
	}
}

func TestGarrison_EvictionStaggersOneAtATime(t *testing.T) {
	reg, bus, sys := newHarness(t)
	a := newUnit(t, reg, sys, 1)
	b := newUnit(t, reg, sys, 1)
	c := newCarrier(t, reg, sys, 2)

	sys.RequestBoard(a, c, false, false)
	sys.UnitArrived(a)
	sys.CarrierArrived(c)
	sys.RequestBoard(b, c, false, false)
	sys.CarrierArrived(c)
	sys.UnitArrived(b)

	var evicted int
	bus.Register(eventbus.UnitEvicted, eventbus.HandlerFunc(func(eventbus.Event) error {
		evicted++
		return nil
	}), eventbus.MaskAll)

	sys.Evict(c, []world.UID{a, b})

	sys.Update(world.ToTicks(1))
	bus.ServiceQueue()
	if evicted != 1 {
		t.Fatalf("expected exactly one eviction after one delay interval, got %d", evicted)
	}

	sys.Update(world.ToTicks(1))
	bus.ServiceQueue()
	if evicted != 2 {
		t.Fatalf("expected second eviction after the second delay interval, got %d", evicted)
	}
}

func TestGarrison_RemoveCarrierReleasesRiders(t *testing.T) {
	reg, _, sys := newHarness(t)
	u := newUnit(t, reg, sys, 1)
	c := newCarrier(t, reg, sys, 2)

	sys.RequestBoard(u, c, false, false)
	sys.UnitArrived(u)
	sys.CarrierArrived(c)
	if sys.UnitState(u) != Garrisoned {
		t.Fatal("expected unit garrisoned before carrier removal")
	}

	sys.RemoveEntity(c)
	if sys.UnitState(u) != NotGarrisoned {
		t.Fatalf("expected unit released when its carrier is removed, got %v", sys.UnitState(u))
	}
}

func TestGarrison_RemoveEntityIdempotent(t *testing.T) {
	reg, _, sys := newHarness(t)
	u := newUnit(t, reg, sys, 1)
	sys.RemoveEntity(u)
	sys.RemoveEntity(u)
	if sys.UnitState(u) != NotGarrisoned {
		t.Fatal("expected untracked unit to report NotGarrisoned")
	}
}
