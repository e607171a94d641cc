// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package movement

import (
	"testing"
	"time"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
	"github.com/duskward/legion/world/quadtree"
)

func newHarness(t *testing.T) (*world.Registry, *quadtree.Index, *eventbus.Bus, *System) {
	t.Helper()
	reg := world.NewRegistry()
	idx := quadtree.New(1000)
	bus := eventbus.New()
	sys := New(reg, idx, bus)
	return reg, idx, bus, sys
}

func TestMovement_SetDestMovesTowardTarget(t *testing.T) {
	reg, idx, _, sys := newHarness(t)
	uid := reg.NewUID()
	_ = reg.Add(uid, world.Movable, world.Vec3{})
	idx.Set(uid, world.Vec2{})
	sys.AddEntity(uid, 10, world.Pi, Rate20Hz)

	sys.SetDest(uid, world.Vec2{X: 100, Z: 0})
	sys.Update(100*time.Millisecond, 1)

	pos := reg.PositionGet(uid)
	if pos.X <= 0 {
		t.Fatalf("expected entity to move toward +X, got %+v", pos)
	}
}

func TestMovement_MotionStartPrecedesMotionEnd(t *testing.T) {
	reg, idx, bus, sys := newHarness(t)
	uid := reg.NewUID()
	_ = reg.Add(uid, world.Movable, world.Vec3{})
	idx.Set(uid, world.Vec2{})
	sys.AddEntity(uid, 1000, world.Pi, Rate20Hz)

	var order []eventbus.Kind
	bus.Register(eventbus.MotionStart, eventbus.HandlerFunc(func(ev eventbus.Event) error {
		order = append(order, ev.Kind)
		return nil
	}), eventbus.MaskAll)
	bus.Register(eventbus.MotionEnd, eventbus.HandlerFunc(func(ev eventbus.Event) error {
		order = append(order, ev.Kind)
		return nil
	}), eventbus.MaskAll)

	sys.SetDest(uid, world.Vec2{X: 1, Z: 0})
	// Large step should close the distance and finish the episode in one
	// tick, giving a minimal start/end pair to check ordering on.
	sys.Update(time.Second, 1)
	bus.ServiceQueue()

	if len(order) != 2 || order[0] != eventbus.MotionStart || order[1] != eventbus.MotionEnd {
		t.Fatalf("expected [MotionStart MotionEnd] for one episode, got %v", order)
	}
}

func TestMovement_StopIsIdempotent(t *testing.T) {
	reg, idx, _, sys := newHarness(t)
	uid := reg.NewUID()
	_ = reg.Add(uid, world.Movable, world.Vec3{})
	idx.Set(uid, world.Vec2{})
	sys.AddEntity(uid, 10, world.Pi, Rate20Hz)

	sys.SetDest(uid, world.Vec2{X: 50, Z: 0})
	sys.Stop(uid)
	sys.Stop(uid) // must not panic or double-fire anything

	if sys.State(uid) != Idle {
		t.Fatalf("expected Idle after Stop, got %v", sys.State(uid))
	}
}

func TestMovement_NewOrderEmitsOrderIssued(t *testing.T) {
	reg, idx, bus, sys := newHarness(t)
	uid := reg.NewUID()
	_ = reg.Add(uid, world.Movable, world.Vec3{})
	idx.Set(uid, world.Vec2{})
	sys.AddEntity(uid, 10, world.Pi, Rate20Hz)

	var calls int
	bus.Register(eventbus.OrderIssued, eventbus.HandlerFunc(func(eventbus.Event) error { calls++; return nil }), eventbus.MaskAll)

	sys.SetDest(uid, world.Vec2{X: 1, Z: 1})
	bus.ServiceQueue()

	if calls != 1 {
		t.Fatalf("expected 1 ORDER_ISSUED, got %d", calls)
	}
}

func TestMovement_RemoveEntityIsIdempotent(t *testing.T) {
	reg, idx, _, sys := newHarness(t)
	uid := reg.NewUID()
	_ = reg.Add(uid, world.Movable, world.Vec3{})
	idx.Set(uid, world.Vec2{})
	sys.AddEntity(uid, 10, world.Pi, Rate20Hz)

	sys.RemoveEntity(uid)
	sys.RemoveEntity(uid)

	if sys.State(uid) != Idle {
		t.Fatal("expected untracked entity to report Idle")
	}
}
