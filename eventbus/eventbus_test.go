// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventbus

import (
	"errors"
	"testing"

	"github.com/duskward/legion/world"
)

func TestBus_RegistrationOrderWithinKind(t *testing.T) {
	b := New()
	var order []int

	b.Register(UnitBecameIdle, HandlerFunc(func(Event) error { order = append(order, 1); return nil }), MaskAll)
	b.Register(UnitBecameIdle, HandlerFunc(func(Event) error { order = append(order, 2); return nil }), MaskAll)
	b.Register(UnitBecameIdle, HandlerFunc(func(Event) error { order = append(order, 3); return nil }), MaskAll)

	b.NotifyImmediate(Event{Kind: UnitBecameIdle})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("handlers did not fire in registration order: %v", order)
	}
}

func TestBus_EntityFilteredSubscription(t *testing.T) {
	b := New()
	var gotA, gotB int

	uidA := world.UID(1)
	uidB := world.UID(2)

	b.RegisterEntity(EntityDied, uidA, HandlerFunc(func(Event) error { gotA++; return nil }), MaskAll)
	b.RegisterEntity(EntityDied, uidB, HandlerFunc(func(Event) error { gotB++; return nil }), MaskAll)

	b.NotifyImmediate(Event{Kind: EntityDied, Entity: uidA})

	if gotA != 1 || gotB != 0 {
		t.Fatalf("expected only uidA's handler to fire, got gotA=%d gotB=%d", gotA, gotB)
	}
}

func TestBus_ServiceQueueFIFOAcrossKinds(t *testing.T) {
	b := New()
	var order []Kind

	record := HandlerFunc(func(ev Event) error { order = append(order, ev.Kind); return nil })
	b.Register(MotionStart, record, MaskAll)
	b.Register(AttackStart, record, MaskAll)
	b.Register(BuildBegin, record, MaskAll)

	b.NotifyDeferred(Event{Kind: AttackStart})
	b.NotifyDeferred(Event{Kind: MotionStart})
	b.NotifyDeferred(Event{Kind: BuildBegin})

	b.ServiceQueue()

	want := []Kind{AttackStart, MotionStart, BuildBegin}
	if len(order) != len(want) {
		t.Fatalf("expected %d dispatches, got %d: %v", len(want), len(order), order)
	}
	for i, k := range want {
		if order[i] != k {
			t.Fatalf("dispatch %d: expected kind %v, got %v", i, k, order[i])
		}
	}
}

func TestBus_EventsEnqueuedDuringServiceDeferToNextDrain(t *testing.T) {
	b := New()
	var fired int

	b.Register(Tick1Hz, HandlerFunc(func(ev Event) error {
		fired++
		if fired == 1 {
			b.NotifyDeferred(Event{Kind: Tick1Hz})
		}
		return nil
	}), MaskAll)

	b.NotifyDeferred(Event{Kind: Tick1Hz})
	b.ServiceQueue()
	if fired != 1 {
		t.Fatalf("expected 1 dispatch in first drain, got %d", fired)
	}
	if b.Pending() != 1 {
		t.Fatalf("expected the handler's re-enqueue to be pending, got %d", b.Pending())
	}

	b.ServiceQueue()
	if fired != 2 {
		t.Fatalf("expected 2 dispatches after second drain, got %d", fired)
	}
}

func TestBus_HandlerMutationDuringDispatchTakesEffectNextDispatch(t *testing.T) {
	b := New()
	var secondCalls int

	b.Register(OrderIssued, HandlerFunc(func(Event) error {
		b.Register(OrderIssued, HandlerFunc(func(Event) error { secondCalls++; return nil }), MaskAll)
		return nil
	}), MaskAll)

	b.NotifyImmediate(Event{Kind: OrderIssued})
	if secondCalls != 0 {
		t.Fatalf("handler registered mid-dispatch must not fire in the same dispatch, got %d calls", secondCalls)
	}

	b.NotifyImmediate(Event{Kind: OrderIssued})
	if secondCalls != 1 {
		t.Fatalf("expected the newly registered handler to fire on the next dispatch, got %d", secondCalls)
	}
}

func TestBus_ScriptedHandlerErrorIsSwallowed(t *testing.T) {
	b := New()
	var calledAfter bool

	b.Register(ResourceExhausted, HandlerFunc(func(Event) error { return errors.New("boom") }), MaskAll)
	b.Register(ResourceExhausted, HandlerFunc(func(Event) error { calledAfter = true; return nil }), MaskAll)

	b.NotifyImmediate(Event{Kind: ResourceExhausted})

	if !calledAfter {
		t.Fatal("an erroring handler must not abort dispatch to later handlers")
	}
}

func TestBus_SimStateMaskGating(t *testing.T) {
	b := New()
	var calls int

	b.Register(Tick60Hz, HandlerFunc(func(Event) error { calls++; return nil }), MaskRunning)

	b.SetSimState(PausedFull)
	b.NotifyImmediate(Event{Kind: Tick60Hz})
	if calls != 0 {
		t.Fatalf("handler masked to MaskRunning must not fire while paused, got %d calls", calls)
	}

	b.SetSimState(Running)
	b.NotifyImmediate(Event{Kind: Tick60Hz})
	if calls != 1 {
		t.Fatalf("expected handler to fire once simstate returns to Running, got %d", calls)
	}
}

func TestBus_Unregister(t *testing.T) {
	b := New()
	var calls int
	id := b.Register(HarvestBegin, HandlerFunc(func(Event) error { calls++; return nil }), MaskAll)

	b.Unregister(id)
	b.NotifyImmediate(Event{Kind: HarvestBegin})

	if calls != 0 {
		t.Fatalf("expected unregistered handler to not fire, got %d calls", calls)
	}
}
