// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"testing"
	"time"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

func step(s *Scheduler, n int, start time.Time) time.Time {
	t := start
	for i := 0; i < n; i++ {
		t = t.Add(world.TickPeriod)
		s.Step(t)
	}
	return t
}

func TestScheduler_UpdateStartPrecedesUpdateEnd(t *testing.T) {
	bus := eventbus.New()
	var order []eventbus.Kind
	bus.Register(eventbus.UpdateStart, eventbus.HandlerFunc(func(ev eventbus.Event) error {
		order = append(order, ev.Kind)
		return nil
	}), eventbus.MaskAll)
	bus.Register(eventbus.UpdateEnd, eventbus.HandlerFunc(func(ev eventbus.Event) error {
		order = append(order, ev.Kind)
		return nil
	}), eventbus.MaskAll)

	s := New(bus)
	s.SetSimState(eventbus.Running)
	step(s, 1, time.Now())

	if len(order) != 2 || order[0] != eventbus.UpdateStart || order[1] != eventbus.UpdateEnd {
		t.Fatalf("expected [UpdateStart UpdateEnd], got %v", order)
	}
}

func TestScheduler_SubRateTicksFireAtExactMultiples(t *testing.T) {
	bus := eventbus.New()
	var hz30, hz1 int
	bus.Register(eventbus.Tick30Hz, eventbus.HandlerFunc(func(eventbus.Event) error { hz30++; return nil }), eventbus.MaskAll)
	bus.Register(eventbus.Tick1Hz, eventbus.HandlerFunc(func(eventbus.Event) error { hz1++; return nil }), eventbus.MaskAll)

	s := New(bus)
	s.SetSimState(eventbus.Running)
	step(s, 120, time.Now())

	if hz30 != 60 {
		t.Fatalf("expected 60Hz/30Hz ratio of 60 fires over 120 ticks, got %d", hz30)
	}
	if hz1 != 2 {
		t.Fatalf("expected 2 fires of the 1Hz tick over 120 ticks, got %d", hz1)
	}
}

func TestScheduler_RequestedSimStateAppliesAtFrameBoundary(t *testing.T) {
	bus := eventbus.New()
	s := New(bus)

	s.SetSimState(eventbus.PausedUIRunning)
	if s.SimState() != eventbus.Running {
		t.Fatalf("simstate must not change before the next frame, got %v", s.SimState())
	}

	start := time.Now()
	step(s, 1, start)
	if s.SimState() != eventbus.PausedUIRunning {
		t.Fatalf("expected PausedUIRunning after one frame, got %v", s.SimState())
	}
}

func TestScheduler_PausedFullHaltsUpdatesAndAccumulatesDelta(t *testing.T) {
	bus := eventbus.New()
	var updates int
	s := New(bus)
	s.AddUpdater(UpdaterFunc(func(time.Duration, world.Ticks) { updates++ }))

	s.SetSimState(eventbus.Running)
	start := time.Now()
	last := step(s, 1, start)
	if updates != 1 {
		t.Fatalf("expected 1 update while running, got %d", updates)
	}

	s.SetSimState(eventbus.PausedFull)
	last = step(s, 1, last) // applies the pause
	last = step(s, 10, last)
	if updates != 1 {
		t.Fatalf("expected updates to halt while PausedFull, got %d", updates)
	}

	var gotDelta time.Duration
	bus.Register(eventbus.GameSimstateChanged, eventbus.HandlerFunc(func(ev eventbus.Event) error {
		if d, ok := ev.Payload.(time.Duration); ok {
			gotDelta = d
		}
		return nil
	}), eventbus.MaskAll)

	s.SetSimState(eventbus.Running)
	step(s, 1, last)

	if updates != 2 {
		t.Fatalf("expected updates to resume after returning to Running, got %d", updates)
	}
	if gotDelta <= 0 {
		t.Fatalf("expected a positive accumulated pause delta communicated on resume, got %v", gotDelta)
	}
}

func TestScheduler_TickCounterMonotonic(t *testing.T) {
	bus := eventbus.New()
	s := New(bus)
	s.SetSimState(eventbus.Running)

	last := step(s, 5, time.Now())
	if s.Tick() != 5 {
		t.Fatalf("expected tick counter 5, got %d", s.Tick())
	}
	step(s, 1, last)
	if s.Tick() != 6 {
		t.Fatalf("expected tick counter 6, got %d", s.Tick())
	}
}
