// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"testing"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

func newHarness(t *testing.T) (*world.Registry, *eventbus.Bus, *System) {
	t.Helper()
	reg := world.NewRegistry()
	bus := eventbus.New()
	sys := New(reg, bus)
	return reg, bus, sys
}

func newSite(t *testing.T, reg *world.Registry, sys *System) world.UID {
	t.Helper()
	uid := reg.NewUID()
	if err := reg.Add(uid, world.StorageSite, world.Vec3{}); err != nil {
		t.Fatal(err)
	}
	sys.AddEntity(uid)
	return uid
}

func TestStorage_SetCurrClampsToActiveCapacity(t *testing.T) {
	reg, _, sys := newHarness(t)
	uid := newSite(t, reg, sys)
	sys.SetCapacity(uid, "wood", 50, false)

	sys.SetCurr(uid, "wood", 1000)
	if got := sys.Current(uid, "wood"); got != 50 {
		t.Fatalf("expected current clamped to capacity 50, got %d", got)
	}

	sys.SetCurr(uid, "wood", -10)
	if got := sys.Current(uid, "wood"); got != 0 {
		t.Fatalf("expected current clamped to 0, got %d", got)
	}
}

func TestStorage_AmountChangedFiresOnlyOnActualChange(t *testing.T) {
	reg, bus, sys := newHarness(t)
	uid := newSite(t, reg, sys)
	sys.SetCapacity(uid, "wood", 100, false)

	var calls int
	bus.Register(eventbus.StorageSiteAmountChanged, eventbus.HandlerFunc(func(eventbus.Event) error {
		calls++
		return nil
	}), eventbus.MaskAll)

	sys.SetCurr(uid, "wood", 10)
	sys.SetCurr(uid, "wood", 10) // no-op, must not re-fire
	sys.SetCurr(uid, "wood", 20)

	if calls != 2 {
		t.Fatalf("expected 2 change events, got %d", calls)
	}
}

func TestStorage_AltOverlaySelectsDifferentCapacity(t *testing.T) {
	reg, _, sys := newHarness(t)
	uid := newSite(t, reg, sys)
	sys.SetCapacity(uid, "stone", 100, false)
	sys.SetCapacity(uid, "stone", 30, true)
	sys.SetCurr(uid, "stone", 80)

	if got := sys.Capacity(uid, "stone"); got != 100 {
		t.Fatalf("expected primary capacity 100, got %d", got)
	}

	sys.SetUseAlt(uid, true)
	if got := sys.Capacity(uid, "stone"); got != 30 {
		t.Fatalf("expected alt capacity 30, got %d", got)
	}
	// Switching overlays must immediately reclamp current to the new
	// active capacity (spec §4.I).
	if got := sys.Current(uid, "stone"); got != 30 {
		t.Fatalf("expected current reclamped to 30 on overlay switch, got %d", got)
	}
}

func TestStorage_SaturationRequiresAllResourcesAtDesired(t *testing.T) {
	reg, _, sys := newHarness(t)
	uid := newSite(t, reg, sys)
	sys.SetCapacity(uid, "wood", 100, false)
	sys.SetDesired(uid, "wood", 50, false)
	sys.SetCapacity(uid, "stone", 100, false)
	sys.SetDesired(uid, "stone", 50, false)

	sys.SetCurr(uid, "wood", 50)
	if sys.Saturated(uid) {
		t.Fatal("expected not saturated until every resource meets desired")
	}

	sys.SetCurr(uid, "stone", 50)
	if !sys.Saturated(uid) {
		t.Fatal("expected saturated once every resource meets desired")
	}
}

func TestStorage_DoNotTakeExcludesSiteAsSource(t *testing.T) {
	reg, _, sys := newHarness(t)
	uid := newSite(t, reg, sys)
	sys.SetSourceEligibility(uid, false, true, false)

	if !sys.EligibleSource(uid, false, true) {
		t.Fatal("expected a water-seeking transport to stay eligible under a land-only restriction")
	}
	if sys.EligibleSource(uid, true, false) {
		t.Fatal("expected do_not_take_land to exclude a land-seeking transport")
	}
}

func TestStorage_TakeAndDepositRespectBounds(t *testing.T) {
	reg, _, sys := newHarness(t)
	uid := newSite(t, reg, sys)
	sys.SetCapacity(uid, "wood", 20, false)
	sys.SetCurr(uid, "wood", 20)

	taken := sys.Take(uid, "wood", 1000)
	if taken != 20 {
		t.Fatalf("expected Take to be clamped to what's present, got %d", taken)
	}
	if sys.Current(uid, "wood") != 0 {
		t.Fatal("expected site emptied after full take")
	}

	accepted := sys.Deposit(uid, "wood", 1000)
	if accepted != 20 {
		t.Fatalf("expected Deposit clamped to capacity, got %d", accepted)
	}
}
