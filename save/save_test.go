// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package save

import (
	"bytes"
	"context"
	"testing"

	"golang.org/x/sync/semaphore"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/systems/combat"
	"github.com/duskward/legion/systems/construction"
	"github.com/duskward/legion/systems/harvest"
	"github.com/duskward/legion/systems/movement"
	"github.com/duskward/legion/systems/resource"
	"github.com/duskward/legion/systems/storage"
	"github.com/duskward/legion/world"
	"github.com/duskward/legion/world/quadtree"
)

func TestSaveRestore_RoundTripsAllComponents(t *testing.T) {
	reg := world.NewRegistry()
	idx := quadtree.New(1000)
	factions := world.NewFactions()
	_ = factions.Add(0, world.Faction{Name: "red"})
	bus := eventbus.New()

	moveSys := movement.New(reg, idx, bus)
	combatSys := combat.New(reg, idx, factions, bus)
	blockers := noopBlockers{}
	spawnCompanion := func(parent world.UID, obb world.OBB, translucent bool) world.UID { return 0 }
	despawn := func(world.UID) {}
	storageSys := storage.New(reg, bus)
	buildSys := construction.New(reg, bus, blockers, storageSys, spawnCompanion, despawn)
	resourceSys := resource.New(reg, bus)
	harvestSys := harvest.New(reg, resourceSys, bus, idx)

	moveUID := reg.NewUID()
	_ = reg.Add(moveUID, world.Movable, world.Vec3{})
	idx.Set(moveUID, world.Vec2{})
	moveSys.AddEntity(moveUID, 10, world.Pi, movement.Rate20Hz)
	moveSys.SetDest(moveUID, world.Vec2{X: 5, Z: 5})

	combatUID := reg.NewUID()
	_ = reg.Add(combatUID, world.Combatable, world.Vec3{})
	reg.FactionSet(combatUID, 0)
	idx.Set(combatUID, world.Vec2{})
	combatSys.AddEntity(combatUID, 100, 5, 25, 1, false)

	buildUID := reg.NewUID()
	obb := world.OBB{Center: world.Vec2{X: 1, Z: 1}, HalfExtents: world.Vec2{X: 2, Z: 2}}
	_ = reg.Add(buildUID, world.Building, world.Vec3{})
	buildSys.AddEntity(buildUID, obb, 200, 10)

	siteUID := reg.NewUID()
	_ = reg.Add(siteUID, world.StorageSite, world.Vec3{})
	storageSys.AddEntity(siteUID)
	storageSys.SetCapacity(siteUID, "wood", 100, false)
	storageSys.SetCurr(siteUID, "wood", 40)

	resUID := reg.NewUID()
	_ = reg.Add(resUID, world.Resource, world.Vec3{})
	resourceSys.AddEntity(resUID, "wood", 75)

	harvestUID := reg.NewUID()
	_ = reg.Add(harvestUID, world.Harvester, world.Vec3{})
	harvestSys.AddEntity(harvestUID, 3, 20, 15)

	sys := Systems{
		Movement:  moveSys,
		Combat:    combatSys,
		Building:  buildSys,
		Storage:   storageSys,
		Resource:  resourceSys,
		Harvester: harvestSys,
	}

	h := Header{Tick: 99, SimState: eventbus.SimState(0)}
	fr, dr := FactionsToHeader(factions)
	h.Factions = fr
	h.Diplomacy = dr

	sem := semaphore.NewWeighted(1)
	if !sem.TryAcquire(1) {
		t.Fatal("failed to acquire initial semaphore weight")
	}

	var buf bytes.Buffer
	if err := Save(context.Background(), &buf, h, sys, sem); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reg2 := world.NewRegistry()
	idx2 := quadtree.New(1000)
	factions2 := world.NewFactions()
	bus2 := eventbus.New()
	moveSys2 := movement.New(reg2, idx2, bus2)
	combatSys2 := combat.New(reg2, idx2, factions2, bus2)
	storageSys2 := storage.New(reg2, bus2)
	buildSys2 := construction.New(reg2, bus2, blockers, storageSys2, spawnCompanion, despawn)
	resourceSys2 := resource.New(reg2, bus2)
	harvestSys2 := harvest.New(reg2, resourceSys2, bus2, idx2)

	sys2 := Systems{
		Movement:  moveSys2,
		Combat:    combatSys2,
		Building:  buildSys2,
		Storage:   storageSys2,
		Resource:  resourceSys2,
		Harvester: harvestSys2,
	}

	gotH, err := Restore(context.Background(), &buf, sys2, sem)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if gotH.Tick != h.Tick {
		t.Fatalf("expected tick %d, got %d", h.Tick, gotH.Tick)
	}

	moveRec := moveSys2.Export(moveUID)
	if moveRec.Dest.X != 5 || moveRec.Dest.Z != 5 {
		t.Fatalf("expected restored dest {5,5}, got %+v", moveRec.Dest)
	}

	combatRec := combatSys2.Export(combatUID)
	if combatRec.HP != 100 || combatRec.MaxHP != 100 {
		t.Fatalf("expected restored hp 100, got %+v", combatRec)
	}

	buildRec := buildSys2.Export(buildUID)
	if buildRec.OBB.Center.X != 1 || buildRec.OBB.HalfExtents.X != 2 {
		t.Fatalf("expected restored obb, got %+v", buildRec.OBB)
	}

	if got := storageSys2.Current(siteUID, "wood"); got != 40 {
		t.Fatalf("expected restored storage current 40, got %d", got)
	}

	if got := resourceSys2.Amount(resUID, "wood"); got != 75 {
		t.Fatalf("expected restored resource amount 75, got %d", got)
	}

	harvestRec := harvestSys2.Export(harvestUID)
	if harvestRec.MaxCarry != 20 {
		t.Fatalf("expected restored max carry 20, got %d", harvestRec.MaxCarry)
	}
}

type noopBlockers struct{}

func (noopBlockers) Increment(world.OBB) {}
func (noopBlockers) Decrement(world.OBB) {}

func TestSaveRestore_ToleratesNilCollaborators(t *testing.T) {
	h := Header{Tick: 1}
	sem := semaphore.NewWeighted(1)
	if !sem.TryAcquire(1) {
		t.Fatal("failed to acquire initial semaphore weight")
	}

	var buf bytes.Buffer
	if err := Save(context.Background(), &buf, h, Systems{}, sem); err != nil {
		t.Fatalf("Save with empty Systems failed: %v", err)
	}

	gotH, err := Restore(context.Background(), &buf, Systems{}, sem)
	if err != nil {
		t.Fatalf("Restore with empty Systems failed: %v", err)
	}
	if gotH.Tick != 1 {
		t.Fatalf("expected tick 1, got %d", gotH.Tick)
	}
}
