// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine wires the Entity Registry, spatial quadtree, event bus,
// tick scheduler, and every lettered subsystem into one running World
// (spec §4, "Scope"). Grounded on the teacher's hub.go newHub/run, which
// constructs every subsystem once at startup and drives them from a
// single select loop; generalized here from "one world + one set of
// client-facing systems" into "one Registry + N decoupled subsystems",
// each wired through the Registry's RegisterRemovalHook/collaborator-
// interface boundaries the subsystem packages already define.
package engine

import (
	"context"
	"time"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/render"
	"github.com/duskward/legion/scheduler"
	"github.com/duskward/legion/systems/automation"
	"github.com/duskward/legion/systems/combat"
	"github.com/duskward/legion/systems/construction"
	"github.com/duskward/legion/systems/fog"
	"github.com/duskward/legion/systems/garrison"
	"github.com/duskward/legion/systems/harvest"
	"github.com/duskward/legion/systems/movement"
	"github.com/duskward/legion/systems/region"
	"github.com/duskward/legion/systems/resource"
	"github.com/duskward/legion/systems/storage"
	"github.com/duskward/legion/terrain"
	"github.com/duskward/legion/world"
	"github.com/duskward/legion/world/quadtree"
)

// Config bounds a World's construction-time parameters (spec §3 sizing,
// §4.K/§4.L tile/chunk sizing), analogous to the teacher's newHub taking
// minPlayers/auth rather than hard-coding them.
type Config struct {
	QuadtreeHalfWidth float32
	FogWidth, FogHeight int
	FogTileSize       float32
	FogOrigin         world.Vec2
	RegionChunkSize   float32
	GarrisonEvictDelay world.Ticks
	AutomationUnit    float32
	TerrainSeed       int64
}

// DefaultConfig returns reasonable construction-time parameters for a
// small/medium scenario.
func DefaultConfig() Config {
	return Config{
		QuadtreeHalfWidth:  2000,
		FogWidth:           256,
		FogHeight:          256,
		FogTileSize:        10,
		RegionChunkSize:    64,
		GarrisonEvictDelay: world.Ticks(15), // quarter second at 60Hz
		AutomationUnit:     1,
		TerrainSeed:        1,
	}
}

// World bundles the Entity Registry and every subsystem that cooperates
// over it, plus the Scheduler that drives their per-frame Update calls.
// The zero value is not usable; use New.
type World struct {
	Registry *world.Registry
	Index    *quadtree.Index
	Bus      *eventbus.Bus
	Factions *world.Factions
	Terrain  *terrain.Generator

	Scheduler *scheduler.Scheduler

	Movement    *movement.System
	Combat      *combat.System
	Construction *construction.System
	Storage     *storage.System
	Resource    *resource.System
	Harvest     *harvest.System
	Garrison    *garrison.System
	Fog         *fog.System
	Region      *region.System
	Automation  *automation.System
	Render      *render.Workspace

	nav               navAndBlockers
	quadtreeHalfWidth float32
}

// New constructs a fully wired World. Every subsystem shares the same
// Registry, Bus, and (where relevant) quadtree.Index, matching the
// teacher's single-Hub-owns-everything topology rather than each
// subsystem keeping its own private copy of shared state.
func New(cfg Config) *World {
	reg := world.NewRegistry()
	idx := quadtree.New(cfg.QuadtreeHalfWidth)
	bus := eventbus.New()
	factions := world.NewFactions()
	gen := terrain.New(cfg.TerrainSeed)

	w := &World{
		Registry:          reg,
		Index:             idx,
		Bus:               bus,
		Factions:          factions,
		Terrain:           gen,
		Scheduler:         scheduler.New(bus),
		Render:            render.New(),
		quadtreeHalfWidth: cfg.QuadtreeHalfWidth,
	}

	w.Movement = movement.New(reg, idx, bus)
	w.Combat = combat.New(reg, idx, factions, bus)
	w.Resource = resource.New(reg, bus)
	w.Harvest = harvest.New(reg, w.Resource, bus, idx)
	w.Storage = storage.New(reg, bus)
	w.Garrison = garrison.New(reg, bus, w.nav, cfg.GarrisonEvictDelay)
	w.Construction = construction.New(reg, bus, w.nav, w.Storage, w.spawnCompanion, w.despawnCompanion)
	w.Fog = fog.New(cfg.FogWidth, cfg.FogHeight, cfg.FogTileSize, cfg.FogOrigin, gen)
	w.Region = region.New(bus, cfg.RegionChunkSize)
	w.Automation = automation.New(reg, w.Movement, w.Harvest, w.Combat, w.Garrison, cfg.AutomationUnit)

	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.Movement.Update(dt, tick)
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.Combat.Update(dt, tick)
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.Harvest.Update()
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.Garrison.Update(1)
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.Region.Update()
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.Automation.Update()
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		reg.FlushRemoved()
	}))
	w.Scheduler.AddUpdater(scheduler.UpdaterFunc(func(dt time.Duration, tick world.Ticks) {
		w.pushRenderCommand(tick)
	}))

	bus.Register(eventbus.UpdateEnd, eventbus.HandlerFunc(func(eventbus.Event) error {
		return w.Render.Swap()
	}), eventbus.MaskAll)

	return w
}

// Run blocks, driving the Scheduler until ctx is canceled (spec §4.D).
func (w *World) Run(ctx context.Context) {
	w.Scheduler.Run(ctx)
}

// spawnCompanion creates a companion entity for a building under
// construction (its progress model or a border marker), matching
// Construction's injected collaborator shape (spec §4.G). translucent is
// unused by the Registry today; the parameter is kept so a render-facing
// caller can later distinguish a progress-model ghost from a marker.
func (w *World) spawnCompanion(parent world.UID, obb world.OBB, translucent bool) world.UID {
	uid := w.Registry.NewUID()
	pos := world.Vec3{X: obb.Center.X, Z: obb.Center.Z}
	_ = w.Registry.Add(uid, 0, pos)
	return uid
}

// despawnCompanion removes a companion entity previously created by
// spawnCompanion. Deferred rather than immediate, matching every other
// subsystem's teardown path (Registry.DeferRemove), so removal happens at
// a safe point in the frame rather than mid-update.
func (w *World) despawnCompanion(uid world.UID) {
	w.Registry.DeferRemove(uid)
}

// pushRenderCommand builds one render.Command from the live active set and
// pushes it onto the Render Workspace's producer buffer for this tick (spec
// §4.N). No client connects directly to a World, so there is no per-player
// camera/fog-faction list here; the whole active set is culled against a
// world-covering Frustum with no fog filter, matching a spectator/debug feed
// that is meant to see everything observer.Hub can reach.
func (w *World) pushRenderCommand(tick world.Ticks) {
	var entities []render.Entity
	w.Registry.ForEach(func(e *world.Entity) {
		obb := world.OBB{Center: e.Position.XZ(), HalfExtents: world.Vec2{X: e.SelectionRadius, Z: e.SelectionRadius}}
		if e.Flags.Has(world.Building) {
			obb = w.Construction.Export(e.UID).OBB
		}
		entities = append(entities, render.Entity{
			UID:      e.UID,
			Position: e.Position,
			Bounds:   obb,
			Animated: e.Flags.Has(world.Animated),
		})
	})

	frustum := render.Frustum{Bounds: world.RadiusAABB(world.Vec2{}, w.quadtreeHalfWidth)}
	w.Render.Push(render.Command{
		Tick:       tick,
		CamVisible: render.BuildSnapshot(entities, frustum, nil, nil),
	})
}
