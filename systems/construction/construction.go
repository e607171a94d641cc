// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package construction implements the Construction subsystem (spec §4.G):
// a monotonic building lifecycle (PLACEMENT → MARKED → FOUNDED → SUPPLIED
// → COMPLETED), progress-model companion entities, border markers, and
// navgrid blocker refcounting. Grounded on the teacher's spawnEntity/
// despawn.go lifecycle (an entity gains a companion/marker set of
// sub-entities that must be torn down together) generalized from
// spawn-then-despawn into a staged, irreversible state machine.
package construction

import (
	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// Stage is a building's lifecycle stage. Stages only ever advance forward.
type Stage uint8

const (
	Placement Stage = iota
	Marked
	Founded
	Supplied
	Completed
)

// NavBlockers is the collaborator that tracks navgrid blocker refcounts for
// building footprints; owned by whatever pathing layer exists outside this
// core (spec names navgrid blocking but does not define its own module for
// it).
type NavBlockers interface {
	Increment(obb world.OBB)
	Decrement(obb world.OBB)
}

// StorageSaturation is the collaborator Construction consults to detect a
// founded building's required-materials storage filling up (spec §9 Open
// Question: "supply may be called implicitly when storage saturates").
// storage.System satisfies this directly.
type StorageSaturation interface {
	Saturated(uid world.UID) bool
}

type building struct {
	stage   Stage
	obb     world.OBB
	blocked bool

	progressModel world.UID // translucent copy shown while FOUNDED..SUPPLIED
	markers       []world.UID

	hp, maxHP  float32
	buildSpeed float32

	saturationSub      eventbus.SubscriptionID
	watchingSaturation bool
}

// System is the Construction subsystem.
type System struct {
	registry *world.Registry
	bus      *eventbus.Bus
	blockers NavBlockers
	storage  StorageSaturation

	spawnCompanion func(parent world.UID, obb world.OBB, translucent bool) world.UID
	despawn        func(uid world.UID)

	buildings map[world.UID]*building
	order     []world.UID
}

// New creates a Construction system. spawnCompanion/despawn are injected
// rather than imported directly so this package stays independent of the
// Entity Registry's specific creation API shape (the engine wires the real
// AddEntity/DeferRemove calls through these hooks). storage may be nil, in
// which case Supply is never called implicitly and must be driven by the
// caller.
func New(registry *world.Registry, bus *eventbus.Bus, blockers NavBlockers, storage StorageSaturation,
	spawnCompanion func(parent world.UID, obb world.OBB, translucent bool) world.UID,
	despawn func(uid world.UID)) *System {
	s := &System{
		registry:       registry,
		bus:            bus,
		blockers:       blockers,
		storage:        storage,
		spawnCompanion: spawnCompanion,
		despawn:        despawn,
		buildings:      make(map[world.UID]*building),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	return s
}

// AddEntity begins tracking uid at PLACEMENT. Requires the BUILDING flag.
func (s *System) AddEntity(uid world.UID, obb world.OBB, maxHP, buildSpeed float32) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Building) {
		return
	}
	s.buildings[uid] = &building{obb: obb, maxHP: maxHP, buildSpeed: buildSpeed}
	s.order = append(s.order, uid)
}

// RemoveEntity tears down any companion entities still standing and drops
// uid's row, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	b, ok := s.buildings[uid]
	if !ok {
		return
	}
	s.teardownCompanions(b)
	if b.blocked {
		s.blockers.Decrement(b.obb)
	}
	s.unwatchSaturation(b)
	delete(s.buildings, uid)
}

func (s *System) teardownCompanions(b *building) {
	if b.progressModel != world.NONE {
		s.despawn(b.progressModel)
		b.progressModel = world.NONE
	}
	for _, m := range b.markers {
		s.despawn(m)
	}
	b.markers = nil
}

// Stage reports uid's current stage, or Placement if untracked.
func (s *System) Stage(uid world.UID) Stage {
	if b, ok := s.buildings[uid]; ok {
		return b.stage
	}
	return Placement
}

// Mark advances PLACEMENT → MARKED: the building's position is committed
// (spec §4.G).
func (s *System) Mark(uid world.UID) {
	b, ok := s.buildings[uid]
	if !ok || b.stage != Placement {
		return
	}
	b.stage = Marked
}

// Found advances MARKED → FOUNDED: spawns the progress-model companion,
// installs border markers, and (if blocking) increments navgrid blockers
// (spec §4.G).
func (s *System) Found(uid world.UID, blocking bool) {
	b, ok := s.buildings[uid]
	if !ok || b.stage != Marked {
		return
	}
	b.stage = Founded
	b.progressModel = s.spawnCompanion(uid, b.obb, true)
	for _, corner := range b.obb.Corners() {
		marker := s.spawnCompanion(uid, world.OBB{Center: corner}, false)
		b.markers = append(b.markers, marker)
	}
	if blocking {
		s.blockers.Increment(b.obb)
		b.blocked = true
	}
	if s.storage != nil {
		b.saturationSub = s.bus.RegisterEntity(eventbus.StorageSiteAmountChanged, uid,
			eventbus.HandlerFunc(func(eventbus.Event) error {
				s.onStorageAmountChanged(uid)
				return nil
			}), eventbus.MaskRunning)
		b.watchingSaturation = true
	}
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.BuildingFounded, Entity: uid})
}

// onStorageAmountChanged implicitly advances uid FOUNDED → SUPPLIED once its
// Storage Sites row reports every tracked resource has reached its active
// desired amount (Saturated: current >= desired), mirroring the original's on_amount_changed → G_Building_Supply
// predicate (storage saturated ⇒ supply).
func (s *System) onStorageAmountChanged(uid world.UID) {
	b, ok := s.buildings[uid]
	if !ok || b.stage != Founded {
		return
	}
	if !s.storage.Saturated(uid) {
		return
	}
	s.Supply(uid)
}

// Supply advances FOUNDED → SUPPLIED: the caller (Storage Sites) is
// expected to have already cleared the alt-storage overlay that recorded
// required materials (spec §4.G); this call only records the transition. It
// may also fire implicitly from onStorageAmountChanged once storage
// saturates, so callers may invoke it redundantly once that happens; the
// stage guard makes a second call a no-op.
func (s *System) Supply(uid world.UID) {
	b, ok := s.buildings[uid]
	if !ok || b.stage != Founded {
		return
	}
	b.stage = Supplied
	s.unwatchSaturation(b)
}

func (s *System) unwatchSaturation(b *building) {
	if !b.watchingSaturation {
		return
	}
	s.bus.Unregister(b.saturationSub)
	b.watchingSaturation = false
}

// Complete advances SUPPLIED → COMPLETED: removes the progress model and
// markers and clears navgrid blockers if the building is pathable (spec
// §4.G). It does not change the entity's vision range.
func (s *System) Complete(uid world.UID, pathable bool) {
	b, ok := s.buildings[uid]
	if !ok || b.stage != Supplied {
		return
	}
	b.stage = Completed
	s.teardownCompanions(b)
	if pathable && b.blocked {
		s.blockers.Decrement(b.obb)
		b.blocked = false
	}
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.BuildingCompleted, Entity: uid})
}

// Build raises hp by one build-animation cycle's worth of progress at the
// building's build_speed, called by a builder's completed cycle (spec
// §4.G). Progress is the fraction hp/max_hp; it is the caller's
// responsibility to read Progress and drive the progress-model's vertical
// position.
func (s *System) Build(uid world.UID, builderSpeed float32) {
	b, ok := s.buildings[uid]
	if !ok || b.stage == Completed {
		return
	}
	b.hp += builderSpeed * b.buildSpeed
	if b.hp > b.maxHP {
		b.hp = b.maxHP
	}
}

// Progress returns hp/max_hp in [0, 1].
func (s *System) Progress(uid world.UID) float32 {
	b, ok := s.buildings[uid]
	if !ok || b.maxHP == 0 {
		return 0
	}
	return b.hp / b.maxHP
}

// Record is a building's persisted state for the Building save/restore
// component (spec §4.O). ProgressModel/Markers reference companion UIDs
// that an external loader is responsible for having already restored into
// the active set.
type Record struct {
	Stage         Stage
	OBB           world.OBB
	Blocked       bool
	ProgressModel world.UID
	Markers       []world.UID
	HP, MaxHP     float32
	BuildSpeed    float32
}

// Entities returns every tracked UID in insertion order, skipping any that
// have since been removed.
func (s *System) Entities() []world.UID {
	out := make([]world.UID, 0, len(s.buildings))
	for _, uid := range s.order {
		if _, ok := s.buildings[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Export snapshots uid's building row, or the zero Record if untracked.
func (s *System) Export(uid world.UID) Record {
	b, ok := s.buildings[uid]
	if !ok {
		return Record{}
	}
	return Record{
		Stage: b.stage, OBB: b.obb, Blocked: b.blocked,
		ProgressModel: b.progressModel, Markers: append([]world.UID(nil), b.markers...),
		HP: b.hp, MaxHP: b.maxHP, BuildSpeed: b.buildSpeed,
	}
}

// Import restores uid's building row from r, creating the row if AddEntity
// has not already run against a pre-populated active set.
func (s *System) Import(uid world.UID, r Record) {
	b, ok := s.buildings[uid]
	if !ok {
		b = &building{}
		s.buildings[uid] = b
		s.order = append(s.order, uid)
	}
	b.stage = r.Stage
	b.obb = r.OBB
	b.blocked = r.Blocked
	b.progressModel = r.ProgressModel
	b.markers = append([]world.UID(nil), r.Markers...)
	b.hp = r.HP
	b.maxHP = r.MaxHP
	b.buildSpeed = r.BuildSpeed
}
