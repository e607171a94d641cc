// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

// Registry is the Entity Registry (spec §4.A): it assigns UIDs, owns the
// authoritative active-set, and stores the small set of attributes every
// entity has regardless of kind (flags, faction, vision range, selection
// radius, position). It is analogous to the teacher's world.World +
// world.Entity combination, generalized so that component tables live in
// the owning subsystem instead of on one oversized struct.
type Registry struct {
	entities map[UID]*Entity
	order    []UID
	indexOf  map[UID]int
	deferred []UID

	removalHooks []func(uid UID)

	// OnFactionChange fires after a faction write, with the position at
	// the time of the change, so subscribers (fog, combat, storage,
	// building, resource) can remap per-faction state. Per spec §4.A it
	// must behave as if the old faction's vision is removed and the new
	// faction's vision is added at the same position within one call.
	OnFactionChange func(uid UID, old, new FactionID, pos Vec3)

	// OnVisionRangeChange fires after a vision range write so the fog
	// grid can diff its refcount at the entity's current position.
	OnVisionRangeChange func(uid UID, old, new float32, pos Vec3)

	// OnSelectionRadiusChange fires after a selection radius write so
	// movement/resource blocker geometry can be recomputed.
	OnSelectionRadiusChange func(uid UID, old, new float32)
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[UID]*Entity),
		indexOf:  make(map[UID]int),
	}
}

// NewUID allocates a UID not already in the active set.
func (r *Registry) NewUID() UID {
	return AllocateUID(r.Exists)
}

// Add inserts uid into the active set with the given flags and position.
// flags must not set both Movable and Building (spec §3 "Flags").
func (r *Registry) Add(uid UID, flags Flags, pos Vec3) error {
	if uid == NONE {
		panic("cannot add NONE")
	}
	if !flags.valid() {
		panic("MOVABLE and BUILDING are mutually exclusive on creation")
	}
	if r.Exists(uid) {
		return ErrDuplicate
	}
	r.entities[uid] = &Entity{
		UID:     uid,
		Flags:   flags,
		Faction: FactionIDInvalid,
		Position: pos,
	}
	r.indexOf[uid] = len(r.order)
	r.order = append(r.order, uid)
	return nil
}

// Remove immediately drops uid from the active set without running
// removal hooks. Normal teardown goes through DeferRemove + FlushRemoved;
// Remove exists for callers (tests, load-failure rollback) that need to
// undo an Add without a full tick boundary.
func (r *Registry) Remove(uid UID) error {
	if !r.Exists(uid) {
		return ErrAbsent
	}
	r.removeFromOrder(uid)
	delete(r.entities, uid)
	return nil
}

func (r *Registry) removeFromOrder(uid UID) {
	i, ok := r.indexOf[uid]
	if !ok {
		return
	}
	last := len(r.order) - 1
	moved := r.order[last]
	r.order[i] = moved
	r.order = r.order[:last]
	r.indexOf[moved] = i
	delete(r.indexOf, uid)
}

// RegisterRemovalHook adds a callback invoked, in registration order, for
// every entity flushed by FlushRemoved. Subsystems call this once at
// startup to participate in teardown (spec §3 "Destroy").
func (r *Registry) RegisterRemovalHook(hook func(uid UID)) {
	r.removalHooks = append(r.removalHooks, hook)
}

// DeferRemove enqueues uid for removal at the next FlushRemoved call
// (spec §3 "Destroy": "DeferredRemove enqueues; at end of tick
// RemoveEntity calls every subsystem's removal hook").
func (r *Registry) DeferRemove(uid UID) {
	r.deferred = append(r.deferred, uid)
}

// FlushRemoved runs every registered removal hook, in registration order,
// for each deferred UID, then drops it from the active set. Idempotent:
// an already-absent UID is silently skipped.
func (r *Registry) FlushRemoved() {
	pending := r.deferred
	r.deferred = nil
	for _, uid := range pending {
		if !r.Exists(uid) {
			continue
		}
		for _, hook := range r.removalHooks {
			hook(uid)
		}
		r.removeFromOrder(uid)
		delete(r.entities, uid)
	}
}

// Zombify clears an entity's behavior flags, sets Zombie, and runs the
// removal hooks (so behavior subsystems drop their rows) but keeps the
// UID in the active set (spec §3 "Zombify").
func (r *Registry) Zombify(uid UID) {
	e, ok := r.entities[uid]
	if !ok {
		return
	}
	for _, hook := range r.removalHooks {
		hook(uid)
	}
	e.Flags = e.Flags.Zombify()
}

func (r *Registry) Exists(uid UID) bool {
	_, ok := r.entities[uid]
	return ok
}

// IsZombie reports whether uid is active but zombified.
func (r *Registry) IsZombie(uid UID) bool {
	e, ok := r.entities[uid]
	return ok && e.Flags.Has(Zombie)
}

// Alive reports existence and non-zombie-ness together, the standard
// "stale UID" check subsystems use before following a cross-reference
// (spec §9 "Cyclic references").
func (r *Registry) Alive(uid UID) bool {
	e, ok := r.entities[uid]
	return ok && !e.Flags.Has(Zombie)
}

func (r *Registry) mustGet(uid UID) *Entity {
	e, ok := r.entities[uid]
	if !ok {
		panic("absent: " + uid.String())
	}
	return e
}

func (r *Registry) FlagsGet(uid UID) Flags {
	return r.mustGet(uid).Flags
}

func (r *Registry) FlagsSet(uid UID, flags Flags) {
	r.mustGet(uid).Flags = flags
}

func (r *Registry) FactionGet(uid UID) FactionID {
	return r.mustGet(uid).Faction
}

func (r *Registry) FactionSet(uid UID, faction FactionID) {
	e := r.mustGet(uid)
	old := e.Faction
	e.Faction = faction
	if old != faction && r.OnFactionChange != nil {
		r.OnFactionChange(uid, old, faction, e.Position)
	}
}

func (r *Registry) VisionRangeGet(uid UID) float32 {
	return r.mustGet(uid).VisionRange
}

func (r *Registry) VisionRangeSet(uid UID, rng float32) {
	e := r.mustGet(uid)
	old := e.VisionRange
	e.VisionRange = rng
	if old != rng && r.OnVisionRangeChange != nil {
		r.OnVisionRangeChange(uid, old, rng, e.Position)
	}
}

func (r *Registry) SelectionRadiusGet(uid UID) float32 {
	return r.mustGet(uid).SelectionRadius
}

func (r *Registry) SelectionRadiusSet(uid UID, radius float32) {
	e := r.mustGet(uid)
	old := e.SelectionRadius
	e.SelectionRadius = radius
	if old != radius && r.OnSelectionRadiusChange != nil {
		r.OnSelectionRadiusChange(uid, old, radius)
	}
}

// PositionGet returns the attribute-table copy of an entity's position.
// The Position Index (quadtree) is the source of truth for spatial
// queries; this is the source of truth for "what is uid's position"
// between writes. SetPosition (owned by the engine, spec §3 "Mutate")
// keeps both in lock-step.
func (r *Registry) PositionGet(uid UID) Vec3 {
	return r.mustGet(uid).Position
}

// PositionSet updates only the attribute-table copy of an entity's
// position. Exported for the engine's single position setter (spec §3
// "Mutate") to call after it has also updated the quadtree; other callers
// should not use this directly or the two will fall out of sync.
func (r *Registry) PositionSet(uid UID, pos Vec3) {
	r.mustGet(uid).Position = pos
}

// ForEach iterates active entities in insertion order. The callback must
// not add or remove entities.
func (r *Registry) ForEach(fn func(e *Entity)) {
	for _, uid := range r.order {
		fn(r.entities[uid])
	}
}

// Count returns the number of active entities.
func (r *Registry) Count() int {
	return len(r.order)
}
