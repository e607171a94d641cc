// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package combat implements the Combat subsystem (spec §4.F): stance-based
// target acquisition, attack cadence, hit-point tracking, and death
// handling. Grounded on the teacher's physics.go boat-vs-boat collision
// damage resolution (Damage/HealthPercent/removeEntity-then-boatDied) and
// world/entity_data.go's AntiAircraft/Damage fields, generalized from
// "damage happens on contact" into an explicit tick-driven acquire/approach/
// attack loop appropriate for ranged and melee RTS units alike.
package combat

import (
	"time"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
	"github.com/duskward/legion/world/quadtree"
)

// Stance controls how aggressively a combatant seeks targets.
type Stance uint8

const (
	Aggressive Stance = iota // acquire enemies within vision
	Defensive                // counter-attack only
	Hold                     // no acquisition
)

// State is the combatant's current behavior.
type State uint8

const (
	Idle State = iota
	MovingToTarget
	Attacking
	Dead
)

// hysteresisBias discounts the distance to the currently held target so a
// marginally closer enemy doesn't cause target-flicker every tick.
const hysteresisBias = 0.85

type combatant struct {
	state  State
	stance Stance
	target world.UID

	hp, maxHP   float32
	attackRange float32
	reload      world.Ticks // ticks remaining before next attack
	reloadTime  world.Ticks
	damage      float32
	ranged      bool
}

// System is the Combat subsystem.
type System struct {
	registry *world.Registry
	index    *quadtree.Index
	factions *world.Factions
	bus      *eventbus.Bus

	combatants map[world.UID]*combatant
	order      []world.UID

	paused bool
}

// New creates a Combat system.
func New(registry *world.Registry, index *quadtree.Index, factions *world.Factions, bus *eventbus.Bus) *System {
	s := &System{
		registry:   registry,
		index:      index,
		factions:   factions,
		bus:        bus,
		combatants: make(map[world.UID]*combatant),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	bus.Register(eventbus.GameSimstateChanged, eventbus.HandlerFunc(s.onSimStateChanged), eventbus.MaskAll)
	return s
}

func (s *System) onSimStateChanged(eventbus.Event) error {
	// Combat's reload clocks are measured in Ticks, which already freeze
	// while the scheduler withholds UPDATE_START/UPDATE_END during a pause
	// (spec §4.D); nothing to rewind here, but the hook point exists so a
	// future continuous-time attack-cadence model has somewhere to absorb
	// the pause delta the way spec §4.F requires.
	return nil
}

// AddEntity begins tracking uid. Requires the COMBATABLE flag per spec §3.
func (s *System) AddEntity(uid world.UID, maxHP, attackRange, damage float32, reloadTime world.Ticks, ranged bool) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Combatable) {
		return
	}
	s.combatants[uid] = &combatant{
		hp: maxHP, maxHP: maxHP,
		attackRange: attackRange,
		damage:      damage,
		reloadTime:  reloadTime,
		ranged:      ranged,
		stance:      Aggressive,
	}
	s.order = append(s.order, uid)
}

// RemoveEntity drops uid's row, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	delete(s.combatants, uid)
}

// SetStance changes a combatant's aggression stance.
func (s *System) SetStance(uid world.UID, stance Stance) {
	if c, ok := s.combatants[uid]; ok {
		c.stance = stance
	}
}

// State reports uid's current state, or Idle if untracked.
func (s *System) State(uid world.UID) State {
	if c, ok := s.combatants[uid]; ok {
		return c.state
	}
	return Idle
}

// HP reports uid's current hit points.
func (s *System) HP(uid world.UID) float32 {
	if c, ok := s.combatants[uid]; ok {
		return c.hp
	}
	return 0
}

// Target reports uid's currently held target, or world.NONE.
func (s *System) Target(uid world.UID) world.UID {
	if c, ok := s.combatants[uid]; ok {
		return c.target
	}
	return world.NONE
}

// Update advances reload timers, re-runs target acquisition every tick for
// AGGRESSIVE combatants (the hysteresis bias keeps a held target unless
// another enemy is clearly closer), and runs approach and attack for every
// combatant not on HOLD stance that holds a target (spec §4.F).
func (s *System) Update(dt time.Duration, tick world.Ticks) {
	visionBuf := make([]world.UID, 0, 32)
	for uid, c := range s.combatants {
		if c.state == Dead {
			continue
		}

		if c.reload > 0 {
			c.reload = c.reload.SubClamped(1)
		}

		if c.stance == Hold {
			continue
		}

		if !s.registry.Alive(c.target) {
			c.target = world.NONE
			if c.state != Idle {
				c.state = Idle
			}
		}

		if c.stance == Aggressive {
			if t := s.acquireTarget(uid, c, visionBuf); t != world.NONE {
				c.target = t
			}
		}
		if c.target == world.NONE {
			continue
		}

		s.pursueAndAttack(uid, c)
	}
}

// acquireTarget scans the position index within vision range for the
// lowest-cost enemy, biasing toward the currently held target by
// hysteresisBias so a marginally closer enemy does not cause flicker
// (spec §4.F).
func (s *System) acquireTarget(uid world.UID, c *combatant, buf []world.UID) world.UID {
	pos := s.registry.PositionGet(uid).XZ()
	vision := s.registry.VisionRangeGet(uid)
	faction := s.registry.FactionGet(uid)

	candidates := s.index.InCircle(pos, vision, buf[:0])

	best := world.NONE
	bestCost := float32(-1)
	for _, other := range candidates {
		if other == uid || !s.registry.Alive(other) {
			continue
		}
		otherFaction := s.registry.FactionGet(other)
		if !s.factions.AtWar(faction, otherFaction) {
			continue
		}
		if _, ok := s.combatants[other]; !ok {
			continue
		}
		d := pos.Distance(s.registry.PositionGet(other).XZ())
		cost := d
		if other == c.target {
			cost *= hysteresisBias
		}
		if best == world.NONE || cost < bestCost {
			best = other
			bestCost = cost
		}
	}
	return best
}

func (s *System) pursueAndAttack(uid world.UID, c *combatant) {
	target, ok := s.combatants[c.target]
	if !ok {
		c.target = world.NONE
		c.state = Idle
		return
	}

	pos := s.registry.PositionGet(uid).XZ()
	targetPos := s.registry.PositionGet(c.target).XZ()
	dist := pos.Distance(targetPos)

	if dist > c.attackRange {
		c.state = MovingToTarget
		return
	}

	c.state = Attacking
	if c.reload > 0 {
		return
	}
	c.reload = c.reloadTime

	target.hp -= c.damage
	if target.hp <= 0 {
		target.hp = 0
		target.state = Dead
		s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.EntityDeath, Entity: c.target})
		s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.EntityDied, Entity: c.target})
		s.registry.Zombify(c.target)
		c.target = world.NONE
		c.state = Idle
	}
}

// Record is a combatant's persisted state for the Combat save/restore
// component (spec §4.O).
type Record struct {
	State       State
	Stance      Stance
	Target      world.UID
	HP, MaxHP   float32
	AttackRange float32
	Reload      world.Ticks
	ReloadTime  world.Ticks
	Damage      float32
	Ranged      bool
}

// Entities returns every tracked UID in insertion order, skipping any that
// have since been removed.
func (s *System) Entities() []world.UID {
	out := make([]world.UID, 0, len(s.combatants))
	for _, uid := range s.order {
		if _, ok := s.combatants[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Export snapshots uid's combatant row, or the zero Record if untracked.
func (s *System) Export(uid world.UID) Record {
	c, ok := s.combatants[uid]
	if !ok {
		return Record{}
	}
	return Record{
		State: c.state, Stance: c.stance, Target: c.target,
		HP: c.hp, MaxHP: c.maxHP, AttackRange: c.attackRange,
		Reload: c.reload, ReloadTime: c.reloadTime, Damage: c.damage, Ranged: c.ranged,
	}
}

// Import restores uid's combatant row from r, creating the row if AddEntity
// has not already run against a pre-populated active set.
func (s *System) Import(uid world.UID, r Record) {
	c, ok := s.combatants[uid]
	if !ok {
		c = &combatant{}
		s.combatants[uid] = c
		s.order = append(s.order, uid)
	}
	c.state = r.State
	c.stance = r.Stance
	c.target = r.Target
	c.hp = r.HP
	c.maxHP = r.MaxHP
	c.attackRange = r.AttackRange
	c.reload = r.Reload
	c.reloadTime = r.ReloadTime
	c.damage = r.Damage
	c.ranged = r.Ranged
}
