// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package garrison implements the Garrison subsystem (spec §4.J): unit↔
// carrier bindings, land-into-water pickup rendezvous, and staggered
// cooperative eviction. Grounded on the movement package's order/episode
// state machine shape (begin an order, wait for an external arrival signal,
// finish the episode) generalized to a two-sided rendezvous between a unit
// and its carrier instead of a single mover converging on a point.
package garrison

import (
	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// UnitState is a garrisonable unit's boarding state.
type UnitState uint8

const (
	NotGarrisoned UnitState = iota
	MovingToGarrisonable
	AwaitingPickup
	Garrisoned
)

// CarrierState is a carrier's current activity.
type CarrierState uint8

const (
	Idle CarrierState = iota
	MovingToPickupPoint
	MovingToDropoffPoint
)

// Nav is the navigation collaborator used to compute a land-into-water
// rendezvous point (spec §4.J): the nearest water-adjacent land tile
// reachable by the boarding unit, and the nearest water tile reachable by
// the carrier.
type Nav interface {
	NearestWaterAdjacentLandTile(from world.Vec2) world.Vec2
	NearestReachableWaterTile(from world.Vec2) world.Vec2
}

type unit struct {
	state            UnitState
	capacityConsumed int
	carrier          world.UID
}

type carrier struct {
	state      CarrierState
	capacity   int
	current    int
	garrisoned []world.UID

	evictQueue []world.UID
	evictTimer world.Ticks
}

// System is the Garrison subsystem.
type System struct {
	registry *world.Registry
	bus      *eventbus.Bus
	nav      Nav

	evictDelay world.Ticks

	units    map[world.UID]*unit
	carriers map[world.UID]*carrier
}

// New creates a Garrison system. evictDelay is the fixed interval between
// units being issued out of a carrier during a staggered eviction (spec
// §4.J: "one unit per fixed delay on a cooperative task").
func New(registry *world.Registry, bus *eventbus.Bus, nav Nav, evictDelay world.Ticks) *System {
	s := &System{
		registry:   registry,
		bus:        bus,
		nav:        nav,
		evictDelay: evictDelay,
		units:      make(map[world.UID]*unit),
		carriers:   make(map[world.UID]*carrier),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	return s
}

// AddUnit begins tracking uid as a garrisonable unit. Requires the GARRISON
// flag.
func (s *System) AddUnit(uid world.UID, capacityConsumed int) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Garrison) {
		return
	}
	s.units[uid] = &unit{capacityConsumed: capacityConsumed}
}

// AddCarrier begins tracking uid as a carrier. Requires the GARRISONABLE
// flag.
func (s *System) AddCarrier(uid world.UID, capacity int) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Garrisonable) {
		return
	}
	s.carriers[uid] = &carrier{capacity: capacity}
}

// RemoveEntity drops uid's row, idempotently. If uid was a carrier, every
// rider it held reverts to NotGarrisoned rather than disappearing along with
// it.
func (s *System) RemoveEntity(uid world.UID) {
	if c, ok := s.carriers[uid]; ok {
		for _, rider := range c.garrisoned {
			if u, ok := s.units[rider]; ok {
				u.state = NotGarrisoned
				u.carrier = world.NONE
			}
		}
		delete(s.carriers, uid)
	}
	if u, ok := s.units[uid]; ok {
		if c, ok := s.carriers[u.carrier]; ok {
			c.garrisoned = removeUID(c.garrisoned, uid)
			c.current -= u.capacityConsumed
			c.evictQueue = removeUID(c.evictQueue, uid)
		}
		delete(s.units, uid)
	}
}

// UnitState reports uid's current boarding state, or NotGarrisoned if
// untracked.
func (s *System) UnitState(uid world.UID) UnitState {
	if u, ok := s.units[uid]; ok {
		return u.state
	}
	return NotGarrisoned
}

// CarrierState reports uid's current activity, or Idle if untracked.
func (s *System) CarrierState(uid world.UID) CarrierState {
	if c, ok := s.carriers[uid]; ok {
		return c.state
	}
	return Idle
}

// Garrisoned lists the UIDs currently held by carrier.
func (s *System) Garrisoned(carrier world.UID) []world.UID {
	if c, ok := s.carriers[carrier]; ok {
		return append([]world.UID(nil), c.garrisoned...)
	}
	return nil
}

// RequestBoard begins the pickup order for unit against carrierUID: both
// parties transition to moving state. If unitLand and carrierWater, a
// rendezvous point is computed for each side (spec §4.J "land-into-water");
// otherwise both destinations are the other party's current position. The
// caller (the Movement subsystem) is responsible for actually driving each
// party toward the returned destination and signalling arrival via
// UnitArrived/CarrierArrived.
func (s *System) RequestBoard(unitUID, carrierUID world.UID, unitLand, carrierWater bool) (unitDest, carrierDest world.Vec2) {
	u, ok := s.units[unitUID]
	c, ok2 := s.carriers[carrierUID]
	if !ok || !ok2 {
		return world.Vec2{}, world.Vec2{}
	}

	unitPos := s.registry.PositionGet(unitUID).XZ()
	carrierPos := s.registry.PositionGet(carrierUID).XZ()

	if unitLand && carrierWater {
		unitDest = s.nav.NearestWaterAdjacentLandTile(unitPos)
		carrierDest = s.nav.NearestReachableWaterTile(carrierPos)
	} else {
		unitDest = carrierPos
		carrierDest = unitPos
	}

	u.state = MovingToGarrisonable
	u.carrier = carrierUID
	if c.state == Idle {
		c.state = MovingToPickupPoint
	}
	return unitDest, carrierDest
}

// UnitArrived marks unit as waiting at the rendezvous point. If its carrier
// is already waiting there too, boarding completes immediately.
func (s *System) UnitArrived(unitUID world.UID) {
	u, ok := s.units[unitUID]
	if !ok || u.state != MovingToGarrisonable {
		return
	}
	u.state = AwaitingPickup
	if c, ok := s.carriers[u.carrier]; ok && c.state == Idle {
		s.board(unitUID, u, u.carrier, c)
	}
}

// CarrierArrived marks carrierUID as present at the rendezvous point and
// boards every unit already AwaitingPickup that targeted it.
func (s *System) CarrierArrived(carrierUID world.UID) {
	c, ok := s.carriers[carrierUID]
	if !ok || c.state != MovingToPickupPoint {
		return
	}
	c.state = Idle
	for uid, u := range s.units {
		if u.carrier == carrierUID && u.state == AwaitingPickup {
			s.board(uid, u, carrierUID, c)
		}
	}
}

func (s *System) board(unitUID world.UID, u *unit, carrierUID world.UID, c *carrier) {
	if c.current+u.capacityConsumed > c.capacity {
		return
	}
	u.state = Garrisoned
	c.current += u.capacityConsumed
	c.garrisoned = append(c.garrisoned, unitUID)
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.UnitBoarded, Entity: unitUID})
}

// Evict queues units for staggered release from carrierUID: one unit
// disembarks every evictDelay ticks rather than all at once (spec §4.J).
// Units already queued or not held by carrierUID are skipped.
func (s *System) Evict(carrierUID world.UID, units []world.UID) {
	c, ok := s.carriers[carrierUID]
	if !ok {
		return
	}
	held := make(map[world.UID]bool, len(c.garrisoned))
	for _, g := range c.garrisoned {
		held[g] = true
	}
	for _, uid := range units {
		if held[uid] {
			c.evictQueue = append(c.evictQueue, uid)
		}
	}
}

// Update advances every carrier's staggered eviction queue by dt, releasing
// at most one unit per evictDelay interval. A unit whose carrier no longer
// exists (or that no longer exists itself) is simply dropped from the
// queue rather than evicted, matching the cancellation contract for
// cooperative tasks (spec §5 "Eviction tasks ... abort if the carrier no
// longer exists").
func (s *System) Update(dt world.Ticks) {
	for carrierUID, c := range s.carriers {
		if len(c.evictQueue) == 0 {
			continue
		}
		c.evictTimer = c.evictTimer.AddClamped(dt)
		for c.evictTimer >= s.evictDelay && len(c.evictQueue) > 0 {
			c.evictTimer -= s.evictDelay
			next := c.evictQueue[0]
			c.evictQueue = c.evictQueue[1:]
			s.evictOne(carrierUID, c, next)
		}
		if len(c.evictQueue) == 0 {
			c.evictTimer = 0
		}
	}
}

func (s *System) evictOne(carrierUID world.UID, c *carrier, uid world.UID) {
	u, ok := s.units[uid]
	if !ok || u.carrier != carrierUID {
		return
	}
	c.garrisoned = removeUID(c.garrisoned, uid)
	c.current -= u.capacityConsumed
	u.state = NotGarrisoned
	u.carrier = world.NONE
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.UnitEvicted, Entity: uid})
}

func removeUID(list []world.UID, uid world.UID) []world.UID {
	for i, v := range list {
		if v == uid {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
