// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package movement implements the Movement subsystem (spec §4.E): a
// per-entity motion state machine driving destination-seeking, surrounding,
// range-closing, enemy-seeking, and pure-turning orders. Grounded on the
// teacher's physics.go boat steering (Direction.Lerp toward a target
// heading, Velocity.AddClamped toward a target speed) and world/guidance.go
// (DirectionTarget/VelocityTarget pair), generalized from one hardcoded
// boat-physics update into an explicit order state machine with its own
// component table, decoupled from the registry via removal hooks.
package movement

import (
	"time"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
	"github.com/duskward/legion/world/quadtree"
)

// State names the current order a mover is executing.
type State uint8

const (
	Idle State = iota
	MovingToPoint
	MovingToSurround
	MovingToEnterRange
	SeekingEnemies
	TurningTo
)

// TickRate selects how often the collision-avoidance computation runs for
// a given mover (spec §4.E: "selectable {20,10,5,1 Hz}"); higher rates
// compute avoidance at finer granularity.
type TickRate uint8

const (
	Rate20Hz TickRate = 20
	Rate10Hz TickRate = 10
	Rate5Hz  TickRate = 5
	Rate1Hz  TickRate = 1
)

// mover is per-entity movement state.
type mover struct {
	state State

	dest         world.Vec2
	surroundTarget world.UID
	surroundRadius float32
	rangeTarget  world.UID
	rangeRadius  float32
	turnTarget   world.Quat

	speed    float32 // meters/second, cruise speed for point-seeking orders
	turnRate world.Angle // radians/second

	blocked bool

	rate     TickRate
	sinceRun time.Duration

	inEpisode bool // true between a MOTION_START and its matching MOTION_END
}

// System is the Movement subsystem.
type System struct {
	registry *world.Registry
	index    *quadtree.Index
	bus      *eventbus.Bus

	movers map[world.UID]*mover
	order  []world.UID // insertion order, for save/restore replay
}

// New creates a Movement system wired to the given registry, position
// index, and event bus. It registers a removal hook with registry so rows
// are dropped when an entity is destroyed or zombified.
func New(registry *world.Registry, index *quadtree.Index, bus *eventbus.Bus) *System {
	s := &System{
		registry: registry,
		index:    index,
		bus:      bus,
		movers:   make(map[world.UID]*mover),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	return s
}

// AddEntity begins tracking uid as idle. Per spec §3, a subsystem accepts
// AddEntity only after uid is active and its flag bit is set.
func (s *System) AddEntity(uid world.UID, speed float32, turnRate world.Angle, rate TickRate) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Movable) {
		return
	}
	s.movers[uid] = &mover{speed: speed, turnRate: turnRate, rate: rate}
	s.order = append(s.order, uid)
}

// RemoveEntity drops uid's row, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	delete(s.movers, uid)
}

// SetDest issues a moving_to_point order.
func (s *System) SetDest(uid world.UID, dest world.Vec2) {
	m, ok := s.movers[uid]
	if !ok {
		return
	}
	s.beginOrder(uid, m, MovingToPoint)
	m.dest = dest
}

// SetSurroundEntity issues a moving_to_surround(target) order.
func (s *System) SetSurroundEntity(uid world.UID, target world.UID, radius float32) {
	m, ok := s.movers[uid]
	if !ok {
		return
	}
	s.beginOrder(uid, m, MovingToSurround)
	m.surroundTarget = target
	m.surroundRadius = radius
}

// SetEnterRange issues a moving_to_enter_range(target,r) order.
func (s *System) SetEnterRange(uid world.UID, target world.UID, r float32) {
	m, ok := s.movers[uid]
	if !ok {
		return
	}
	s.beginOrder(uid, m, MovingToEnterRange)
	m.rangeTarget = target
	m.rangeRadius = r
}

// SetSeekEnemies issues a seeking_enemies order.
func (s *System) SetSeekEnemies(uid world.UID) {
	m, ok := s.movers[uid]
	if !ok {
		return
	}
	s.beginOrder(uid, m, SeekingEnemies)
}

// SetTurningTo issues a pure turning_to(quat) order.
func (s *System) SetTurningTo(uid world.UID, target world.Quat) {
	m, ok := s.movers[uid]
	if !ok {
		return
	}
	s.beginOrder(uid, m, TurningTo)
	m.turnTarget = target
}

// beginOrder transitions m into a new order, closing out any in-flight
// motion episode first (MOTION_END must follow the MOTION_START it pairs
// with even when superseded), and emits ORDER_ISSUED so dependent
// subsystems abort their own pipelines (spec §4.E).
func (s *System) beginOrder(uid world.UID, m *mover, next State) {
	s.endEpisode(uid, m)
	m.state = next
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.OrderIssued, Entity: uid})
}

// Stop cancels the current order, idempotently.
func (s *System) Stop(uid world.UID) {
	m, ok := s.movers[uid]
	if !ok || m.state == Idle {
		return
	}
	s.endEpisode(uid, m)
	m.state = Idle
}

// BlockAt marks uid as blocked (e.g. awaiting a navgrid obstacle to clear).
func (s *System) BlockAt(uid world.UID) {
	if m, ok := s.movers[uid]; ok {
		m.blocked = true
	}
}

// Unblock clears a block set by BlockAt.
func (s *System) Unblock(uid world.UID) {
	if m, ok := s.movers[uid]; ok {
		m.blocked = false
	}
}

// State reports uid's current order, or Idle if untracked.
func (s *System) State(uid world.UID) State {
	if m, ok := s.movers[uid]; ok {
		return m.state
	}
	return Idle
}

// OnFactionChange re-registers avoidance obligations under the entity's new
// faction (spec §4.E). Avoidance bookkeeping itself is a placeholder here
// (no separate avoidance-obligation table exists yet); wired as a registry
// hook so the contract point exists for a future collision-avoidance layer.
func (s *System) OnFactionChange(uid world.UID, old, new world.FactionID, pos world.Vec3) {
	_ = s.movers[uid]
}

// Update advances every mover whose accumulated time since its last run
// reaches its selected tick rate's period (spec §4.E).
func (s *System) Update(dt time.Duration, tick world.Ticks) {
	for uid, m := range s.movers {
		if m.state == Idle || m.blocked {
			continue
		}
		m.sinceRun += dt
		period := time.Second / time.Duration(m.rate)
		if m.sinceRun < period {
			continue
		}
		m.sinceRun -= period
		s.step(uid, m, period)
	}
}

func (s *System) step(uid world.UID, m *mover, dt time.Duration) {
	if !m.inEpisode {
		m.inEpisode = true
		s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.MotionStart, Entity: uid})
	}

	dtSeconds := float32(dt) / float32(time.Second)
	pos := s.registry.PositionGet(uid)

	var target world.Vec2
	haveTarget := true

	switch m.state {
	case MovingToPoint:
		target = m.dest
	case MovingToSurround:
		if tp, ok := s.index.Get(m.surroundTarget); ok {
			dir := pos.XZ().Sub(tp).Norm()
			target = tp.Add(dir.Mul(m.surroundRadius))
		} else {
			haveTarget = false
		}
	case MovingToEnterRange:
		if tp, ok := s.index.Get(m.rangeTarget); ok {
			if pos.XZ().DistanceSquared(tp) <= m.rangeRadius*m.rangeRadius {
				s.finishEpisode(uid, m)
				return
			}
			target = tp
		} else {
			haveTarget = false
		}
	case SeekingEnemies:
		// Target acquisition itself belongs to Combat; Movement only closes
		// whatever point Combat last published via SetDest. With nothing
		// new to chase this tick, hold position.
		haveTarget = false
	case TurningTo:
		heading := world.QuatFromAngle(0)
		next := heading.Slerp(m.turnTarget, dtSeconds*2)
		if next.Angle().Diff(m.turnTarget.Angle()).Abs() < 0.01 {
			s.finishEpisode(uid, m)
		}
		return
	}

	if !haveTarget {
		return
	}

	toTarget := target.Sub(pos.XZ())
	dist := toTarget.Length()
	if dist < 0.1 {
		if m.state == MovingToPoint || m.state == MovingToSurround {
			s.finishEpisode(uid, m)
		}
		return
	}

	step := m.speed * dtSeconds
	arrived := step >= dist
	if arrived {
		step = dist
	}
	moved := pos.XZ().Add(toTarget.Norm().Mul(step))
	newPos := world.Vec3{X: moved.X, Y: pos.Y, Z: moved.Z}
	s.registry.PositionSet(uid, newPos)
	s.index.Set(uid, moved)
	if arrived && (m.state == MovingToPoint || m.state == MovingToSurround) {
		s.finishEpisode(uid, m)
	}
}

func (s *System) finishEpisode(uid world.UID, m *mover) {
	s.endEpisode(uid, m)
	m.state = Idle
}

func (s *System) endEpisode(uid world.UID, m *mover) {
	if m.inEpisode {
		m.inEpisode = false
		s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.MotionEnd, Entity: uid})
	}
}

// Record is a mover's persisted state for the Movement save/restore
// component (spec §4.O).
type Record struct {
	State          State
	Dest           world.Vec2
	SurroundTarget world.UID
	SurroundRadius float32
	RangeTarget    world.UID
	RangeRadius    float32
	TurnTarget     world.Quat
	Speed          float32
	TurnRate       world.Angle
	Rate           TickRate
}

// Entities returns every tracked UID in insertion order, skipping any that
// have since been removed.
func (s *System) Entities() []world.UID {
	out := make([]world.UID, 0, len(s.movers))
	for _, uid := range s.order {
		if _, ok := s.movers[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Export snapshots uid's mover row, or the zero Record if untracked.
func (s *System) Export(uid world.UID) Record {
	m, ok := s.movers[uid]
	if !ok {
		return Record{}
	}
	return Record{
		State: m.state, Dest: m.dest,
		SurroundTarget: m.surroundTarget, SurroundRadius: m.surroundRadius,
		RangeTarget: m.rangeTarget, RangeRadius: m.rangeRadius,
		TurnTarget: m.turnTarget, Speed: m.speed, TurnRate: m.turnRate, Rate: m.rate,
	}
}

// Import restores uid's mover row from r. It tolerates uid already being
// tracked (a no-op AddEntity call having already run against the
// pre-populated active set) by overwriting whatever row exists, creating
// one if needed rather than requiring AddEntity to have run first.
func (s *System) Import(uid world.UID, r Record) {
	m, ok := s.movers[uid]
	if !ok {
		m = &mover{}
		s.movers[uid] = m
		s.order = append(s.order, uid)
	}
	m.state = r.State
	m.dest = r.Dest
	m.surroundTarget = r.SurroundTarget
	m.surroundRadius = r.SurroundRadius
	m.rangeTarget = r.RangeTarget
	m.rangeRadius = r.RangeRadius
	m.turnTarget = r.TurnTarget
	m.speed = r.Speed
	m.turnRate = r.TurnRate
	m.rate = r.Rate
}
