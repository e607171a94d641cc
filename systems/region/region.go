// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package region implements the Region Triggers subsystem (spec §4.L):
// named circle/rectangle regions, a per-chunk intersection index, and
// per-tick ENTERED_REGION/EXITED_REGION delta emission. Grounded on the
// teacher's world/sector.go chunked spatial index (entities are bucketed
// into fixed-size sectors, queries only ever touch the buckets a shape
// overlaps) generalized from entity lookup to region-name lookup.
package region

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/chewxy/math32"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// Kind is a region's geometry type.
type Kind uint8

const (
	Circle Kind = iota
	Rect
)

// Region is a named trigger volume.
type Region struct {
	Name string
	Kind Kind

	Center world.Vec2 // Circle
	Radius float32     // Circle

	Min, Max world.Vec2 // Rect
}

// Contains reports whether p falls inside the region's geometry.
func (r Region) Contains(p world.Vec2) bool {
	switch r.Kind {
	case Circle:
		return p.DistanceSquared(r.Center) <= r.Radius*r.Radius
	case Rect:
		return p.X >= r.Min.X && p.X <= r.Max.X && p.Z >= r.Min.Z && p.Z <= r.Max.Z
	default:
		return false
	}
}

func (r Region) bounds() (min, max world.Vec2) {
	switch r.Kind {
	case Circle:
		return world.Vec2{X: r.Center.X - r.Radius, Z: r.Center.Z - r.Radius},
			world.Vec2{X: r.Center.X + r.Radius, Z: r.Center.Z + r.Radius}
	default:
		return r.Min, r.Max
	}
}

// System is the Region Triggers subsystem.
type System struct {
	bus       *eventbus.Bus
	chunkSize float32

	regions    map[string]Region
	chunkIndex map[uint64][]string

	positions map[world.UID]world.Vec2
	members   map[world.UID]map[string]bool
	dirty     map[world.UID]bool
}

// New creates a Region Triggers system with the given chunk size (world
// units per chunk edge) for the intersection index.
func New(bus *eventbus.Bus, chunkSize float32) *System {
	return &System{
		bus:        bus,
		chunkSize:  chunkSize,
		regions:    make(map[string]Region),
		chunkIndex: make(map[uint64][]string),
		positions:  make(map[world.UID]world.Vec2),
		members:    make(map[world.UID]map[string]bool),
		dirty:      make(map[world.UID]bool),
	}
}

func chunkKey(cx, cz int32) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(cx))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cz))
	return xxhash.Sum64(buf[:])
}

func (s *System) chunkOf(p world.Vec2) (int32, int32) {
	return int32(floorDiv(p.X, s.chunkSize)), int32(floorDiv(p.Z, s.chunkSize))
}

func floorDiv(v, size float32) float32 {
	return math32.Floor(v / size)
}

// AddRegion registers a named region and indexes it into every chunk its
// bounding box overlaps.
func (s *System) AddRegion(r Region) {
	s.regions[r.Name] = r
	min, max := r.bounds()
	minCX, minCZ := s.chunkOf(min)
	maxCX, maxCZ := s.chunkOf(max)
	for cx := minCX; cx <= maxCX; cx++ {
		for cz := minCZ; cz <= maxCZ; cz++ {
			key := chunkKey(cx, cz)
			s.chunkIndex[key] = append(s.chunkIndex[key], r.Name)
		}
	}
}

// RemoveRegion drops a region from every chunk bucket it was indexed into.
func (s *System) RemoveRegion(name string) {
	r, ok := s.regions[name]
	if !ok {
		return
	}
	min, max := r.bounds()
	minCX, minCZ := s.chunkOf(min)
	maxCX, maxCZ := s.chunkOf(max)
	for cx := minCX; cx <= maxCX; cx++ {
		for cz := minCZ; cz <= maxCZ; cz++ {
			key := chunkKey(cx, cz)
			s.chunkIndex[key] = removeName(s.chunkIndex[key], name)
		}
	}
	delete(s.regions, name)
}

func removeName(list []string, name string) []string {
	for i, v := range list {
		if v == name {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// SetPos records uid's new position and marks it dirty for the next
// Update, updating the region table delta-style rather than recomputing
// every entity's membership every call (spec §4.L).
func (s *System) SetPos(uid world.UID, pos world.Vec2) {
	s.positions[uid] = pos
	s.dirty[uid] = true
}

// RemoveEntity drops uid's tracked position and membership, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	delete(s.positions, uid)
	delete(s.members, uid)
	delete(s.dirty, uid)
}

// Update recomputes membership for every entity marked dirty since the
// last call and emits ENTERED_REGION/EXITED_REGION for the symmetric
// difference against its previous membership set (spec §4.L invariant:
// entered ∪ current = current; exited ∩ current = ∅).
func (s *System) Update() {
	for uid := range s.dirty {
		pos := s.positions[uid]
		cx, cz := s.chunkOf(pos)
		candidates := s.chunkIndex[chunkKey(cx, cz)]

		current := make(map[string]bool, len(candidates))
		for _, name := range candidates {
			if r, ok := s.regions[name]; ok && r.Contains(pos) {
				current[name] = true
			}
		}

		previous := s.members[uid]
		for name := range current {
			if !previous[name] {
				s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.EnteredRegion, Entity: uid, Payload: name})
			}
		}
		for name := range previous {
			if !current[name] {
				s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.ExitedRegion, Entity: uid, Payload: name})
			}
		}

		s.members[uid] = current
	}
	s.dirty = make(map[world.UID]bool)
}

// Members reports the set of region names uid currently occupies.
func (s *System) Members(uid world.UID) []string {
	var names []string
	for name := range s.members[uid] {
		names = append(names, name)
	}
	return names
}
