// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quadtree implements the Position Index (spec §4.B): a point
// quadtree over (X, Z) keyed by world.UID, with same-point entries chained
// together instead of triggering endless subdivision. It is grounded on
// the teacher's world/tree package, which sketched the same node-subdivide
// shape for an AABB-keyed entity tree; this version is reworked to index
// bare points by UID, to support removal/requery by UID, and to bound
// query output as spec §4.B requires ("never allocate unbounded storage").
package quadtree

import (
	"github.com/duskward/legion/world"
)

const (
	nodeCapacity  = 8
	minNodeExtent = 1.0 // meters; stop subdividing below this
)

// Index is the Position Index. The zero value is not usable; use New.
type Index struct {
	root       *node
	locations  map[world.UID]world.Vec2
	garrisoned map[world.UID]world.Vec2
}

type bucket struct {
	pos  world.Vec2
	uids []world.UID
}

type node struct {
	bounds   world.AABB // corner-anchored
	children [4]*node
	buckets  []bucket
}

// New creates an Index covering a square of the given half-width centered
// on the origin. Resize grows it without discarding existing entries.
func New(halfWidth float32) *Index {
	return &Index{
		root:       newNode(world.AABBFrom(-halfWidth, -halfWidth, halfWidth*2, halfWidth*2)),
		locations:  make(map[world.UID]world.Vec2),
		garrisoned: make(map[world.UID]world.Vec2),
	}
}

func newNode(bounds world.AABB) *node {
	return &node{bounds: bounds}
}

// Count returns the number of indexed (non-garrisoned) UIDs.
func (idx *Index) Count() int {
	return len(idx.locations)
}

// Set inserts uid at pos, or moves it there if already indexed. Per spec
// §4.B: the old coordinate is removed before the new one is inserted.
func (idx *Index) Set(uid world.UID, pos world.Vec2) {
	if old, ok := idx.locations[uid]; ok {
		idx.root.remove(old, uid)
	}
	idx.root.insert(pos, uid)
	idx.locations[uid] = pos
}

// Get returns the indexed position of uid, if any.
func (idx *Index) Get(uid world.UID) (world.Vec2, bool) {
	pos, ok := idx.locations[uid]
	return pos, ok
}

// Remove drops uid from the index entirely (used when an entity is
// destroyed or marked, rather than garrisoned).
func (idx *Index) Remove(uid world.UID) {
	if pos, ok := idx.locations[uid]; ok {
		idx.root.remove(pos, uid)
		delete(idx.locations, uid)
	}
}

// Garrison removes uid from the index while remembering its last position,
// so a later Ungarrison can restore it without the caller needing to track
// where it was (spec §3 "Position": "garrisoned entities are removed from
// the index").
func (idx *Index) Garrison(uid world.UID) {
	if pos, ok := idx.locations[uid]; ok {
		idx.root.remove(pos, uid)
		delete(idx.locations, uid)
		idx.garrisoned[uid] = pos
	}
}

// Ungarrison reinserts a previously garrisoned uid at pos.
func (idx *Index) Ungarrison(uid world.UID, pos world.Vec2) {
	delete(idx.garrisoned, uid)
	idx.Set(uid, pos)
}

// InCircle appends every indexed UID within r of center to out, honoring
// cap(out) as a hard ceiling so callers control worst-case allocation.
// Returns the (possibly unmodified) out slice.
func (idx *Index) InCircle(center world.Vec2, r float32, out []world.UID) []world.UID {
	bounds := world.RadiusAABB(center, r)
	r2 := r * r
	idx.root.query(bounds, func(pos world.Vec2, uid world.UID) bool {
		if pos.DistanceSquared(center) > r2 {
			return true
		}
		if len(out) == cap(out) {
			return false
		}
		out = append(out, uid)
		return true
	})
	return out
}

// InRect appends every indexed UID within the corner-anchored rect to out,
// subject to the same cap(out) ceiling as InCircle.
func (idx *Index) InRect(rect world.AABB, out []world.UID) []world.UID {
	idx.root.query(rect, func(pos world.Vec2, uid world.UID) bool {
		if !rect.ContainsPoint(pos) {
			return true
		}
		if len(out) == cap(out) {
			return false
		}
		out = append(out, uid)
		return true
	})
	return out
}

// NearestWithPredicate returns the closest indexed UID to center matching
// pred, within maxRadius, or world.NONE if none qualify.
func (idx *Index) NearestWithPredicate(center world.Vec2, maxRadius float32, pred func(uid world.UID) bool) world.UID {
	best := world.NONE
	bestDist2 := maxRadius * maxRadius
	bounds := world.RadiusAABB(center, maxRadius)
	idx.root.query(bounds, func(pos world.Vec2, uid world.UID) bool {
		d2 := pos.DistanceSquared(center)
		if d2 <= bestDist2 && pred(uid) {
			best = uid
			bestDist2 = d2
		}
		return true
	})
	return best
}

// --- node internals ---

func (n *node) insert(pos world.Vec2, uid world.UID) {
	for i := range n.buckets {
		if n.buckets[i].pos == pos {
			n.buckets[i].uids = append(n.buckets[i].uids, uid)
			return
		}
	}

	if n.children != ([4]*node{}) {
		if child := n.childFor(pos); child != nil {
			child.insert(pos, uid)
			return
		}
	}

	n.buckets = append(n.buckets, bucket{pos: pos, uids: []world.UID{uid}})
	if n.distinctPoints() > nodeCapacity && n.bounds.Width > minNodeExtent*2 {
		n.subdivide()
	}
}

// distinctPoints counts buckets (each bucket is one distinct point, no
// matter how many same-point entities chain off it) so that many stacked
// entities at one coordinate never force a subdivision that could not
// possibly separate them (spec §4.B "same-point chained siblings").
func (n *node) distinctPoints() int {
	return len(n.buckets)
}

func (n *node) childFor(pos world.Vec2) *node {
	for _, quad := range n.bounds.Quadrants() {
		if quad.ContainsPoint(pos) {
			i := quadrantIndex(n.bounds, pos)
			if n.children[i] == nil {
				n.children[i] = newNode(quad)
			}
			return n.children[i]
		}
	}
	return nil
}

func quadrantIndex(bounds world.AABB, pos world.Vec2) int {
	center := bounds.Center()
	switch {
	case pos.X < center.X && pos.Z < center.Z:
		return 0
	case pos.X >= center.X && pos.Z < center.Z:
		return 1
	case pos.X >= center.X && pos.Z >= center.Z:
		return 2
	default:
		return 3
	}
}

func (n *node) subdivide() {
	buckets := n.buckets
	n.buckets = nil
	for _, b := range buckets {
		if child := n.childFor(b.pos); child != nil {
			for _, uid := range b.uids {
				child.insert(b.pos, uid)
			}
		} else {
			// Shouldn't happen (every point in bounds belongs to exactly
			// one quadrant), but keep the bucket rather than drop data.
			n.buckets = append(n.buckets, b)
		}
	}
}

func (n *node) remove(pos world.Vec2, uid world.UID) bool {
	for i := range n.buckets {
		b := &n.buckets[i]
		if b.pos != pos {
			continue
		}
		for j, u := range b.uids {
			if u == uid {
				b.uids[j] = b.uids[len(b.uids)-1]
				b.uids = b.uids[:len(b.uids)-1]
				if len(b.uids) == 0 {
					n.buckets[i] = n.buckets[len(n.buckets)-1]
					n.buckets = n.buckets[:len(n.buckets)-1]
				}
				return true
			}
		}
		return false
	}

	for _, quad := range n.bounds.Quadrants() {
		if !quad.ContainsPoint(pos) {
			continue
		}
		i := quadrantIndex(n.bounds, pos)
		if n.children[i] != nil {
			return n.children[i].remove(pos, uid)
		}
	}
	return false
}

// query calls visit(pos, uid) for every bucket that intersects area,
// stopping early (without descending further) once visit returns false.
func (n *node) query(area world.AABB, visit func(pos world.Vec2, uid world.UID) bool) bool {
	if !n.bounds.Intersects(area) {
		return true
	}
	for _, b := range n.buckets {
		if !area.ContainsPoint(b.pos) {
			continue
		}
		for _, uid := range b.uids {
			if !visit(b.pos, uid) {
				return false
			}
		}
	}
	for _, child := range n.children {
		if child == nil {
			continue
		}
		if !child.query(area, visit) {
			return false
		}
	}
	return true
}
