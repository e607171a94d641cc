// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resource implements the resource-node table referenced by
// harvest.ResourceSite but left outside this core's lettered modules (spec
// §4.H: "a resource-node table outside this core's lettered modules"): the
// depletable trees/mines/fish shoals a harvester's SeekingResource state
// gathers from, as opposed to the Storage Sites (§4.I) a harvester drops
// off into. Grounded on the Storage Sites package's per-resource-name table
// shape, trimmed to the subset a source node actually needs (no capacity,
// no alt overlay, no desired amount beyond zero).
package resource

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// node is one resource entity's remaining-amount table, keyed by resource
// name (most nodes carry exactly one, but a mixed node is not precluded).
type node struct {
	amounts map[string]int
}

// System is the resource-node table. It structurally implements
// harvest.ResourceSite: Desired always reports 0 since a source node has
// no notion of a target stockpile, which correctly routes the Excess
// transport strategy away from treating nodes as an Excess source.
type System struct {
	registry *world.Registry
	bus      *eventbus.Bus

	nodes map[world.UID]*node
	order []world.UID
}

// New creates a resource-node System.
func New(registry *world.Registry, bus *eventbus.Bus) *System {
	s := &System{
		registry: registry,
		bus:      bus,
		nodes:    make(map[world.UID]*node),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	return s
}

// AddEntity begins tracking uid with an initial amount of resource.
// Requires the RESOURCE flag.
func (s *System) AddEntity(uid world.UID, resource string, amount int) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Resource) {
		return
	}
	s.nodes[uid] = &node{amounts: map[string]int{resource: amount}}
	s.order = append(s.order, uid)
}

// RemoveEntity drops uid's row, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	delete(s.nodes, uid)
}

// Amount implements harvest.ResourceSite.
func (s *System) Amount(uid world.UID, resource string) int {
	n, ok := s.nodes[uid]
	if !ok {
		return 0
	}
	return n.amounts[resource]
}

// Desired implements harvest.ResourceSite: a source node never desires
// more of what it already holds.
func (s *System) Desired(world.UID, string) int {
	return 0
}

// Take implements harvest.ResourceSite: removes up to n units, clamped to
// what remains, firing RESOURCE_AMOUNT_CHANGED and, once a resource
// reaches zero and the node holds nothing else, RESOURCE_EXHAUSTED and
// zombification (spec §4.H scenario 1: "tree becomes zombie").
func (s *System) Take(uid world.UID, resource string, n int) int {
	nd, ok := s.nodes[uid]
	if !ok {
		return 0
	}
	have := nd.amounts[resource]
	taken := n
	if taken > have {
		taken = have
	}
	if taken <= 0 {
		return 0
	}
	nd.amounts[resource] = have - taken
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.ResourceAmountChanged, Entity: uid})

	if nd.amounts[resource] == 0 {
		s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.ResourceExhausted, Entity: uid})
		if s.depleted(nd) {
			s.registry.Zombify(uid)
		}
	}
	return taken
}

// Deposit implements harvest.ResourceSite: a source node accepts nothing
// back (only Storage Sites do), so Deposit is always a no-op.
func (s *System) Deposit(world.UID, string, int) int {
	return 0
}

func (s *System) depleted(n *node) bool {
	for _, amount := range n.amounts {
		if amount > 0 {
			return false
		}
	}
	return true
}

// ResourceRecord is one named resource's persisted remaining amount.
type ResourceRecord struct {
	Name   string
	Amount int
}

// Record is a resource node's persisted state for the Resource save/restore
// component (spec §4.O).
type Record struct {
	Amounts []ResourceRecord
}

// Entities returns every tracked UID in insertion order, skipping any that
// have since been removed.
func (s *System) Entities() []world.UID {
	out := make([]world.UID, 0, len(s.nodes))
	for _, uid := range s.order {
		if _, ok := s.nodes[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Export snapshots uid's node row, sorted by resource name for reproducible
// streams, or the zero Record if untracked.
func (s *System) Export(uid world.UID) Record {
	nd, ok := s.nodes[uid]
	if !ok {
		return Record{}
	}
	names := maps.Keys(nd.amounts)
	slices.Sort(names)
	var rec Record
	for _, name := range names {
		rec.Amounts = append(rec.Amounts, ResourceRecord{Name: name, Amount: nd.amounts[name]})
	}
	return rec
}

// Import restores uid's node row from r, creating the row if AddEntity has
// not already run against a pre-populated active set.
func (s *System) Import(uid world.UID, r Record) {
	nd, ok := s.nodes[uid]
	if !ok {
		nd = &node{amounts: make(map[string]int)}
		s.nodes[uid] = nd
		s.order = append(s.order, uid)
	}
	for _, rr := range r.Amounts {
		nd.amounts[rr.Name] = rr.Amount
	}
}
