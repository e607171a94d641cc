// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage implements the Storage Sites subsystem (spec §4.I):
// per-resource current/capacity/desired tracking with an alternate overlay
// for construction-in-progress sites, and source-eligibility flags for
// transport. Grounded on the teacher's world/entity_data.go style of
// plain per-kind numeric fields (Length/Width/Damage/etc. keyed by entity
// kind) generalized into a per-entity, per-resource-name table since
// storage sites carry an open-ended set of named resources rather than a
// fixed field list.
package storage

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

type resourceState struct {
	current, capacity, desired int
	altCapacity, altDesired    int
}

// site holds one storage entity's resource table and source-eligibility
// flags.
type site struct {
	resources map[string]*resourceState
	useAlt    bool

	doNotTake      bool
	doNotTakeLand  bool
	doNotTakeWater bool
}

func (s *site) row(resource string) *resourceState {
	r, ok := s.resources[resource]
	if !ok {
		r = &resourceState{}
		s.resources[resource] = r
	}
	return r
}

func (s *site) activeCapacity(r *resourceState) int {
	if s.useAlt {
		return r.altCapacity
	}
	return r.capacity
}

func (s *site) activeDesired(r *resourceState) int {
	if s.useAlt {
		return r.altDesired
	}
	return r.desired
}

// System is the Storage Sites subsystem.
type System struct {
	registry *world.Registry
	bus      *eventbus.Bus

	sites map[world.UID]*site
	order []world.UID
}

// New creates a Storage Sites system.
func New(registry *world.Registry, bus *eventbus.Bus) *System {
	s := &System{
		registry: registry,
		bus:      bus,
		sites:    make(map[world.UID]*site),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	return s
}

// AddEntity begins tracking uid. Requires the STORAGE_SITE flag.
func (s *System) AddEntity(uid world.UID) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.StorageSite) {
		return
	}
	s.sites[uid] = &site{resources: make(map[string]*resourceState)}
	s.order = append(s.order, uid)
}

// RemoveEntity drops uid's row, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	delete(s.sites, uid)
}

// SetCapacity sets uid's capacity for resource, on the primary overlay
// unless useAlt selects the alternate one.
func (s *System) SetCapacity(uid world.UID, resource string, capacity int, alt bool) {
	st, ok := s.sites[uid]
	if !ok {
		return
	}
	r := st.row(resource)
	if alt {
		r.altCapacity = capacity
	} else {
		r.capacity = capacity
	}
	s.clampCurrent(uid, st, resource, r)
}

// SetDesired sets uid's desired amount for resource.
func (s *System) SetDesired(uid world.UID, resource string, desired int, alt bool) {
	st, ok := s.sites[uid]
	if !ok {
		return
	}
	r := st.row(resource)
	if alt {
		r.altDesired = desired
	} else {
		r.desired = desired
	}
}

// SetUseAlt switches uid between its primary and alternate capacity/desired
// overlay (spec §4.I: "selected by a boolean used by construction-in-
// progress sites").
func (s *System) SetUseAlt(uid world.UID, useAlt bool) {
	st, ok := s.sites[uid]
	if !ok {
		return
	}
	st.useAlt = useAlt
	for resource, r := range st.resources {
		s.clampCurrent(uid, st, resource, r)
	}
}

// SetCurr clamps current to [0, active_capacity] and fires
// STORAGE_SITE_AMOUNT_CHANGED if the clamped value differs from before
// (spec §4.I).
func (s *System) SetCurr(uid world.UID, resource string, n int) {
	st, ok := s.sites[uid]
	if !ok {
		return
	}
	r := st.row(resource)
	old := r.current
	r.current = n
	s.clampCurrent(uid, st, resource, r)
	if r.current != old {
		s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.StorageSiteAmountChanged, Entity: uid})
	}
}

func (s *System) clampCurrent(uid world.UID, st *site, resource string, r *resourceState) {
	activeCap := st.activeCapacity(r)
	if r.current > activeCap {
		r.current = activeCap
	}
	if r.current < 0 {
		r.current = 0
	}
	_ = resource
}

// Current returns uid's current amount of resource.
func (s *System) Current(uid world.UID, resource string) int {
	st, ok := s.sites[uid]
	if !ok {
		return 0
	}
	return st.row(resource).current
}

// Capacity returns uid's active capacity for resource (primary or alt,
// whichever SetUseAlt last selected).
func (s *System) Capacity(uid world.UID, resource string) int {
	st, ok := s.sites[uid]
	if !ok {
		return 0
	}
	r := st.row(resource)
	return st.activeCapacity(r)
}

// Desired returns uid's active desired amount for resource.
func (s *System) Desired(uid world.UID, resource string) int {
	st, ok := s.sites[uid]
	if !ok {
		return 0
	}
	r := st.row(resource)
	return st.activeDesired(r)
}

// Saturated reports whether every tracked resource at uid has
// current >= desired (spec §3 "Storage site state").
func (s *System) Saturated(uid world.UID) bool {
	st, ok := s.sites[uid]
	if !ok {
		return false
	}
	for _, r := range st.resources {
		if r.current < st.activeDesired(r) {
			return false
		}
	}
	return true
}

// SetSourceEligibility sets the do-not-take exclusion flags that keep uid
// from being chosen as a transport source (spec §4.I).
func (s *System) SetSourceEligibility(uid world.UID, doNotTake, doNotTakeLand, doNotTakeWater bool) {
	if st, ok := s.sites[uid]; ok {
		st.doNotTake = doNotTake
		st.doNotTakeLand = doNotTakeLand
		st.doNotTakeWater = doNotTakeWater
	}
}

// EligibleSource reports whether uid may be used as a transport source,
// given the mover's domain (land/water).
func (s *System) EligibleSource(uid world.UID, land, water bool) bool {
	st, ok := s.sites[uid]
	if !ok {
		return false
	}
	if st.doNotTake {
		return false
	}
	if land && st.doNotTakeLand {
		return false
	}
	if water && st.doNotTakeWater {
		return false
	}
	return true
}

// Amount implements harvest.ResourceSite.
func (s *System) Amount(uid world.UID, resource string) int {
	return s.Current(uid, resource)
}

// Take implements harvest.ResourceSite: removes up to n units, clamped to
// what is currently present, firing STORAGE_SITE_AMOUNT_CHANGED.
func (s *System) Take(uid world.UID, resource string, n int) int {
	st, ok := s.sites[uid]
	if !ok {
		return 0
	}
	r := st.row(resource)
	taken := n
	if taken > r.current {
		taken = r.current
	}
	if taken <= 0 {
		return 0
	}
	s.SetCurr(uid, resource, r.current-taken)
	return taken
}

// Deposit implements harvest.ResourceSite: adds up to n units, clamped to
// active capacity, firing STORAGE_SITE_AMOUNT_CHANGED.
func (s *System) Deposit(uid world.UID, resource string, n int) int {
	st, ok := s.sites[uid]
	if !ok {
		return 0
	}
	r := st.row(resource)
	activeCap := st.activeCapacity(r)
	room := activeCap - r.current
	accepted := n
	if accepted > room {
		accepted = room
	}
	if accepted <= 0 {
		return 0
	}
	s.SetCurr(uid, resource, r.current+accepted)
	return accepted
}

// ResourceRecord is one named resource's persisted row within a Record.
type ResourceRecord struct {
	Name                        string
	Current, Capacity, Desired  int
	AltCapacity, AltDesired     int
}

// Record is a storage site's persisted state for the StorageSite
// save/restore component (spec §4.O). Resources is sorted by name so
// round-trip streams are reproducible despite the live map having no
// ordering of its own.
type Record struct {
	Resources      []ResourceRecord
	UseAlt         bool
	DoNotTake      bool
	DoNotTakeLand  bool
	DoNotTakeWater bool
}

// Entities returns every tracked UID in insertion order, skipping any that
// have since been removed.
func (s *System) Entities() []world.UID {
	out := make([]world.UID, 0, len(s.sites))
	for _, uid := range s.order {
		if _, ok := s.sites[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Export snapshots uid's site row, or the zero Record if untracked.
func (s *System) Export(uid world.UID) Record {
	st, ok := s.sites[uid]
	if !ok {
		return Record{}
	}
	names := maps.Keys(st.resources)
	slices.Sort(names)
	rec := Record{
		UseAlt: st.useAlt, DoNotTake: st.doNotTake,
		DoNotTakeLand: st.doNotTakeLand, DoNotTakeWater: st.doNotTakeWater,
	}
	for _, name := range names {
		r := st.resources[name]
		rec.Resources = append(rec.Resources, ResourceRecord{
			Name: name, Current: r.current, Capacity: r.capacity, Desired: r.desired,
			AltCapacity: r.altCapacity, AltDesired: r.altDesired,
		})
	}
	return rec
}

// Import restores uid's site row from r, creating the row if AddEntity has
// not already run against a pre-populated active set.
func (s *System) Import(uid world.UID, r Record) {
	st, ok := s.sites[uid]
	if !ok {
		st = &site{resources: make(map[string]*resourceState)}
		s.sites[uid] = st
		s.order = append(s.order, uid)
	}
	st.useAlt = r.UseAlt
	st.doNotTake = r.DoNotTake
	st.doNotTakeLand = r.DoNotTakeLand
	st.doNotTakeWater = r.DoNotTakeWater
	for _, rr := range r.Resources {
		st.resources[rr.Name] = &resourceState{
			current: rr.Current, capacity: rr.Capacity, desired: rr.Desired,
			altCapacity: rr.AltCapacity, altDesired: rr.AltDesired,
		}
	}
}
