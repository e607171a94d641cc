// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package harvest implements the Harvest/Transport subsystem (spec §4.H):
// a per-entity harvester/transport state machine, queued deferred commands,
// and resource-exhaustion retargeting. Grounded on the teacher's
// world/guidance.go + physics.go collision loot handling (a boat gravitates
// toward a collectible, then a deposit increments score), generalized into
// an explicit multi-stage carry/drop-off loop against named resources
// instead of a single implicit "pick up and score" interaction.
package harvest

import (
	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// State is a harvester's current activity.
type State uint8

const (
	Idle State = iota
	SeekingResource
	Harvesting
	SeekingStorage
	TransportGetting
	TransportPutting
	TransportSeekingResource
	TransportHarvesting
)

// Strategy selects how a transport unit chooses a source site.
type Strategy uint8

const (
	Nearest  Strategy = iota // pick nearest eligible source
	Excess                   // prefer sources holding > desired; fall back to Nearest
	Gathering                // try to gather the resource oneself before looking for a source
)

// CommandKind names a queued deferred action.
type CommandKind uint8

const (
	CommandNone CommandKind = iota
	CommandGather
	CommandTransport
	CommandBuild
	CommandSupply
)

// Command is a queued action executed after a forced drop-off completes.
type Command struct {
	Kind     CommandKind
	Resource string
	Source   world.UID
	Target   world.UID
}

// ResourceSite is the collaborator interface over whatever owns resource
// nodes and storage sites; Storage Sites (spec §4.I) and a resource-node
// table outside this core's lettered modules both implement it.
type ResourceSite interface {
	// Amount returns how much of resource remains harvestable/depositable
	// at site.
	Amount(site world.UID, resource string) int
	// Desired returns the site's desired amount of resource, used by the
	// EXCESS transport strategy (spec §4.H, §4.I).
	Desired(site world.UID, resource string) int
	// Take removes up to n units of resource from site, returning how much
	// was actually available.
	Take(site world.UID, resource string, n int) int
	// Deposit adds up to n units of resource into site, returning how much
	// was actually accepted (bounded by active capacity, spec §4.I).
	Deposit(site world.UID, resource string, n int) int
}

// PositionIndex is the collaborator Harvest consults to find a same-type
// resource node within range of a harvester's last known position once its
// current source exhausts (spec §4.H retarget policy). world/quadtree.Index
// satisfies this directly.
type PositionIndex interface {
	NearestWithPredicate(center world.Vec2, maxRadius float32, pred func(uid world.UID) bool) world.UID
}

type harvester struct {
	state    State
	strategy Strategy

	resource   string
	gatherSpeed float32
	maxCarry    int
	currCarry   int

	source  world.UID // resource node or transport-source site
	storage world.UID // drop-off site

	reacquireRadius float32
	lastKnownPos    world.Vec2

	queued Command
}

// System is the Harvest/Transport subsystem.
type System struct {
	registry *world.Registry
	sites    ResourceSite
	bus      *eventbus.Bus
	index    PositionIndex

	priority []string // global resource priority order, highest first

	harvesters map[world.UID]*harvester
	order      []world.UID
}

// New creates a Harvest/Transport system. index may be nil, in which case
// onResourceExhausted always falls back to a drop-off rather than
// attempting the retarget search.
func New(registry *world.Registry, sites ResourceSite, bus *eventbus.Bus, index PositionIndex) *System {
	s := &System{
		registry:   registry,
		sites:      sites,
		bus:        bus,
		index:      index,
		harvesters: make(map[world.UID]*harvester),
	}
	registry.RegisterRemovalHook(s.RemoveEntity)
	bus.Register(eventbus.OrderIssued, eventbus.HandlerFunc(s.onOrderIssued), eventbus.MaskAll)
	return s
}

// SetPriority sets the global resource priority list, highest-priority
// first (spec §4.H: "global priority list (ordered resource names)").
func (s *System) SetPriority(names []string) {
	s.priority = append([]string(nil), names...)
}

// AddEntity begins tracking uid. Requires the HARVESTER flag.
func (s *System) AddEntity(uid world.UID, gatherSpeed float32, maxCarry int, reacquireRadius float32) {
	if !s.registry.Exists(uid) || !s.registry.FlagsGet(uid).Has(world.Harvester) {
		return
	}
	s.harvesters[uid] = &harvester{gatherSpeed: gatherSpeed, maxCarry: maxCarry, reacquireRadius: reacquireRadius}
	s.order = append(s.order, uid)
}

// RemoveEntity drops uid's row, idempotently.
func (s *System) RemoveEntity(uid world.UID) {
	delete(s.harvesters, uid)
}

// SetStorage records uid's drop-off site, used by both Gather's forced
// drop-off (when a new order requires abandoning an incompatible carry)
// and the ordinary SeekingStorage/TransportPutting flow.
func (s *System) SetStorage(uid world.UID, storage world.UID) {
	if h, ok := s.harvesters[uid]; ok {
		h.storage = storage
	}
}

// onOrderIssued clears a harvester's queued command when a fresh Movement
// order supersedes it (spec §4.E: "harvester clears queued command").
func (s *System) onOrderIssued(ev eventbus.Event) error {
	if h, ok := s.harvesters[ev.Entity]; ok {
		h.queued = Command{}
	}
	return nil
}

// Gather issues a gather order for resource at source. If the harvester is
// currently carrying an incompatible resource, the order is queued and a
// drop-off is forced first (spec §4.H invariant: "a harvester never mixes
// resources").
func (s *System) Gather(uid world.UID, resource string, source world.UID) {
	h, ok := s.harvesters[uid]
	if !ok {
		return
	}
	if h.currCarry > 0 && h.resource != resource {
		h.queued = Command{Kind: CommandGather, Resource: resource, Target: source}
		s.forceDropOff(uid, h)
		return
	}
	h.resource = resource
	h.source = source
	h.state = SeekingResource
}

// Transport issues a transport order: carry resource from source to
// storage. strategy is recorded for bookkeeping only; picking which source
// a strategy should prefer is ChooseSource's job, called by whatever
// assigns the order (a player command or Automation's cost-function
// assignment, spec §4.M) before Transport is invoked.
func (s *System) Transport(uid world.UID, resource string, source, storage world.UID, strategy Strategy) {
	h, ok := s.harvesters[uid]
	if !ok {
		return
	}
	if h.currCarry > 0 && h.resource != resource {
		h.queued = Command{Kind: CommandTransport, Resource: resource, Source: source, Target: storage}
		s.forceDropOff(uid, h)
		return
	}
	h.resource = resource
	h.source = source
	h.storage = storage
	h.strategy = strategy
	h.state = TransportGetting
}

// ChooseSource implements the Transport strategy selection (spec §4.H):
// NEAREST picks the closest candidate with Amount>0; EXCESS prefers a
// candidate holding more than its desired amount, falling back to NEAREST
// if none qualify; GATHERING is the caller's signal to attempt self-harvest
// before calling this at all, so it behaves as NEAREST here. Returns
// world.NONE if no candidate has any of resource.
func ChooseSource(sites ResourceSite, position func(world.UID) world.Vec2, origin world.Vec2, resource string, strategy Strategy, candidates []world.UID) world.UID {
	nearest := func(pool []world.UID) world.UID {
		best := world.NONE
		bestDist := float32(-1)
		for _, c := range pool {
			if sites.Amount(c, resource) <= 0 {
				continue
			}
			d := origin.Distance(position(c))
			if best == world.NONE || d < bestDist {
				best = c
				bestDist = d
			}
		}
		return best
	}

	if strategy == Excess {
		var excess []world.UID
		for _, c := range candidates {
			if sites.Amount(c, resource) > sites.Desired(c, resource) {
				excess = append(excess, c)
			}
		}
		if best := nearest(excess); best != world.NONE {
			return best
		}
	}
	return nearest(candidates)
}

func (s *System) forceDropOff(uid world.UID, h *harvester) {
	if h.storage == world.NONE || h.currCarry == 0 {
		h.currCarry = 0
		s.runQueued(uid, h)
		return
	}
	accepted := s.sites.Deposit(h.storage, h.resource, h.currCarry)
	h.currCarry -= accepted
	if h.currCarry == 0 {
		s.runQueued(uid, h)
	}
}

func (s *System) runQueued(uid world.UID, h *harvester) {
	cmd := h.queued
	h.queued = Command{}
	switch cmd.Kind {
	case CommandGather:
		s.Gather(uid, cmd.Resource, cmd.Target)
	case CommandTransport:
		s.Transport(uid, cmd.Resource, cmd.Source, cmd.Target, h.strategy)
	}
}

// State reports uid's current state, or Idle if untracked.
func (s *System) State(uid world.UID) State {
	if h, ok := s.harvesters[uid]; ok {
		return h.state
	}
	return Idle
}

// Carry reports uid's current carried amount.
func (s *System) Carry(uid world.UID) int {
	if h, ok := s.harvesters[uid]; ok {
		return h.currCarry
	}
	return 0
}

// Update advances the harvest cycle for every tracked entity: gathers from
// the current source, transitions to seeking storage once full or the
// source is exhausted, deposits on arrival, and retargets within
// reacquireRadius on exhaustion before attempting a drop-off (spec §4.H).
func (s *System) Update() {
	for uid, h := range s.harvesters {
		switch h.state {
		case SeekingResource, TransportSeekingResource:
			if s.sites.Amount(h.source, h.resource) <= 0 {
				continue // caller's movement layer is responsible for arrival detection
			}
			if h.state == SeekingResource {
				h.state = Harvesting
			} else {
				h.state = TransportHarvesting
			}
		case Harvesting, TransportHarvesting:
			s.gatherTick(uid, h)
		case TransportGetting:
			taken := s.sites.Take(h.source, h.resource, h.maxCarry-h.currCarry)
			h.currCarry += taken
			if h.currCarry >= h.maxCarry || s.sites.Amount(h.source, h.resource) <= 0 {
				h.state = TransportPutting
			}
		case TransportPutting:
			accepted := s.sites.Deposit(h.storage, h.resource, h.currCarry)
			h.currCarry -= accepted
			if h.currCarry == 0 {
				h.state = Idle
				s.runQueued(uid, h)
			}
		case SeekingStorage:
			if !s.registry.Exists(h.storage) {
				continue // no live drop-off site: keep the carry and keep seeking
			}
			accepted := s.sites.Deposit(h.storage, h.resource, h.currCarry)
			h.currCarry -= accepted
			if h.currCarry == 0 {
				h.state = Idle
				s.runQueued(uid, h)
			}
		}
	}
}

func (s *System) gatherTick(uid world.UID, h *harvester) {
	remaining := s.sites.Amount(h.source, h.resource)
	if remaining <= 0 {
		s.onResourceExhausted(uid, h)
		return
	}
	want := int(h.gatherSpeed)
	if want < 1 {
		want = 1
	}
	if want > h.maxCarry-h.currCarry {
		want = h.maxCarry - h.currCarry
	}
	if want <= 0 {
		s.advanceAfterFull(uid, h)
		return
	}
	taken := s.sites.Take(h.source, h.resource, want)
	h.currCarry += taken

	if h.currCarry >= h.maxCarry {
		s.advanceAfterFull(uid, h)
	}
}

func (s *System) advanceAfterFull(uid world.UID, h *harvester) {
	if h.state == TransportHarvesting {
		h.state = TransportPutting
	} else {
		h.state = SeekingStorage
	}
}

// onResourceExhausted implements the retarget policy: search within
// reacquireRadius of the last known resource position for another instance
// of the same resource type; on success the harvester resumes the same
// activity (gathering, or transport's getting/harvesting leg) against the
// replacement source. On failure, fall back to a drop-off (spec §4.H),
// mirroring the original's harvester.c exhaustion handling, which retargets
// to the nearest node of the same resource kind within range before giving
// up and returning to base.
func (s *System) onResourceExhausted(uid world.UID, h *harvester) {
	s.bus.NotifyDeferred(eventbus.Event{Kind: eventbus.ResourceExhausted, Entity: uid})
	h.lastKnownPos = s.registry.PositionGet(uid).XZ()

	if s.index != nil {
		exhausted := h.source
		replacement := s.index.NearestWithPredicate(h.lastKnownPos, h.reacquireRadius, func(cand world.UID) bool {
			return cand != exhausted && s.sites.Amount(cand, h.resource) > 0
		})
		if replacement != world.NONE {
			h.source = replacement
			switch h.state {
			case Harvesting:
				h.state = SeekingResource
			case TransportHarvesting:
				h.state = TransportSeekingResource
			}
			return
		}
	}

	h.state = Idle
	s.forceDropOff(uid, h)
}

// Record is a harvester's persisted state for the Harvester save/restore
// component (spec §4.O).
type Record struct {
	State           State
	Strategy        Strategy
	Resource        string
	GatherSpeed     float32
	MaxCarry        int
	CurrCarry       int
	Source          world.UID
	Storage         world.UID
	ReacquireRadius float32
	LastKnownPos    world.Vec2
	Queued          Command
}

// Entities returns every tracked UID in insertion order, skipping any that
// have since been removed.
func (s *System) Entities() []world.UID {
	out := make([]world.UID, 0, len(s.harvesters))
	for _, uid := range s.order {
		if _, ok := s.harvesters[uid]; ok {
			out = append(out, uid)
		}
	}
	return out
}

// Export snapshots uid's harvester row, or the zero Record if untracked.
func (s *System) Export(uid world.UID) Record {
	h, ok := s.harvesters[uid]
	if !ok {
		return Record{}
	}
	return Record{
		State: h.state, Strategy: h.strategy, Resource: h.resource,
		GatherSpeed: h.gatherSpeed, MaxCarry: h.maxCarry, CurrCarry: h.currCarry,
		Source: h.source, Storage: h.storage, ReacquireRadius: h.reacquireRadius,
		LastKnownPos: h.lastKnownPos, Queued: h.queued,
	}
}

// Import restores uid's harvester row from r, creating the row if
// AddEntity has not already run against a pre-populated active set.
func (s *System) Import(uid world.UID, r Record) {
	h, ok := s.harvesters[uid]
	if !ok {
		h = &harvester{}
		s.harvesters[uid] = h
		s.order = append(s.order, uid)
	}
	h.state = r.State
	h.strategy = r.Strategy
	h.resource = r.Resource
	h.gatherSpeed = r.GatherSpeed
	h.maxCarry = r.MaxCarry
	h.currCarry = r.CurrCarry
	h.source = r.Source
	h.storage = r.Storage
	h.reacquireRadius = r.ReacquireRadius
	h.lastKnownPos = r.LastKnownPos
	h.queued = r.Queued
}
