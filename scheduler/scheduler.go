// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler implements the Tick Scheduler (spec §4.D): a wall-clock
// timer that drives update phases, emits sub-multiple-rate tick events, and
// manages simstate transitions at frame boundaries. Grounded on the
// teacher's hub.go run() loop, whose update case computes a timeDelta from
// a time.Ticker, converts it to a tick count, and calls the physics/update
// pair every tick — generalized here from "one fixed update call" into a
// per-entity-subsystem updater list plus the sub-rate tick fan-out spec §6
// names (60/30/20/15/10/1 Hz).
package scheduler

import (
	"context"
	"time"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// Updater is anything the scheduler drives once per 60 Hz frame. dt is the
// wall-clock delta since the previous frame (already pause-adjusted); tick
// is the scheduler's monotonically increasing tick counter.
type Updater interface {
	Update(dt time.Duration, tick world.Ticks)
}

// UpdaterFunc adapts a plain function to Updater.
type UpdaterFunc func(dt time.Duration, tick world.Ticks)

func (f UpdaterFunc) Update(dt time.Duration, tick world.Ticks) { f(dt, tick) }

// Scheduler drives the simulation's fixed-rate update loop. The zero value
// is not usable; use New.
type Scheduler struct {
	bus    *eventbus.Bus
	ticker *time.Ticker

	updaters []Updater

	tick       world.Ticks
	lastFrame  time.Time
	pauseAccum time.Duration

	currentState   eventbus.SimState
	requestedState eventbus.SimState
}

// New creates a Scheduler that drains/dispatches events through bus and
// ticks at world.TickPeriod (60 Hz, spec §4.D).
func New(bus *eventbus.Bus) *Scheduler {
	return &Scheduler{
		bus:    bus,
		ticker: time.NewTicker(world.TickPeriod),
	}
}

// AddUpdater registers an updater to run every frame, in registration
// order, during phase (3) of the tick (spec §4.D: "runs component
// updaters").
func (s *Scheduler) AddUpdater(u Updater) {
	s.updaters = append(s.updaters, u)
}

// SetSimState records a requested simstate change, applied at the next
// frame boundary rather than immediately (spec §4.D).
func (s *Scheduler) SetSimState(state eventbus.SimState) {
	s.requestedState = state
}

// SimState returns the currently applied simstate.
func (s *Scheduler) SimState() eventbus.SimState {
	return s.currentState
}

// Tick returns the current tick counter.
func (s *Scheduler) Tick() world.Ticks {
	return s.tick
}

// Run blocks, driving one frame per tick of the internal ticker, until ctx
// is canceled. Grounded on the teacher's hub.run() select loop, simplified
// to a single ticker case since the scheduler owns no client channels.
func (s *Scheduler) Run(ctx context.Context) {
	s.lastFrame = time.Now()
	for {
		select {
		case <-ctx.Done():
			s.ticker.Stop()
			return
		case now := <-s.ticker.C:
			s.frame(now)
		}
	}
}

// Step drives exactly one frame, for callers (tests, deterministic replay)
// that want to advance the scheduler without a live ticker.
func (s *Scheduler) Step(now time.Time) {
	if s.lastFrame.IsZero() {
		s.lastFrame = now
	}
	s.frame(now)
}

func (s *Scheduler) frame(now time.Time) {
	s.applySimStateTransition()

	rawDelta := now.Sub(s.lastFrame)
	s.lastFrame = now

	if s.currentState == eventbus.PausedFull {
		// Fully paused: accumulate the delta so resuming doesn't treat the
		// pause itself as elapsed simulation time (spec §4.D "animation and
		// combat clocks accumulate a pause delta on resume").
		s.pauseAccum += rawDelta
		return
	}

	dt := rawDelta

	// (1) flush deferred events.
	s.bus.ServiceQueue()

	// (2) count ticks, emit sub-rate events at exact multiples.
	s.tick = s.tick.AddClamped(1)
	s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.UpdateStart, Payload: dt})
	s.emitSubRateTicks(dt)

	// (3) run component updaters.
	for _, u := range s.updaters {
		u.Update(dt, s.tick)
	}

	// (4) emit UPDATE_END.
	s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.UpdateEnd, Payload: dt})

	// (5) the render workspace swap is not done here: engine.New registers
	// an UPDATE_END handler that calls render.Workspace.Swap, so it runs
	// during step (4) (spec §4.N).
}

func (s *Scheduler) applySimStateTransition() {
	if s.requestedState == s.currentState {
		return
	}
	old := s.currentState
	s.currentState = s.requestedState
	s.bus.SetSimState(s.currentState)

	if old != eventbus.Running && s.currentState == eventbus.Running {
		// Time-deltas are communicated to dependent subsystems (audio,
		// animation, combat) on transition to RUNNING (spec §4.D), so
		// in-flight timers resume without drifting by the paused duration.
		delta := s.pauseAccum
		s.pauseAccum = 0
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.GameSimstateChanged, Payload: delta})
	} else {
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.GameSimstateChanged, Payload: s.currentState})
	}
}

const (
	rate30Hz = 2
	rate20Hz = 3
	rate15Hz = 4
	rate10Hz = 6
	rate1Hz  = 60
)

func (s *Scheduler) emitSubRateTicks(dt time.Duration) {
	t := uint32(s.tick)
	s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.Tick60Hz, Payload: dt})
	if t%rate30Hz == 0 {
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.Tick30Hz, Payload: dt * rate30Hz})
	}
	if t%rate20Hz == 0 {
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.Tick20Hz, Payload: dt * rate20Hz})
	}
	if t%rate15Hz == 0 {
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.Tick15Hz, Payload: dt * rate15Hz})
	}
	if t%rate10Hz == 0 {
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.Tick10Hz, Payload: dt * rate10Hz})
	}
	if t%rate1Hz == 0 {
		s.bus.NotifyImmediate(eventbus.Event{Kind: eventbus.Tick1Hz, Payload: dt * rate1Hz})
	}
}
