// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package eventbus implements the Event Bus (spec §4.C): a kind-partitioned
// publish/subscribe mechanism subsystems use to react to each other without
// importing each other. It is grounded on the teacher's hub.go dispatch loop
// (inbound/outbound message routing by kind) and message.go's sum-type
// message shape, generalized from a two-party client/server channel to an
// in-process many-subscriber bus.
package eventbus

import (
	"log"

	"github.com/duskward/legion/world"
)

// SimState mirrors the Tick Scheduler's run state (spec §4.D) so handlers
// can be gated without the eventbus package importing scheduler.
type SimState uint8

const (
	Running SimState = iota
	PausedUIRunning
	PausedFull
)

// SimStateMask selects which SimState values a handler wants to receive
// events in. A handler with mask 0 is treated as MaskRunning.
type SimStateMask uint8

const (
	MaskRunning         SimStateMask = 1 << Running
	MaskPausedUIRunning SimStateMask = 1 << PausedUIRunning
	MaskPausedFull      SimStateMask = 1 << PausedFull

	MaskAll = MaskRunning | MaskPausedUIRunning | MaskPausedFull
)

func (m SimStateMask) allows(s SimState) bool {
	if m == 0 {
		m = MaskRunning
	}
	return m&(1<<s) != 0
}

// Source distinguishes who raised an event, for handlers that care (spec
// §4.C: "events carry (kind, payload, source)").
type Source uint8

const (
	SourceEngine Source = iota
	SourceScript
	SourceNetwork
)

// Event is a single occurrence dispatched to subscribers of its Kind.
// Entity is world.NONE for events with no single subject.
type Event struct {
	Kind    Kind
	Payload interface{}
	Source  Source
	Entity  world.UID
}

// Handler is anything invokable with an Event. Native handlers are plain
// Go closures; Scripted handlers wrap a dynamically dispatched callable
// (spec §9 "Dynamic dispatch / duck typing") whose failures are logged and
// swallowed rather than aborting dispatch.
type Handler interface {
	Invoke(ev Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ev Event) error

func (f HandlerFunc) Invoke(ev Event) error { return f(ev) }

// SubscriptionID identifies a registered handler for later Unregister.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	kind    Kind
	uid     world.UID // world.NONE for a global (non-entity-filtered) subscription
	handler Handler
	mask    SimStateMask
}

// Bus is the Event Bus. The zero value is not usable; use New.
type Bus struct {
	handlers map[Kind][]*subscription
	nextID   SubscriptionID
	simState SimState
	queue    []Event

	// Logger receives one line per swallowed Scripted handler error. Left
	// nil it defaults to the standard logger, matching the teacher's log.go
	// fallback behavior.
	Logger *log.Logger
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[Kind][]*subscription)}
}

// SetSimState sets the bus's current simstate, consulted at dispatch time
// to gate handlers by mask. The Tick Scheduler applies a requested simstate
// change at the next frame boundary and calls this then (spec §4.D).
func (b *Bus) SetSimState(s SimState) {
	b.simState = s
}

// Register adds a global (non-entity-filtered) handler for kind.
func (b *Bus) Register(kind Kind, handler Handler, mask SimStateMask) SubscriptionID {
	return b.register(kind, world.NONE, handler, mask)
}

// RegisterEntity adds a handler for kind that only fires for events whose
// Entity field equals uid.
func (b *Bus) RegisterEntity(kind Kind, uid world.UID, handler Handler, mask SimStateMask) SubscriptionID {
	return b.register(kind, uid, handler, mask)
}

func (b *Bus) register(kind Kind, uid world.UID, handler Handler, mask SimStateMask) SubscriptionID {
	b.nextID++
	id := b.nextID
	sub := &subscription{id: id, kind: kind, uid: uid, handler: handler, mask: mask}
	// Appending to the live slice is safe even mid-dispatch: dispatch
	// iterates a snapshot taken at dispatch start, so this mutation is only
	// observed by the next dispatch of this kind (spec §4.C).
	b.handlers[kind] = append(b.handlers[kind], sub)
	return id
}

// Unregister removes a previously registered handler. A no-op if id is
// unknown (already unregistered, or never existed).
func (b *Bus) Unregister(id SubscriptionID) {
	for kind, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			subs[i] = subs[len(subs)-1]
			b.handlers[kind] = subs[:len(subs)-1]
			return
		}
	}
}

// NotifyDeferred enqueues ev for dispatch on the next ServiceQueue call.
// Queue order is FIFO by enqueue order across all kinds (spec §4.C).
func (b *Bus) NotifyDeferred(ev Event) {
	b.queue = append(b.queue, ev)
}

// NotifyImmediate dispatches ev synchronously, bypassing the deferred
// queue. Used by subsystems that must observe an effect before returning
// control within the same call stack (spec §4.C "immediate notification").
func (b *Bus) NotifyImmediate(ev Event) {
	b.dispatch(ev)
}

// ServiceQueue dispatches every event enqueued via NotifyDeferred since the
// last call, in enqueue order. Events enqueued by a handler during this
// call are dispatched on the *next* ServiceQueue call, not appended to the
// batch currently draining, matching the teacher's hub.go "don't process
// what you just queued within the same pass" pattern.
func (b *Bus) ServiceQueue() {
	pending := b.queue
	b.queue = nil
	for _, ev := range pending {
		b.dispatch(ev)
	}
}

// Pending reports how many events are waiting for the next ServiceQueue.
func (b *Bus) Pending() int {
	return len(b.queue)
}

func (b *Bus) dispatch(ev Event) {
	// Snapshot so that Register/Unregister calls made by a handler during
	// this dispatch take effect only on the next dispatch of this kind
	// (spec §4.C).
	subs := b.handlers[ev.Kind]
	snapshot := make([]*subscription, len(subs))
	copy(snapshot, subs)

	for _, sub := range snapshot {
		if sub.uid != world.NONE && sub.uid != ev.Entity {
			continue
		}
		if !sub.mask.allows(b.simState) {
			continue
		}
		if err := sub.handler.Invoke(ev); err != nil {
			b.logger().Printf("eventbus: handler for kind %v (sub %d) returned error: %v", ev.Kind, sub.id, err)
		}
	}
}

func (b *Bus) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.Default()
}
