// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render implements the Render Workspace handoff (spec §4.N): two
// double-buffered command workspaces, one written by the simulation thread
// and one drained by a render worker, swapped once per tick. Grounded on
// the teacher's hub.go single-producer update loop (one thread owns world
// state per tick, a render/broadcast pass consumes a finished snapshot)
// generalized from "broadcast to websocket clients" into an explicit
// alternating-ownership buffer pair.
package render

import (
	"errors"

	"github.com/duskward/legion/world"
)

// Visible is one entity's render-relevant snapshot for a frame.
type Visible struct {
	UID      world.UID
	Position world.Vec3
	Rotation world.Angle
}

// Snapshot is the static and animated visible-entity lists for one of the
// two visibility passes a frame computes (spec §4.N: cam_visible,
// light_visible).
type Snapshot struct {
	Static   []Visible
	Animated []Visible
}

// Command is one frame's render payload, pushed into the current
// workspace.
type Command struct {
	Tick        world.Ticks
	CamVisible  Snapshot
	LightVisible Snapshot
}

// ErrNotDrained is returned by Swap when the consumer side still has
// undrained commands (spec §4.N: "the simulation asserts the renderer's
// queue was drained").
var ErrNotDrained = errors.New("render: workspace swap attempted before consumer drained its queue")

// Workspace is the double-buffered command handoff. The simulation writes
// into ws[curr] via Push; a render worker reads the other buffer via
// Drain.
type Workspace struct {
	buffers [2][]Command
	curr    int
}

// New creates an empty Workspace, writing into buffer 0 first.
func New() *Workspace {
	return &Workspace{}
}

// Push appends cmd to the buffer the simulation is currently writing.
func (w *Workspace) Push(cmd Command) {
	w.buffers[w.curr] = append(w.buffers[w.curr], cmd)
}

// Drain returns and clears the consumer-side buffer (the one not
// currently being written), for the render worker to read after a swap.
func (w *Workspace) Drain() []Command {
	consumer := 1 - w.curr
	cmds := w.buffers[consumer]
	w.buffers[consumer] = nil
	return cmds
}

// Swap exchanges producer/consumer roles between the two buffers. It
// fails with ErrNotDrained if the consumer side still holds undrained
// commands, since swapping over them would silently discard a frame the
// renderer never saw.
func (w *Workspace) Swap() error {
	consumer := 1 - w.curr
	if len(w.buffers[consumer]) != 0 {
		return ErrNotDrained
	}
	w.curr = consumer
	return nil
}
