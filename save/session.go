// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package save

import (
	"github.com/google/uuid"

	"github.com/duskward/legion/eventbus"
	"github.com/duskward/legion/world"
)

// CameraState is the opaque camera record the save stream carries (spec
// §4.O lists "camera" among the header records). Camera controllers are
// explicitly out of scope for this core (spec §1 "Out of scope"); this
// struct exists only so a save file has somewhere to round-trip whatever
// the external camera controller last reported, not to give the core any
// opinion about camera behavior.
type CameraState struct {
	Position world.Vec3
	Yaw      world.Angle
	Pitch    world.Angle
}

// AnimationState is the collaborator for the Animation contract's render
// state (spec §6: "Animation: add/remove(uid), render_state(uid) →
// (njoints, pose, invbind), add_time_delta(uid,ms)"). Animation is an
// external collaborator exporting and importing an opaque per-entity blob.
// Nothing in the save package calls it: neither the Header nor Save/Restore
// carries animation state.
type AnimationState interface {
	Export(uid world.UID) []byte
	Import(uid world.UID, data []byte)
}

// Header is the save stream's leading section: scheduler/sim-state,
// factions, diplomacy, camera, and selection, in that order. It carries
// no per-entity animation state. SessionID identifies the save
// file itself (a cloudstore key, a log correlation id), not any entity
// or faction in the simulation; a zero SessionID means "none assigned".
type Header struct {
	SessionID uuid.UUID
	Tick      world.Ticks
	SimState  eventbus.SimState
	Factions  []FactionRecord
	Diplomacy []DiplomacyRecord
	Camera    CameraState
	Selection []world.UID
}

// FactionRecord is one faction's persisted row.
type FactionRecord struct {
	ID               world.FactionID
	Name             string
	R, G, B          uint8
	PlayerControlled bool
}

// DiplomacyRecord is one ordered pair's persisted stance, written only for
// A < B (above the diagonal) since Diplomacy.Set always mirrors both
// orderings on load (spec §3 invariant: "diplomacy is symmetric").
type DiplomacyRecord struct {
	A, B  world.FactionID
	Stance world.Stance
}

// WriteHeader appends the Header's records to w.
func WriteHeader(w *Writer, h Header) {
	w.WriteString("session_id", h.SessionID.String())
	w.WriteInt("tick", int32(h.Tick))
	w.WriteInt("sim_state", int32(h.SimState))

	w.WriteCount("faction_count", len(h.Factions))
	for _, f := range h.Factions {
		w.WriteInt("faction_id", int32(f.ID))
		w.WriteString("faction_name", f.Name)
		w.WriteInt("faction_r", int32(f.R))
		w.WriteInt("faction_g", int32(f.G))
		w.WriteInt("faction_b", int32(f.B))
		w.WriteBool("faction_player_controlled", f.PlayerControlled)
	}

	w.WriteCount("diplomacy_count", len(h.Diplomacy))
	for _, d := range h.Diplomacy {
		w.WriteInt("diplomacy_a", int32(d.A))
		w.WriteInt("diplomacy_b", int32(d.B))
		w.WriteInt("diplomacy_stance", int32(d.Stance))
	}

	w.WriteVec3("camera_position", h.Camera.Position)
	w.WriteFloat("camera_yaw", float32(h.Camera.Yaw))
	w.WriteFloat("camera_pitch", float32(h.Camera.Pitch))

	w.WriteCount("selection_count", len(h.Selection))
	for _, uid := range h.Selection {
		w.WriteInt("selection_uid", int32(uid))
	}
}

// ReadHeader reads a Header previously written by WriteHeader.
func ReadHeader(r *Reader) Header {
	var h Header
	h.SessionID, _ = uuid.Parse(r.ReadString("session_id"))
	h.Tick = world.Ticks(uint32(r.ReadInt("tick")))
	h.SimState = eventbus.SimState(r.ReadInt("sim_state"))

	factionCount := r.ReadCount("faction_count")
	for i := 0; i < factionCount && r.Err() == nil; i++ {
		var f FactionRecord
		f.ID = world.FactionID(r.ReadInt("faction_id"))
		f.Name = r.ReadString("faction_name")
		f.R = uint8(r.ReadInt("faction_r"))
		f.G = uint8(r.ReadInt("faction_g"))
		f.B = uint8(r.ReadInt("faction_b"))
		f.PlayerControlled = r.ReadBool("faction_player_controlled")
		h.Factions = append(h.Factions, f)
	}

	diploCount := r.ReadCount("diplomacy_count")
	for i := 0; i < diploCount && r.Err() == nil; i++ {
		var d DiplomacyRecord
		d.A = world.FactionID(r.ReadInt("diplomacy_a"))
		d.B = world.FactionID(r.ReadInt("diplomacy_b"))
		d.Stance = world.Stance(r.ReadInt("diplomacy_stance"))
		h.Diplomacy = append(h.Diplomacy, d)
	}

	h.Camera.Position = r.ReadVec3("camera_position")
	h.Camera.Yaw = world.Angle(r.ReadFloat("camera_yaw"))
	h.Camera.Pitch = world.Angle(r.ReadFloat("camera_pitch"))

	selectionCount := r.ReadCount("selection_count")
	for i := 0; i < selectionCount && r.Err() == nil; i++ {
		h.Selection = append(h.Selection, world.UID(uint32(r.ReadInt("selection_uid"))))
	}

	return h
}

// FactionsToHeader snapshots factions/diplomacy into the Header's
// serializable form.
func FactionsToHeader(factions *world.Factions) ([]FactionRecord, []DiplomacyRecord) {
	var fr []FactionRecord
	var dr []DiplomacyRecord
	diplo := factions.Diplomacy()
	for id := world.FactionID(0); int(id) < world.MaxFactions; id++ {
		f, ok := factions.Get(id)
		if !ok {
			continue
		}
		fr = append(fr, FactionRecord{ID: id, Name: f.Name, R: f.Color.R, G: f.Color.G, B: f.Color.B, PlayerControlled: f.PlayerControlled})
		for other := id + 1; int(other) < world.MaxFactions; other++ {
			if _, ok := factions.Get(other); !ok {
				continue
			}
			dr = append(dr, DiplomacyRecord{A: id, B: other, Stance: diplo.Get(id, other)})
		}
	}
	return fr, dr
}

// RestoreFactions writes Header-sourced faction/diplomacy records back
// into factions. Tolerant of factions already holding entries restored by
// an external loader, since Add rejects an already-present id; those
// errors are intentionally discarded here rather than surfaced, matching
// spec §4.O's "tolerate being run against a pre-populated active set".
func RestoreFactions(factions *world.Factions, fr []FactionRecord, dr []DiplomacyRecord) {
	for _, f := range fr {
		_ = factions.Add(f.ID, world.Faction{
			Name:             f.Name,
			Color:            world.Color{R: f.R, G: f.G, B: f.B},
			PlayerControlled: f.PlayerControlled,
		})
	}
	diplo := factions.Diplomacy()
	for _, d := range dr {
		diplo.Set(d.A, d.B, d.Stance)
	}
}
