// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package save

import (
	"context"

	"github.com/duskward/legion/systems/combat"
	"github.com/duskward/legion/systems/construction"
	"github.com/duskward/legion/systems/harvest"
	"github.com/duskward/legion/systems/movement"
	"github.com/duskward/legion/systems/resource"
	"github.com/duskward/legion/systems/storage"
	"github.com/duskward/legion/world"
)

// SaveMovement appends the Movement component's count-headed block (spec
// §4.O), yielding cooperatively every 256 entities.
func SaveMovement(ctx context.Context, w *Writer, sys *movement.System, y *Yielder) error {
	if sys == nil {
		w.WriteCount("movement_count", 0)
		return w.Err()
	}
	entities := sys.Entities()
	w.WriteCount("movement_count", len(entities))
	for _, uid := range entities {
		r := sys.Export(uid)
		w.WriteInt("uid", int32(uid))
		w.WriteInt("state", int32(r.State))
		w.WriteVec2("dest", r.Dest)
		w.WriteInt("surround_target", int32(r.SurroundTarget))
		w.WriteFloat("surround_radius", r.SurroundRadius)
		w.WriteInt("range_target", int32(r.RangeTarget))
		w.WriteFloat("range_radius", r.RangeRadius)
		w.WriteQuat("turn_target", r.TurnTarget)
		w.WriteFloat("speed", r.Speed)
		w.WriteFloat("turn_rate", float32(r.TurnRate))
		w.WriteInt("rate", int32(r.Rate))
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return w.Err()
}

// LoadMovement reads a Movement component block previously written by
// SaveMovement.
func LoadMovement(ctx context.Context, r *Reader, sys *movement.System, y *Yielder) error {
	count := r.ReadCount("movement_count")
	for i := 0; i < count && r.Err() == nil; i++ {
		uid := world.UID(uint32(r.ReadInt("uid")))
		rec := movement.Record{
			State:          movement.State(r.ReadInt("state")),
			Dest:           r.ReadVec2("dest"),
			SurroundTarget: world.UID(uint32(r.ReadInt("surround_target"))),
			SurroundRadius: r.ReadFloat("surround_radius"),
			RangeTarget:    world.UID(uint32(r.ReadInt("range_target"))),
			RangeRadius:    r.ReadFloat("range_radius"),
			TurnTarget:     r.ReadQuat("turn_target"),
			Speed:          r.ReadFloat("speed"),
			TurnRate:       world.Angle(r.ReadFloat("turn_rate")),
			Rate:           movement.TickRate(r.ReadInt("rate")),
		}
		if r.Err() != nil {
			break
		}
		if sys != nil {
			sys.Import(uid, rec)
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return r.Err()
}

// SaveCombat appends the Combat component's count-headed block.
func SaveCombat(ctx context.Context, w *Writer, sys *combat.System, y *Yielder) error {
	if sys == nil {
		w.WriteCount("combat_count", 0)
		return w.Err()
	}
	entities := sys.Entities()
	w.WriteCount("combat_count", len(entities))
	for _, uid := range entities {
		r := sys.Export(uid)
		w.WriteInt("uid", int32(uid))
		w.WriteInt("state", int32(r.State))
		w.WriteInt("stance", int32(r.Stance))
		w.WriteInt("target", int32(r.Target))
		w.WriteFloat("hp", r.HP)
		w.WriteFloat("max_hp", r.MaxHP)
		w.WriteFloat("attack_range", r.AttackRange)
		w.WriteInt("reload", int32(r.Reload))
		w.WriteInt("reload_time", int32(r.ReloadTime))
		w.WriteFloat("damage", r.Damage)
		w.WriteBool("ranged", r.Ranged)
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return w.Err()
}

// LoadCombat reads a Combat component block previously written by
// SaveCombat.
func LoadCombat(ctx context.Context, r *Reader, sys *combat.System, y *Yielder) error {
	count := r.ReadCount("combat_count")
	for i := 0; i < count && r.Err() == nil; i++ {
		uid := world.UID(uint32(r.ReadInt("uid")))
		rec := combat.Record{
			State:       combat.State(r.ReadInt("state")),
			Stance:      combat.Stance(r.ReadInt("stance")),
			Target:      world.UID(uint32(r.ReadInt("target"))),
			HP:          r.ReadFloat("hp"),
			MaxHP:       r.ReadFloat("max_hp"),
			AttackRange: r.ReadFloat("attack_range"),
			Reload:      world.Ticks(uint32(r.ReadInt("reload"))),
			ReloadTime:  world.Ticks(uint32(r.ReadInt("reload_time"))),
			Damage:      r.ReadFloat("damage"),
			Ranged:      r.ReadBool("ranged"),
		}
		if r.Err() != nil {
			break
		}
		if sys != nil {
			sys.Import(uid, rec)
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return r.Err()
}

// SaveBuilding appends the Building component's count-headed block.
// Companion UIDs (progress model, markers) are written as references;
// restoring them into the active set is an external loader's job (spec
// §4.O: "tolerate being run against a pre-populated active set").
func SaveBuilding(ctx context.Context, w *Writer, sys *construction.System, y *Yielder) error {
	if sys == nil {
		w.WriteCount("building_count", 0)
		return w.Err()
	}
	entities := sys.Entities()
	w.WriteCount("building_count", len(entities))
	for _, uid := range entities {
		r := sys.Export(uid)
		w.WriteInt("uid", int32(uid))
		w.WriteInt("stage", int32(r.Stage))
		w.WriteVec3("obb_center", world.Vec3{X: r.OBB.Center.X, Z: r.OBB.Center.Z})
		w.WriteFloat("obb_half_x", r.OBB.HalfExtents.X)
		w.WriteFloat("obb_half_z", r.OBB.HalfExtents.Z)
		w.WriteFloat("obb_angle", float32(r.OBB.Rotation))
		w.WriteBool("blocked", r.Blocked)
		w.WriteInt("progress_model", int32(r.ProgressModel))
		w.WriteCount("marker_count", len(r.Markers))
		for _, m := range r.Markers {
			w.WriteInt("marker", int32(m))
		}
		w.WriteFloat("hp", r.HP)
		w.WriteFloat("max_hp", r.MaxHP)
		w.WriteFloat("build_speed", r.BuildSpeed)
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return w.Err()
}

// LoadBuilding reads a Building component block previously written by
// SaveBuilding.
func LoadBuilding(ctx context.Context, r *Reader, sys *construction.System, y *Yielder) error {
	count := r.ReadCount("building_count")
	for i := 0; i < count && r.Err() == nil; i++ {
		uid := world.UID(uint32(r.ReadInt("uid")))
		stage := construction.Stage(r.ReadInt("stage"))
		center := r.ReadVec3("obb_center")
		halfX := r.ReadFloat("obb_half_x")
		halfZ := r.ReadFloat("obb_half_z")
		angle := world.Angle(r.ReadFloat("obb_angle"))
		blocked := r.ReadBool("blocked")
		progressModel := world.UID(uint32(r.ReadInt("progress_model")))
		markerCount := r.ReadCount("marker_count")
		markers := make([]world.UID, 0, markerCount)
		for j := 0; j < markerCount && r.Err() == nil; j++ {
			markers = append(markers, world.UID(uint32(r.ReadInt("marker"))))
		}
		hp := r.ReadFloat("hp")
		maxHP := r.ReadFloat("max_hp")
		buildSpeed := r.ReadFloat("build_speed")
		if r.Err() != nil {
			break
		}
		if sys != nil {
			sys.Import(uid, construction.Record{
				Stage: stage,
				OBB: world.OBB{
					Center:      center.XZ(),
					HalfExtents: world.Vec2{X: halfX, Z: halfZ},
					Rotation:    angle,
				},
				Blocked:       blocked,
				ProgressModel: progressModel,
				Markers:       markers,
				HP:            hp,
				MaxHP:         maxHP,
				BuildSpeed:    buildSpeed,
			})
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return r.Err()
}

// SaveStorageSite appends the StorageSite component's count-headed block.
func SaveStorageSite(ctx context.Context, w *Writer, sys *storage.System, y *Yielder) error {
	if sys == nil {
		w.WriteCount("storage_count", 0)
		return w.Err()
	}
	entities := sys.Entities()
	w.WriteCount("storage_count", len(entities))
	for _, uid := range entities {
		r := sys.Export(uid)
		w.WriteInt("uid", int32(uid))
		w.WriteBool("use_alt", r.UseAlt)
		w.WriteBool("do_not_take", r.DoNotTake)
		w.WriteBool("do_not_take_land", r.DoNotTakeLand)
		w.WriteBool("do_not_take_water", r.DoNotTakeWater)
		w.WriteCount("resource_count", len(r.Resources))
		for _, res := range r.Resources {
			w.WriteString("resource_name", res.Name)
			w.WriteInt("resource_current", int32(res.Current))
			w.WriteInt("resource_capacity", int32(res.Capacity))
			w.WriteInt("resource_desired", int32(res.Desired))
			w.WriteInt("resource_alt_capacity", int32(res.AltCapacity))
			w.WriteInt("resource_alt_desired", int32(res.AltDesired))
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return w.Err()
}

// LoadStorageSite reads a StorageSite component block previously written
// by SaveStorageSite.
func LoadStorageSite(ctx context.Context, r *Reader, sys *storage.System, y *Yielder) error {
	count := r.ReadCount("storage_count")
	for i := 0; i < count && r.Err() == nil; i++ {
		uid := world.UID(uint32(r.ReadInt("uid")))
		rec := storage.Record{
			UseAlt:         r.ReadBool("use_alt"),
			DoNotTake:      r.ReadBool("do_not_take"),
			DoNotTakeLand:  r.ReadBool("do_not_take_land"),
			DoNotTakeWater: r.ReadBool("do_not_take_water"),
		}
		resourceCount := r.ReadCount("resource_count")
		for j := 0; j < resourceCount && r.Err() == nil; j++ {
			rec.Resources = append(rec.Resources, storage.ResourceRecord{
				Name:        r.ReadString("resource_name"),
				Current:     int(r.ReadInt("resource_current")),
				Capacity:    int(r.ReadInt("resource_capacity")),
				Desired:     int(r.ReadInt("resource_desired")),
				AltCapacity: int(r.ReadInt("resource_alt_capacity")),
				AltDesired:  int(r.ReadInt("resource_alt_desired")),
			})
		}
		if r.Err() != nil {
			break
		}
		if sys != nil {
			sys.Import(uid, rec)
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return r.Err()
}

// SaveResource appends the Resource component's count-headed block (the
// depletable resource-node table, spec §4.O's "Resource" component).
func SaveResource(ctx context.Context, w *Writer, sys *resource.System, y *Yielder) error {
	if sys == nil {
		w.WriteCount("resource_node_count", 0)
		return w.Err()
	}
	entities := sys.Entities()
	w.WriteCount("resource_node_count", len(entities))
	for _, uid := range entities {
		r := sys.Export(uid)
		w.WriteInt("uid", int32(uid))
		w.WriteCount("amount_count", len(r.Amounts))
		for _, a := range r.Amounts {
			w.WriteString("amount_name", a.Name)
			w.WriteInt("amount", int32(a.Amount))
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return w.Err()
}

// LoadResource reads a Resource component block previously written by
// SaveResource.
func LoadResource(ctx context.Context, r *Reader, sys *resource.System, y *Yielder) error {
	count := r.ReadCount("resource_node_count")
	for i := 0; i < count && r.Err() == nil; i++ {
		uid := world.UID(uint32(r.ReadInt("uid")))
		var rec resource.Record
		amountCount := r.ReadCount("amount_count")
		for j := 0; j < amountCount && r.Err() == nil; j++ {
			rec.Amounts = append(rec.Amounts, resource.ResourceRecord{
				Name:   r.ReadString("amount_name"),
				Amount: int(r.ReadInt("amount")),
			})
		}
		if r.Err() != nil {
			break
		}
		if sys != nil {
			sys.Import(uid, rec)
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return r.Err()
}

// SaveHarvester appends the Harvester component's count-headed block.
func SaveHarvester(ctx context.Context, w *Writer, sys *harvest.System, y *Yielder) error {
	if sys == nil {
		w.WriteCount("harvester_count", 0)
		return w.Err()
	}
	entities := sys.Entities()
	w.WriteCount("harvester_count", len(entities))
	for _, uid := range entities {
		r := sys.Export(uid)
		w.WriteInt("uid", int32(uid))
		w.WriteInt("state", int32(r.State))
		w.WriteInt("strategy", int32(r.Strategy))
		w.WriteString("resource", r.Resource)
		w.WriteFloat("gather_speed", r.GatherSpeed)
		w.WriteInt("max_carry", int32(r.MaxCarry))
		w.WriteInt("curr_carry", int32(r.CurrCarry))
		w.WriteInt("source", int32(r.Source))
		w.WriteInt("storage", int32(r.Storage))
		w.WriteFloat("reacquire_radius", r.ReacquireRadius)
		w.WriteVec2("last_known_pos", r.LastKnownPos)
		w.WriteInt("queued_kind", int32(r.Queued.Kind))
		w.WriteString("queued_resource", r.Queued.Resource)
		w.WriteInt("queued_source", int32(r.Queued.Source))
		w.WriteInt("queued_target", int32(r.Queued.Target))
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return w.Err()
}

// LoadHarvester reads a Harvester component block previously written by
// SaveHarvester.
func LoadHarvester(ctx context.Context, r *Reader, sys *harvest.System, y *Yielder) error {
	count := r.ReadCount("harvester_count")
	for i := 0; i < count && r.Err() == nil; i++ {
		uid := world.UID(uint32(r.ReadInt("uid")))
		rec := harvest.Record{
			State:           harvest.State(r.ReadInt("state")),
			Strategy:        harvest.Strategy(r.ReadInt("strategy")),
			Resource:        r.ReadString("resource"),
			GatherSpeed:     r.ReadFloat("gather_speed"),
			MaxCarry:        int(r.ReadInt("max_carry")),
			CurrCarry:       int(r.ReadInt("curr_carry")),
			Source:          world.UID(uint32(r.ReadInt("source"))),
			Storage:         world.UID(uint32(r.ReadInt("storage"))),
			ReacquireRadius: r.ReadFloat("reacquire_radius"),
			LastKnownPos:    r.ReadVec2("last_known_pos"),
		}
		rec.Queued.Kind = harvest.CommandKind(r.ReadInt("queued_kind"))
		rec.Queued.Resource = r.ReadString("queued_resource")
		rec.Queued.Source = world.UID(uint32(r.ReadInt("queued_source")))
		rec.Queued.Target = world.UID(uint32(r.ReadInt("queued_target")))
		if r.Err() != nil {
			break
		}
		if sys != nil {
			sys.Import(uid, rec)
		}
		if err := y.Tick(ctx); err != nil {
			return err
		}
	}
	return r.Err()
}

// SaveBuilderCount writes the Builder component's count header as zero:
// no subsystem in this core owns a dedicated builder-order queue (the
// Automation package's SetBuilderBusy is a direct external toggle instead,
// see its doc comment), so there is no per-entity Builder row to persist.
// The header still appears on the wire so a reader walking the stream
// sequentially sees every component named in spec §4.O.
func SaveBuilderCount(w *Writer) error {
	w.WriteCount("builder_count", 0)
	return w.Err()
}

// LoadBuilderCount consumes the Builder component's (always empty) count
// header written by SaveBuilderCount.
func LoadBuilderCount(r *Reader) error {
	r.ReadCount("builder_count")
	return r.Err()
}
