// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package save

import (
	"context"
	"io"

	"golang.org/x/sync/semaphore"

	"github.com/duskward/legion/systems/combat"
	"github.com/duskward/legion/systems/construction"
	"github.com/duskward/legion/systems/harvest"
	"github.com/duskward/legion/systems/movement"
	"github.com/duskward/legion/systems/resource"
	"github.com/duskward/legion/systems/storage"
)

// Systems bundles every component subsystem a full save/restore pass
// touches (spec §4.O). Any field may be nil if the caller's scenario
// doesn't use that component (e.g. no combatants ever spawned); its block
// is still written/read, always as an empty (count 0) section.
type Systems struct {
	Movement  *movement.System
	Combat    *combat.System
	Building  *construction.System
	Storage   *storage.System
	Resource  *resource.System
	Harvester *harvest.System
}

// yieldEvery bounds how many entities a component block processes before
// releasing the simulation-thread semaphore (spec §5).
const yieldEvery = 256

// Save writes Header h and every component block in Systems to w, in the
// order: scheduler/sim-state, factions, diplomacy, camera, selection (via
// h; no animation state is written), then Movement, Combat, Building,
// Builder, StorageSite, Resource, Harvester. sem represents simulation-thread
// ownership; the caller must hold it on entry (see Yielder).
func Save(ctx context.Context, w io.Writer, h Header, sys Systems, sem *semaphore.Weighted) error {
	sw := NewWriter(w)
	WriteHeader(sw, h)
	if err := sw.Err(); err != nil {
		return err
	}

	y := NewYielder(sem, yieldEvery)

	if err := SaveMovement(ctx, sw, sys.Movement, y); err != nil {
		return err
	}
	if err := SaveCombat(ctx, sw, sys.Combat, y); err != nil {
		return err
	}
	if err := SaveBuilding(ctx, sw, sys.Building, y); err != nil {
		return err
	}
	if err := SaveBuilderCount(sw); err != nil {
		return err
	}
	if err := SaveStorageSite(ctx, sw, sys.Storage, y); err != nil {
		return err
	}
	if err := SaveResource(ctx, sw, sys.Resource, y); err != nil {
		return err
	}
	if err := SaveHarvester(ctx, sw, sys.Harvester, y); err != nil {
		return err
	}
	return sw.Err()
}

// Restore reads a stream previously written by Save, restoring every
// component into sys and returning the Header. Each component's Import
// tolerates uid already existing in the destination subsystem's table
// (spec §4.O: "tolerate being run against a pre-populated active set").
// On ErrMalformed or a short read, the caller's policy is to discard
// everything Restore already applied and surface SESSION_FAIL_LOAD (spec
// §7) rather than attempt a partial resume; Restore itself does not undo
// component Imports already performed before the failing record, since the
// malformed-input propagation is a caller decision about whether the
// partial world state is still usable.
func Restore(ctx context.Context, r io.Reader, sys Systems, sem *semaphore.Weighted) (Header, error) {
	sr := NewReader(r)
	h := ReadHeader(sr)
	if err := sr.Err(); err != nil {
		return Header{}, err
	}

	y := NewYielder(sem, yieldEvery)

	if err := LoadMovement(ctx, sr, sys.Movement, y); err != nil {
		return Header{}, err
	}
	if err := LoadCombat(ctx, sr, sys.Combat, y); err != nil {
		return Header{}, err
	}
	if err := LoadBuilding(ctx, sr, sys.Building, y); err != nil {
		return Header{}, err
	}
	if err := LoadBuilderCount(sr); err != nil {
		return Header{}, err
	}
	if err := LoadStorageSite(ctx, sr, sys.Storage, y); err != nil {
		return Header{}, err
	}
	if err := LoadResource(ctx, sr, sys.Resource, y); err != nil {
		return Header{}, err
	}
	if err := LoadHarvester(ctx, sr, sys.Harvester, y); err != nil {
		return Header{}, err
	}
	return h, sr.Err()
}
