// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package save

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Yielder implements the cooperative yield point a long-running
// Save/Restore loop must hit between items (spec §5: "long-running
// save/restore runs as a cooperative task with yield points... Save/
// restore loops yield between items"). It holds the single weight
// representing simulation-thread ownership: the caller acquires sem
// before starting a save/load pass, and Tick periodically releases it
// (letting a waiting scheduler frame run) and reacquires before the loop
// continues, rather than blocking the simulation thread for the whole
// pass uninterrupted.
type Yielder struct {
	sem   *semaphore.Weighted
	every int
	count int
}

// NewYielder builds a Yielder that releases/reacquires sem once every
// `every` items. every <= 0 disables yielding (useful for small headers
// where a mid-pass yield buys nothing).
func NewYielder(sem *semaphore.Weighted, every int) *Yielder {
	return &Yielder{sem: sem, every: every}
}

// Tick counts one processed item and yields if the interval is reached.
// ctx cancellation during the reacquire aborts the loop, matching the
// eviction task's "abort if the carrier no longer exists" cancellation
// posture (spec §5) generalized to save/restore.
func (y *Yielder) Tick(ctx context.Context) error {
	y.count++
	if y.every <= 0 || y.count%y.every != 0 {
		return nil
	}
	y.sem.Release(1)
	return y.sem.Acquire(ctx, 1)
}
