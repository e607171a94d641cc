// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "errors"

// Error kinds from spec §7. Capacity/absent/duplicate on internal tables
// are programming errors per the propagation policy and are asserted
// (panic) at the call site rather than returned; these sentinels exist so
// the few places that DO return them (Registry.Add, Factions.Add, load
// failures) can be tested with errors.Is.
var (
	ErrDuplicate       = errors.New("duplicate")
	ErrAbsent          = errors.New("absent")
	ErrCapacity        = errors.New("capacity")
	ErrMalformedInput  = errors.New("malformed input")
	ErrStateViolation  = errors.New("state violation")
	ErrExternalFailure = errors.New("external failure")
)
