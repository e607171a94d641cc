// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Pi is half of a full turn, in the same units as Angle.
const Pi Angle = math32.Pi

// Angle is a heading in radians. The methods that wrap it (Diff,
// ClampMagnitude, Lerp, Inv) return values in [-Pi, Pi).
//
// The teacher represents Angle as a 2-byte fixed-point value to save wire
// bytes in a networked client protocol; this core has no wire budget for
// headings (§6 only mandates a tagged key/value save stream, not a
// bit-packed one) so Angle is a plain float32. See DESIGN.md.
type Angle float32

func (angle Angle) wrapped() Angle {
	const tau = 2 * math32.Pi
	a := math32.Mod(float32(angle)+math32.Pi, tau)
	if a < 0 {
		a += tau
	}
	return Angle(a - math32.Pi)
}

// Vec2 returns the unit direction vector on the ground plane.
func (angle Angle) Vec2() Vec2 {
	return Vec2{X: math32.Cos(float32(angle)), Z: math32.Sin(float32(angle))}
}

// Diff returns the signed shortest rotation from other to angle.
func (angle Angle) Diff(other Angle) Angle {
	return (angle - other).wrapped()
}

// ClampMagnitude clamps the angle's magnitude to m, preserving sign.
func (angle Angle) ClampMagnitude(m Angle) Angle {
	w := angle.wrapped()
	if w < -m {
		return -m
	}
	if w > m {
		return m
	}
	return w
}

// Lerp rotates factor of the way from angle toward other, taking the
// shorter path.
func (angle Angle) Lerp(other Angle, factor float32) Angle {
	return (angle + Angle(float32(other.Diff(angle))*factor)).wrapped()
}

func (angle Angle) Abs() float32 {
	return math32.Abs(float32(angle.wrapped()))
}

// Inv returns the opposite heading.
func (angle Angle) Inv() Angle {
	return (angle + Pi).wrapped()
}

func (angle Angle) String() string {
	return fmt.Sprintf("%.1f degrees", float32(angle)*(180/math32.Pi))
}
