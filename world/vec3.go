// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"github.com/chewxy/math32"
)

// Vec3 is a position or displacement in world space. Y is elevation and is
// derived from the map height field outside the core (see spec §3
// "Position"); only X and Z ever participate in spatial indexing.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Vec2 is the XZ ground-plane projection used by the quadtree, region
// circles/rects, and fog grid. Keeping it distinct from Vec3 makes clear
// which code paths are allowed to ignore elevation entirely.
type Vec2 struct {
	X float32 `json:"x"`
	Z float32 `json:"z"`
}

// XZ projects a Vec3 onto the ground plane.
func (v Vec3) XZ() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// WithY returns v with its elevation replaced, leaving X/Z untouched.
func (v Vec3) WithY(y float32) Vec3 {
	v.Y = y
	return v
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Mul(factor float32) Vec3 {
	return Vec3{X: v.X * factor, Y: v.Y * factor, Z: v.Z * factor}
}

func (v Vec3) AddScaled(o Vec3, factor float32) Vec3 {
	return Vec3{X: v.X + o.X*factor, Y: v.Y + o.Y*factor, Z: v.Z + o.Z*factor}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) LengthSquared() float32 {
	return v.Dot(v)
}

func (v Vec3) Length() float32 {
	return math32.Sqrt(v.LengthSquared())
}

func (v Vec3) Distance(o Vec3) float32 {
	return v.Sub(o).Length()
}

func (v Vec3) DistanceSquared(o Vec3) float32 {
	return v.Sub(o).LengthSquared()
}

func (v Vec3) Lerp(o Vec3, factor float32) Vec3 {
	return Vec3{X: Lerp(v.X, o.X, factor), Y: Lerp(v.Y, o.Y, factor), Z: Lerp(v.Z, o.Z, factor)}
}

func (v Vec3) Norm() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Vec2 methods: the ground-plane half of the same algebra, used heavily by
// the quadtree and region index which never need elevation.

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Z: v.Z + o.Z}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Z: v.Z - o.Z}
}

func (v Vec2) Mul(factor float32) Vec2 {
	return Vec2{X: v.X * factor, Z: v.Z * factor}
}

func (v Vec2) Dot(o Vec2) float32 {
	return v.X*o.X + v.Z*o.Z
}

func (v Vec2) LengthSquared() float32 {
	return v.Dot(v)
}

func (v Vec2) Length() float32 {
	return math32.Sqrt(v.LengthSquared())
}

func (v Vec2) Distance(o Vec2) float32 {
	return v.Sub(o).Length()
}

func (v Vec2) DistanceSquared(o Vec2) float32 {
	return v.Sub(o).LengthSquared()
}

func (v Vec2) Norm() Vec2 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Rot90 rotates 90 degrees clockwise, used for building OBB corner math.
func (v Vec2) Rot90() Vec2 {
	return Vec2{X: -v.Z, Z: v.X}
}

func (v Vec2) Angle() Angle {
	return Angle(math32.Atan2(v.Z, v.X))
}

// Lerp linearly interpolates between two float32s, factor in [0, 1].
func Lerp(a, b, factor float32) float32 {
	return a + (b-a)*factor
}
