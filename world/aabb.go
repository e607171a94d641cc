// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "github.com/chewxy/math32"

// AABB is an axis-aligned rectangle on the ground plane (X, Z), stored as
// a corner position plus extent. Used by the quadtree, region rects, and
// as the broad-phase test before an OBB narrow-phase check.
type AABB struct {
	Vec2
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

func AABBFrom(x, z, width, height float32) AABB {
	return AABB{Vec2: Vec2{X: x, Z: z}, Width: width, Height: height}
}

// Intersects reports whether a and b overlap.
func (a AABB) Intersects(b AABB) bool {
	return a.X+a.Width >= b.X && a.X <= b.X+b.Width && a.Z+a.Height >= b.Z && a.Z <= b.Z+b.Height
}

// Contains reports whether a fully contains b.
func (a AABB) Contains(b AABB) bool {
	return a.X <= b.X && a.Z <= b.Z && a.X+a.Width >= b.X+b.Width && a.Z+a.Height >= b.Z+b.Height
}

// ContainsPoint reports whether p is inside a.
func (a AABB) ContainsPoint(p Vec2) bool {
	return p.X >= a.X && p.X <= a.X+a.Width && p.Z >= a.Z && p.Z <= a.Z+a.Height
}

// CornerCoordinates converts a center-anchored AABB to a corner-anchored one.
func (a AABB) CornerCoordinates() AABB {
	a.Vec2 = Vec2{X: a.X - a.Width*0.5, Z: a.Z - a.Height*0.5}
	return a
}

// Center returns the center point of a.
func (a AABB) Center() Vec2 {
	return Vec2{X: a.X + a.Width*0.5, Z: a.Z + a.Height*0.5}
}

// Quadrants splits a corner-anchored AABB into its four quadrants, in the
// fixed order NW(0), NE(1), SE(2), SW(3) that the quadtree depends on for
// stable child indexing.
func (a AABB) Quadrants() [4]AABB {
	var quadrants [4]AABB
	for i := range quadrants {
		quadrants[i] = a.Quadrant(i)
	}
	return quadrants
}

func (a AABB) Quadrant(quadrant int) AABB {
	pos := a.Vec2
	width := a.Width * 0.5
	height := a.Height * 0.5
	switch quadrant {
	case 1:
		pos.X += width
	case 2:
		pos.X += width
		pos.Z += height
	case 3:
		pos.Z += height
	}
	return AABB{Vec2: pos, Width: width, Height: height}
}

// RadiusAABB returns the corner-anchored bounding box of a circle.
func RadiusAABB(center Vec2, radius float32) AABB {
	return AABB{Vec2: center, Width: radius * 2, Height: radius * 2}.CornerCoordinates()
}

// OBB is an oriented bounding box on the ground plane, used for building
// footprints (navgrid blocker refcounting, spec §3 "Building state") and
// region rectangles that must rotate with their marker entity.
type OBB struct {
	Center      Vec2    `json:"center"`
	HalfExtents Vec2    `json:"halfExtents"`
	Rotation    Angle   `json:"rotation"`
}

// AABB returns the axis-aligned bounding box that contains the OBB,
// suitable for a broad-phase quadtree query before a precise corner test.
func (o OBB) AABB() AABB {
	cos := math32.Abs(math32.Cos(float32(o.Rotation)))
	sin := math32.Abs(math32.Sin(float32(o.Rotation)))
	halfW := o.HalfExtents.X*cos + o.HalfExtents.Z*sin
	halfH := o.HalfExtents.X*sin + o.HalfExtents.Z*cos
	return AABB{Vec2: Vec2{X: o.Center.X - halfW, Z: o.Center.Z - halfH}, Width: halfW * 2, Height: halfH * 2}
}

// Corners returns the four corners of the OBB in world space.
func (o OBB) Corners() [4]Vec2 {
	cos := math32.Cos(float32(o.Rotation))
	sin := math32.Sin(float32(o.Rotation))
	axisX := Vec2{X: cos, Z: sin}
	axisZ := axisX.Rot90()

	ex := axisX.Mul(o.HalfExtents.X)
	ez := axisZ.Mul(o.HalfExtents.Z)

	return [4]Vec2{
		o.Center.Add(ex).Add(ez),
		o.Center.Add(ex).Sub(ez),
		o.Center.Sub(ex).Sub(ez),
		o.Center.Sub(ex).Add(ez),
	}
}

// ContainsPoint is a narrow-phase test against the rotated rectangle.
func (o OBB) ContainsPoint(p Vec2) bool {
	rel := p.Sub(o.Center)
	cos := math32.Cos(float32(-o.Rotation))
	sin := math32.Sin(float32(-o.Rotation))
	local := Vec2{X: rel.X*cos - rel.Z*sin, Z: rel.X*sin + rel.Z*cos}
	return math32.Abs(local.X) <= o.HalfExtents.X && math32.Abs(local.Z) <= o.HalfExtents.Z
}
