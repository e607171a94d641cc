// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Quat is a 3D rotation, used by the movement state machine's turning_to
// order (spec §4.E) where a 2D Angle is not expressive enough (e.g. an
// aircraft banking into a turn). Everything else in the core uses the
// cheaper Angle; Quat only appears at the movement/render boundary.
type Quat struct {
	mgl32.Quat
}

// QuatIdentity is "facing forward, level".
func QuatIdentity() Quat {
	return Quat{mgl32.QuatIdent()}
}

// QuatFromAngle builds a yaw-only rotation around the world Y axis,
// matching the ground-plane Angle convention used everywhere else.
func QuatFromAngle(angle Angle) Quat {
	return Quat{mgl32.QuatRotate(float32(angle), mgl32.Vec3{0, 1, 0})}
}

// Slerp spherically interpolates toward target by factor in [0, 1].
func (q Quat) Slerp(target Quat, factor float32) Quat {
	return Quat{mgl32.QuatSlerp(q.Quat, target.Quat, factor)}
}

// Angle extracts the yaw component as a ground-plane Angle.
func (q Quat) Angle() Angle {
	v := q.Rotate(mgl32.Vec3{1, 0, 0})
	return Angle(math32.Atan2(v[2], v[0]))
}
