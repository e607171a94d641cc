// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package save

import (
	"bytes"
	"testing"

	"github.com/duskward/legion/world"
)

func TestStream_RoundTripsEveryTagType(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteInt("i", -7)
	w.WriteFloat("f", 1.5)
	w.WriteBool("b", true)
	w.WriteString("s", "hello")
	w.WriteVec2("v2", world.Vec2{X: 1, Z: 2})
	w.WriteVec3("v3", world.Vec3{X: 1, Y: 2, Z: 3})
	q := world.QuatIdentity()
	w.WriteQuat("q", q)
	if err := w.Err(); err != nil {
		t.Fatalf("write error: %v", err)
	}

	r := NewReader(&buf)
	if got := r.ReadInt("i"); got != -7 {
		t.Fatalf("expected -7, got %d", got)
	}
	if got := r.ReadFloat("f"); got != 1.5 {
		t.Fatalf("expected 1.5, got %v", got)
	}
	if got := r.ReadBool("b"); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	if got := r.ReadString("s"); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if got := r.ReadVec2("v2"); got.X != 1 || got.Z != 2 {
		t.Fatalf("expected {1,2}, got %+v", got)
	}
	if got := r.ReadVec3("v3"); got.X != 1 || got.Y != 2 || got.Z != 3 {
		t.Fatalf("expected {1,2,3}, got %+v", got)
	}
	if got := r.ReadQuat("q"); got.Quat.W != q.Quat.W {
		t.Fatalf("expected identity quat, got %+v", got)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("read error: %v", err)
	}
}

func TestStream_NameMismatchSetsErrMalformed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteInt("actual", 1)

	r := NewReader(&buf)
	r.ReadInt("expected")
	if r.Err() != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", r.Err())
	}
}

func TestStream_TagMismatchSetsErrMalformed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteInt("x", 1)

	r := NewReader(&buf)
	r.ReadFloat("x")
	if r.Err() != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", r.Err())
	}
}

func TestStream_WriteAfterErrorIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.err = ErrMalformed
	w.WriteInt("x", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no bytes written after error, got %d", buf.Len())
	}
}

func TestStream_CountRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteCount("n", 42)
	r := NewReader(&buf)
	if got := r.ReadCount("n"); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
