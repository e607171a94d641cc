// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package save implements the Save/Restore subsystem (spec §4.O): a
// self-delimiting tagged attribute stream (spec §6 "Persisted-state
// layout") carrying ordered records for the scheduler/sim-state header,
// factions, diplomacy, camera, selection (no per-entity animation state
// is written), and then a count-headed block per component (Movement,
// Combat, Building, Builder, StorageSite, Resource, Harvester).
// Grounded on the teacher's jsoniter.go custom encoder/decoder
// registration (one function per wire type, rather than reflection-driven
// marshaling) adapted from JSON to this tagged binary format, since the
// core's own Non-goals rule out committing to JSON/any particular
// serialization library for the save format itself.
package save

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/duskward/legion/world"
)

// Tag identifies a record's payload type on the wire (spec §6: "type-tag ∈
// {INT, FLOAT, BOOL, STRING, VEC2, VEC3, QUAT}").
type Tag uint8

const (
	TagInt Tag = iota
	TagFloat
	TagBool
	TagString
	TagVec2
	TagVec3
	TagQuat
)

// ErrMalformed is returned when a record's tag-string or type-tag doesn't
// match what the reader expected (spec §7: "malformed-input (save stream
// type-tag mismatch or out-of-range enum)"). Per spec §7's propagation
// policy, a caller reading ErrMalformed discards the partial state and
// falls back to SESSION_FAIL_LOAD rather than panicking.
var ErrMalformed = errors.New("save: malformed record")

// Writer appends tagged records to an underlying stream.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w. Every Write* call is a no-op once a prior one has
// failed; callers check Err once after a batch instead of after every
// call, matching the teacher's sync.Pool buffer-then-flush style in
// jsoniter.go's encodeUpdateContacts.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		w.err = err
		return
	}
	if _, err := io.WriteString(w.w, s); err != nil {
		w.err = err
	}
}

func (w *Writer) writeTag(tag Tag) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write([]byte{byte(tag)}); err != nil {
		w.err = err
	}
}

func (w *Writer) writeFloat32(v float32) {
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	if _, err := w.w.Write(buf[:]); err != nil {
		w.err = err
	}
}

func (w *Writer) header(name string, tag Tag) {
	w.writeString(name)
	w.writeTag(tag)
}

// WriteInt appends an INT record.
func (w *Writer) WriteInt(name string, v int32) {
	w.header(name, TagInt)
	if w.err != nil {
		return
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	if _, err := w.w.Write(buf[:]); err != nil {
		w.err = err
	}
}

// WriteFloat appends a FLOAT record.
func (w *Writer) WriteFloat(name string, v float32) {
	w.header(name, TagFloat)
	w.writeFloat32(v)
}

// WriteBool appends a BOOL record.
func (w *Writer) WriteBool(name string, v bool) {
	w.header(name, TagBool)
	if w.err != nil {
		return
	}
	b := byte(0)
	if v {
		b = 1
	}
	if _, err := w.w.Write([]byte{b}); err != nil {
		w.err = err
	}
}

// WriteString appends a STRING record.
func (w *Writer) WriteString(name, v string) {
	w.header(name, TagString)
	w.writeString(v)
}

// WriteVec2 appends a VEC2 record.
func (w *Writer) WriteVec2(name string, v world.Vec2) {
	w.header(name, TagVec2)
	w.writeFloat32(v.X)
	w.writeFloat32(v.Z)
}

// WriteVec3 appends a VEC3 record.
func (w *Writer) WriteVec3(name string, v world.Vec3) {
	w.header(name, TagVec3)
	w.writeFloat32(v.X)
	w.writeFloat32(v.Y)
	w.writeFloat32(v.Z)
}

// WriteQuat appends a QUAT record.
func (w *Writer) WriteQuat(name string, v world.Quat) {
	w.header(name, TagQuat)
	vec := v.Quat.V
	w.writeFloat32(v.Quat.W)
	w.writeFloat32(vec[0])
	w.writeFloat32(vec[1])
	w.writeFloat32(vec[2])
}

// WriteCount appends an INT record under name holding a count header for a
// following higher-level structure (spec §6: "a count INT followed by
// count records").
func (w *Writer) WriteCount(name string, n int) {
	w.WriteInt(name, int32(n))
}

// Reader consumes tagged records from an underlying stream, in the same
// order a matching Writer produced them.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered, if any (including ErrMalformed
// on a tag-string or type-tag mismatch).
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) readString() string {
	if r.err != nil {
		return ""
	}
	var lenBuf [2]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		r.err = err
		return ""
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
		return ""
	}
	return string(buf)
}

func (r *Reader) readTag() Tag {
	if r.err != nil {
		return 0
	}
	var buf [1]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.err = err
		return 0
	}
	return Tag(buf[0])
}

func (r *Reader) readFloat32() float32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.err = err
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
}

// expect reads a record's tag-string and type-tag, setting ErrMalformed if
// either doesn't match name/tag (spec §7 "malformed-input").
func (r *Reader) expect(name string, tag Tag) {
	if r.err != nil {
		return
	}
	gotName := r.readString()
	gotTag := r.readTag()
	if r.err != nil {
		return
	}
	if gotName != name || gotTag != tag {
		r.err = ErrMalformed
	}
}

// ReadInt reads an INT record expected to be named name.
func (r *Reader) ReadInt(name string) int32 {
	r.expect(name, TagInt)
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.err = err
		return 0
	}
	return int32(binary.LittleEndian.Uint32(buf[:]))
}

// ReadFloat reads a FLOAT record expected to be named name.
func (r *Reader) ReadFloat(name string) float32 {
	r.expect(name, TagFloat)
	return r.readFloat32()
}

// ReadBool reads a BOOL record expected to be named name.
func (r *Reader) ReadBool(name string) bool {
	r.expect(name, TagBool)
	if r.err != nil {
		return false
	}
	var buf [1]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		r.err = err
		return false
	}
	return buf[0] != 0
}

// ReadString reads a STRING record expected to be named name.
func (r *Reader) ReadString(name string) string {
	r.expect(name, TagString)
	return r.readString()
}

// ReadVec2 reads a VEC2 record expected to be named name.
func (r *Reader) ReadVec2(name string) world.Vec2 {
	r.expect(name, TagVec2)
	x := r.readFloat32()
	z := r.readFloat32()
	return world.Vec2{X: x, Z: z}
}

// ReadVec3 reads a VEC3 record expected to be named name.
func (r *Reader) ReadVec3(name string) world.Vec3 {
	r.expect(name, TagVec3)
	x := r.readFloat32()
	y := r.readFloat32()
	z := r.readFloat32()
	return world.Vec3{X: x, Y: y, Z: z}
}

// ReadQuat reads a QUAT record expected to be named name.
func (r *Reader) ReadQuat(name string) world.Quat {
	r.expect(name, TagQuat)
	w := r.readFloat32()
	x := r.readFloat32()
	y := r.readFloat32()
	z := r.readFloat32()
	q := world.QuatIdentity()
	q.Quat.W = w
	q.Quat.V[0] = x
	q.Quat.V[1] = y
	q.Quat.V[2] = z
	return q
}

// ReadCount reads a count header written by WriteCount.
func (r *Reader) ReadCount(name string) int {
	return int(r.ReadInt(name))
}
