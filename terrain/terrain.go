// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package terrain generates a deterministic height field from perlin noise,
// grounded on the teacher's terrain/noise package (two octaves of perlin
// noise combined into a land heightmap). Used here as the collaborator
// Fog of War's corner-occlusion test queries, rather than mk48's original
// purpose of driving collision/sculpting against a shoreline.
package terrain

import (
	"github.com/aquilax/go-perlin"

	"github.com/duskward/legion/world"
)

const (
	frequency = 0.02
	zoneFrequency = 0.003
)

// HeightField reports ground elevation at a world-space point. Fog of War
// (spec §4.K) uses it for line-of-sight corner occlusion testing.
type HeightField interface {
	HeightAt(xz world.Vec2) float32
}

// Generator is a perlin-noise-backed HeightField.
type Generator struct {
	hi   *perlin.Perlin
	lo   *perlin.Perlin
	seed int64
}

// New creates a Generator for the given seed.
func New(seed int64) *Generator {
	return &Generator{
		hi:   perlin.NewPerlin(1.5, 2.0, 4, seed),
		lo:   perlin.NewPerlin(2.5, 3.0, 4, seed+1),
		seed: seed,
	}
}

// HeightAt implements HeightField.
func (g *Generator) HeightAt(xz world.Vec2) float32 {
	x, z := float64(xz.X), float64(xz.Z)
	h := g.hi.Noise2D(x*frequency, z*frequency) * 50
	zone := clamp(g.lo.Noise2D(x*zoneFrequency, z*zoneFrequency)*2.0+0.4, 0, 1)
	return float32(h) * zone
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
