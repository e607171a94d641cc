// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the engine's construction-time tuning
// (quadtree/fog/region sizing, evict delay) from a YAML file. Grounded
// on the reinforcement-learning pack example's FromYaml: a viper.New
// instance pointed at a single file/type/dir, Unmarshal into a plain
// struct, rather than viper's global package-level config singleton.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/duskward/legion/engine"
	"github.com/duskward/legion/world"
)

// File is the on-disk shape of an engine.Config. Field names use the
// struct tags yaml/viper expect; durations and ticks are expressed as
// plain numbers to keep the file free of Go-specific syntax.
type File struct {
	QuadtreeHalfWidth float32 `mapstructure:"quadtree_half_width"`
	FogWidth          int     `mapstructure:"fog_width"`
	FogHeight         int     `mapstructure:"fog_height"`
	FogTileSize       float32 `mapstructure:"fog_tile_size"`
	RegionChunkSize   float32 `mapstructure:"region_chunk_size"`
	GarrisonEvictTicks uint32 `mapstructure:"garrison_evict_ticks"`
	AutomationUnit    float32 `mapstructure:"automation_unit"`
	TerrainSeed       int64   `mapstructure:"terrain_seed"`
}

// Load reads path (a YAML file) into an engine.Config, starting from
// engine.DefaultConfig so an omitted field keeps its default rather than
// silently zeroing out.
func Load(path string) (engine.Config, error) {
	cfg := engine.DefaultConfig()

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	f := File{
		QuadtreeHalfWidth: cfg.QuadtreeHalfWidth,
		FogWidth:          cfg.FogWidth,
		FogHeight:         cfg.FogHeight,
		FogTileSize:       cfg.FogTileSize,
		RegionChunkSize:   cfg.RegionChunkSize,
		GarrisonEvictTicks: uint32(cfg.GarrisonEvictDelay),
		AutomationUnit:    cfg.AutomationUnit,
		TerrainSeed:       cfg.TerrainSeed,
	}
	if err := vp.Unmarshal(&f); err != nil {
		return cfg, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	cfg.QuadtreeHalfWidth = f.QuadtreeHalfWidth
	cfg.FogWidth = f.FogWidth
	cfg.FogHeight = f.FogHeight
	cfg.FogTileSize = f.FogTileSize
	cfg.RegionChunkSize = f.RegionChunkSize
	cfg.GarrisonEvictDelay = world.Ticks(f.GarrisonEvictTicks)
	cfg.AutomationUnit = f.AutomationUnit
	cfg.TerrainSeed = f.TerrainSeed
	return cfg, nil
}
