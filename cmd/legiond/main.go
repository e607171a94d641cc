// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command legiond runs a standalone entity simulation core: it
// constructs an engine.World, drives it on the tick scheduler, and
// serves a spectator websocket feed plus a JSON status endpoint.
// Grounded on the teacher's server/main.go: flag-parsed startup
// parameters, a background goroutine driving the simulation loop, and
// plain net/http route registration (no router/framework dependency).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/duskward/legion/config"
	"github.com/duskward/legion/engine"
	"github.com/duskward/legion/engine/observer"
	"github.com/duskward/legion/eventbus"
)

func main() {
	var (
		configPath string
		port       int
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file (optional, falls back to defaults)")
	flag.IntVar(&port, "port", 8193, "http service port")
	flag.Parse()

	cfg := engine.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal("config error: ", err)
		}
	}

	world := engine.New(cfg)
	hub := observer.NewHub()

	// Registered after engine.New's own UPDATE_END handler (which swaps
	// the workspace), so Drain here always sees the buffer just made
	// readable by that swap (spec §4.N: drain happens after swap).
	world.Bus.Register(eventbus.UpdateEnd, eventbus.HandlerFunc(func(eventbus.Event) error {
		for _, cmd := range world.Render.Drain() {
			hub.Broadcast(cmd)
		}
		return nil
	}), eventbus.MaskAll)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go world.Run(ctx)

	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tick":      world.Scheduler.Tick(),
			"sim_state": world.Scheduler.SimState(),
			"entities":  world.Registry.Count(),
		})
	})
	http.Handle("/spectate", hub)

	log.Println("legiond listening on port", port)
	log.Fatal(http.ListenAndServe(fmt.Sprint(":", port), nil))
}
