// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package observer

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duskward/legion/render"
	"github.com/duskward/legion/world"
)

func TestHub_BroadcastDeliversToConnectedSpectator(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine a moment to register the connection
	// before broadcasting, since ServeHTTP registers asynchronously
	// relative to the dialer completing its handshake.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	cmd := render.Command{
		Tick: 7,
		CamVisible: render.Snapshot{
			Static: []render.Visible{{UID: world.UID(1), Position: world.Vec3{X: 1, Y: 2, Z: 3}}},
		},
	}
	hub.Broadcast(cmd)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(data), `"Tick":7`) {
		t.Fatalf("expected tick 7 in payload, got %s", data)
	}
}

func TestHub_BroadcastDropsUnresponsiveClient(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(hub)
	defer server.Close()

	// Dial a real connection so the synthetic client below has a live
	// *websocket.Conn to close, but bypass ServeHTTP/writePump so
	// nothing ever drains its send channel.
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan render.Command)} // never drained
	hub.clients[c] = struct{}{}

	hub.Broadcast(render.Command{Tick: 1})
	hub.Broadcast(render.Command{Tick: 2})

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.clients[c]; ok {
		t.Fatal("expected unresponsive client to be dropped")
	}
}
