// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package observer implements a read-only spectator/debug feed over
// websocket: every Render Workspace command drained on a tick is
// broadcast, as JSON, to every connected observer. This core's own
// scope (spec §1) never defines a client-facing transport, so this
// package is a supplemental addition rather than a distillation of a
// named module; it exists to give gorilla/websocket and
// json-iterator/go, both present in the teacher's own stack, a concrete
// place to run in this repo. Grounded on the teacher's
// socket_client.go: one goroutine per connection pumping an outbound
// channel, ping/pong keepalive, and Destroy-on-unresponsive-send.
package observer

import (
	"log"
	"net/http"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/gorilla/websocket"

	"github.com/duskward/legion/render"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// json is a jsoniter codec tuned the same way the teacher's own
// jsoniter.go configures its package-level encoder: 6-digit floats (a
// render command carries many Vec3/Angle fields) and HTML-escaping
// disabled, since this feed is never embedded in a <script> tag.
var json = jsoniter.Config{
	MarshalFloatWith6Digits: true,
	EscapeHTML:              false,
}.Froze()

// client is one connected spectator, mirroring socket_client.go's
// SocketClient: a send channel drained by a dedicated write goroutine,
// destroyed once the peer stops reading.
type client struct {
	conn *websocket.Conn
	send chan render.Command
	once sync.Once
}

func (c *client) destroy() {
	c.once.Do(func() {
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.destroy()
	}()
	for {
		select {
		case cmd, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(cmd); err != nil {
				log.Println("observer: encode error:", err)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards everything the peer sends; this feed is one-way.
// Still needed so the connection notices the peer going away (spec §4.N
// has no opinion on transport, but a dead connection must stop
// consuming Broadcast's fan-out).
func (c *client) readPump() {
	defer c.destroy()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

// Hub fans out render.Command values to every connected spectator.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty spectator Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ServeHTTP upgrades r into a spectator websocket connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("observer: upgrade error:", err)
		return
	}
	c := &client{conn: conn, send: make(chan render.Command, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go c.writePump()
	go c.readPump()
}

// Broadcast pushes cmd to every currently connected spectator, dropping
// it for any client whose send buffer is still full rather than
// blocking the caller (the same "not responsive" posture as
// SocketClient.Send).
func (h *Hub) Broadcast(cmd render.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- cmd:
		default:
			delete(h.clients, c)
			go c.destroy()
		}
	}
}
