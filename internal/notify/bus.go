package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

// Envelope is the wire frame for every published event.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// clientCommand is what subscribers send upstream. Joining a shop room is an
// explicit action; a bare connection receives nothing.
type clientCommand struct {
	Type   string `json:"type"`
	ShopID string `json:"shopId"`
}

// Hub is the room-scoped notification bus. Rooms are keyed by shop id and the
// membership table mutates only on join/leave and connection teardown.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Envelope
	done chan struct{}

	mu    sync.Mutex
	rooms map[string]struct{}
}

// NewHub builds the bus. Connections are admitted only when their Origin
// header matches allowedOrigin; an empty allowedOrigin admits everything
// (development mode).
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{
		rooms: make(map[string]map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return h
}

// ServeWS upgrades the connection and runs the client pumps. A mismatched
// origin is rejected by the upgrader before any room join can happen.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[notify] upgrade rejected: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan Envelope, sendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}

	go client.writePump()
	go client.readPump()
}

// PublishToShop delivers one event to every current member of the shop's
// room. Fire-and-forget: a subscriber whose buffer is full misses the event
// (the repository stays the source of truth) and the publisher never blocks.
func (h *Hub) PublishToShop(shopID, event string, payload interface{}) {
	h.mu.RLock()
	members := h.rooms[shopID]
	clients := make([]*Client, 0, len(members))
	for c := range members {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	env := Envelope{Event: event, Data: payload}
	for _, c := range clients {
		select {
		case c.send <- env:
		default:
			log.Printf("[notify] dropping %s for slow subscriber in shop %s", event, shopID)
		}
	}
}

// RoomSize reports the current member count of a shop room.
func (h *Hub) RoomSize(shopID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[shopID])
}

func (h *Hub) join(c *Client, shopID string) {
	if shopID == "" {
		return
	}
	h.mu.Lock()
	if h.rooms[shopID] == nil {
		h.rooms[shopID] = make(map[*Client]struct{})
	}
	h.rooms[shopID][c] = struct{}{}
	h.mu.Unlock()

	c.mu.Lock()
	c.rooms[shopID] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) leave(c *Client, shopID string) {
	h.mu.Lock()
	if members := h.rooms[shopID]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, shopID)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.rooms, shopID)
	c.mu.Unlock()
}

func (h *Hub) drop(c *Client) {
	c.mu.Lock()
	joined := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		joined = append(joined, room)
	}
	c.mu.Unlock()

	for _, room := range joined {
		h.leave(c, room)
	}
}

func (c *Client) readPump() {
	// The send channel is never closed: a publisher may hold a snapshot of
	// the room while the connection tears down. writePump exits via done.
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[notify] subscriber read error: %v", err)
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Printf("[notify] ignoring malformed command: %v", err)
			continue
		}

		switch cmd.Type {
		case "joinShopRoom":
			c.hub.join(c, cmd.ShopID)
		case "leaveShopRoom":
			c.hub.leave(c, cmd.ShopID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
