package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"gkgtrends/internal/eventbus"
	"gkgtrends/internal/models"

	"github.com/gorilla/websocket"
)

// Hub fans serialized trend updates out to connected WebSocket clients,
// applying each client's category filter at broadcast time.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan hubMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.Mutex
}

// hubMessage carries one serialized update plus the category it belongs
// to, so the hub can apply per-client subscription filters.
type hubMessage struct {
	category models.Category
	data     []byte
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	category models.Category
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan hubMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = struct{}{}
			h.mutex.Unlock()
		case client := <-h.unregister:
			h.mutex.Lock()
			h.drop(client)
			h.mutex.Unlock()
		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if !categoryMatches(client.category, msg.category) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow clients are dropped, not waited on.
					h.drop(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// drop removes a client and closes its send channel. Callers hold mutex;
// dropping an already-removed client is a no-op.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// categoryMatches applies a client's subscription filter to an event.
func categoryMatches(sub, evt models.Category) bool {
	return sub == "" || sub == models.CategoryAll || sub == evt
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleTrendsLive upgrades the request and streams matching trend
// updates until the peer goes away. ?category narrows the stream.
func (s *Server) handleTrendsLive(w http.ResponseWriter, r *http.Request) {
	cat := models.Category(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))))
	if cat != "" && cat != models.CategoryAll && !models.ValidCategory(cat) {
		writeAPIError(w, http.StatusBadRequest, "unknown category "+string(cat))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	client := &Client{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		category: cat,
	}
	s.hub.register <- client

	go client.writePump()
	client.readWait()

	s.hub.unregister <- client
	conn.Close()
}

// writePump drains the send channel onto the socket. A closed channel
// means the hub dropped this client; send a close frame and hang up.
func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readWait blocks until the peer closes or errors. Inbound frames are
// discarded; the stream is one-way.
func (c *Client) readWait() {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BroadcastMessage is the wire shape of one live update.
type BroadcastMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// pumpEvents forwards aggregation events from the bus into the hub.
func (s *Server) pumpEvents() {
	ch := make(chan eventbus.Event, 64)
	s.bus.Subscribe(eventbus.TypeTrendRealtime, ch)
	s.bus.Subscribe(eventbus.TypeTrendDaily, ch)

	for evt := range ch {
		data, err := json.Marshal(BroadcastMessage{Type: evt.Type, Payload: evt.Data})
		if err != nil {
			continue
		}
		s.hub.broadcast <- hubMessage{category: evt.Category, data: data}
	}
}
