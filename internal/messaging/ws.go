package messaging

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single push so one stalled client cannot hold a room.
const writeWait = 5 * time.Second

type wsEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type room struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// Hub fans conversation events out to connected websocket clients.
type Hub struct {
	mu       sync.Mutex
	rooms    map[string]*room
	upgrader websocket.Upgrader
}

// NewHub accepts websocket upgrades from the given origins. Requests without
// an Origin header (non-browser clients) are always accepted.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		rooms: make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// register holds the hub lock across lookup and insert so a concurrent
// unregister cannot retire the room in between.
func (h *Hub) register(conversationID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[conversationID]
	if !ok {
		r = &room{clients: make(map[*websocket.Conn]bool)}
		h.rooms[conversationID] = r
	}
	r.mu.Lock()
	r.clients[c] = true
	r.mu.Unlock()
}

// unregister drops c and forgets the room once it is empty.
func (h *Hub) unregister(conversationID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.clients, c)
	empty := len(r.clients) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, conversationID)
	}
}

// Subscribers reports how many clients are connected to a conversation.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.Lock()
	r, ok := h.rooms[conversationID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (h *Hub) broadcast(conversationID string, evt wsEvent) {
	h.mu.Lock()
	r, ok := h.rooms[conversationID]
	h.mu.Unlock()
	if !ok {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	// gorilla connections allow one concurrent writer; the room lock serialises them.
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(r.clients, c)
			_ = c.Close()
		}
	}
}

// BroadcastNewMessage publishes a message_new event for the conversation.
func (h *Hub) BroadcastNewMessage(conversationID string, message any) {
	h.broadcast(conversationID, wsEvent{Type: "message_new", Data: message})
}

// serve upgrades the request and blocks until the client goes away. Client
// frames are read and discarded; the socket is push only.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, conversationID, userID string) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.register(conversationID, ws)
	h.broadcast(conversationID, wsEvent{Type: "presence_join", Data: map[string]string{"userId": userID}})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(conversationID, ws)
	_ = ws.Close()
	h.broadcast(conversationID, wsEvent{Type: "presence_leave", Data: map[string]string{"userId": userID}})
	return nil
}
