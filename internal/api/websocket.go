package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/protrace/registry-engine/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for local dashboard
	},
}

// Event is the payload pushed to every subscribed dashboard client: one
// registration outcome, tagged so the client can distinguish accepted
// leaves from rejected duplicates without inspecting the result shape.
type Event struct {
	Type   string          `json:"type"`
	Result registry.Result `json:"result"`
}

// Hub maintains the set of active websocket clients and broadcasts
// registration outcomes to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan Event
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Event, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for event := range h.broadcast {
		message, err := json.Marshal(event)
		if err != nil {
			log.Printf("[ws] failed to marshal %s event: %v", event.Type, err)
			continue
		}

		h.mutex.Lock()
		for client := range h.clients {
			// Set write deadline to prevent blocked clients from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("New WebSocket client connected. Total clients: %d", len(h.clients))

	// Keep alive loop (we only care about pushing down, but we must read to handle disconnects)
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("WebSocket client disconnected. Total clients: %d", len(h.clients))
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast publishes a registration outcome to all connected clients,
// tagging it "accepted" or "rejected" for client-side filtering.
func (h *Hub) Broadcast(result registry.Result) {
	eventType := "accepted"
	if result.Rejected != nil {
		eventType = "rejected"
	}
	h.broadcast <- Event{Type: eventType, Result: result}
}
