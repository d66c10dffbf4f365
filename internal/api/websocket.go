package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dronewatch/incident-engine/internal/metrics"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// Hub maintains the set of active websocket clients and pushes incident
// events down to them. It implements the ingestion engine's notifier seam,
// so every created or merged incident reaches subscribed dashboards live.
type Hub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

// incidentEvent is the wire shape pushed to subscribers.
type incidentEvent struct {
	Type     string          `json:"type"`
	Action   string          `json:"action"` // created or merged
	Incident models.Incident `json:"incident"`
}

// NewHub builds a hub whose upgrade handshake accepts the given origins.
// An empty list allows every origin, matching the CORS middleware.
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				if origin == "" || len(allowed) == 0 {
					return true
				}
				return allowed[origin]
			},
		},
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Set write deadline to prevent blocked clients from hanging the hub
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			err := client.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
				metrics.WebsocketClientChange(-1)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe handles incoming websocket connections
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.mutex.Unlock()
	metrics.WebsocketClientChange(1)

	log.Printf("New WebSocket client connected. Total clients: %d", total)

	// Keep alive loop (we only care about pushing down, but we must read to handle disconnects)
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			metrics.WebsocketClientChange(-1)
			log.Printf("WebSocket client disconnected. Total clients: %d", remaining)
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

// NotifyIncident pushes one created or merged incident to all subscribers.
// Notifications are best effort.
func (h *Hub) NotifyIncident(action string, inc models.Incident) {
	payload, err := json.Marshal(incidentEvent{Type: "incident", Action: action, Incident: inc})
	if err != nil {
		log.Printf("Failed to encode incident event: %v", err)
		return
	}
	h.Broadcast(payload)
}

// Broadcast sends data to all connected clients. Never blocks the caller:
// when the queue is full the event is dropped.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		log.Println("Websocket broadcast queue full, dropping event")
	}
}
