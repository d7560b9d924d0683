package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	hubBacklog   = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventMessage is the JSON form of a lifecycle message pushed to clients.
type EventMessage struct {
	Message  string `json:"message"`
	Code     int    `json:"code"`
	BufferID string `json:"buffer_id,omitempty"`
	Width    uint32 `json:"width"`
	Height   uint32 `json:"height"`
	Camera   string `json:"camera"`
	Time     int64  `json:"timestamp"`
}

// Hub fans lifecycle messages out to WebSocket clients. Publish is called
// on the engine tick and never blocks; a full backlog drops the message.
type Hub struct {
	logger  *zap.Logger
	events  chan []byte
	done    chan struct{}
	once    sync.Once
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	dropped uint64
}

// Dropped returns how many messages were discarded on a full backlog.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// NewHub creates a Hub and starts its broadcast goroutine.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger:  logger,
		events:  make(chan []byte, hubBacklog),
		done:    make(chan struct{}),
		clients: make(map[*websocket.Conn]bool),
	}
	go h.broadcast()
	return h
}

// Publish queues st for every connected client.
func (h *Hub) Publish(st extension.Status) {
	msg := EventMessage{
		Message: st.Message.String(),
		Code:    int(st.Message),
		Width:   st.Info.Width,
		Height:  st.Info.Height,
		Camera:  st.Info.Type.String(),
		Time:    st.Time.UnixMilli(),
	}
	if st.BufferID != uuid.Nil {
		msg.BufferID = st.BufferID.String()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.events <- data:
	case <-h.done:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcast goroutine and disconnects every client.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
		}
		h.clients = make(map[*websocket.Conn]bool)
		h.mu.Unlock()
	})
}

func (h *Hub) broadcast() {
	for {
		select {
		case <-h.done:
			return
		case data := <-h.events:
			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					h.logger.Debug("websocket write failed", zap.Error(err))
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		return false
	default:
	}
	h.clients[conn] = true
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// handleEvents upgrades to a WebSocket and streams lifecycle messages until
// the client goes away.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	if !s.hub.add(conn) {
		return
	}
	defer s.hub.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
