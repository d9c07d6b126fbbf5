package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Message is a frame destined for every connection of one edge
type Message struct {
	EdgeID uuid.UUID
	Data   []byte
}

// Hub tracks live edge connections and pushes wake-up frames to them.
// Only the Run goroutine mutates the connection map.
type Hub struct {
	connections map[uuid.UUID]map[*Client]struct{}
	mutex       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}

	logger Logger
}

// NewHub creates a new Hub instance
func NewHub(logger Logger) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run is the hub's main loop. On return every client send channel is closed.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("notify hub started")
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("notify hub stopping", "connections", h.ConnectionCount(), "edges", h.EdgeCount())
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastToEdge(message)
		}
	}
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; unknown or already dropped clients are ignored
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues a frame for an edge. Frames are dropped when the queue is full.
func (h *Hub) Publish(edgeID uuid.UUID, data []byte) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- &Message{EdgeID: edgeID, Data: data}:
		return true
	case <-h.done:
		return false
	default:
		h.logger.Warn("notify hub queue full, dropping frame", "edge_id", edgeID)
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients, ok := h.connections[client.edgeID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.connections[client.edgeID] = clients
	}
	clients[client] = struct{}{}

	h.logger.Debug("edge connected", "edge_id", client.edgeID, "connections_for_edge", len(clients))
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients := h.connections[client.edgeID]
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.connections, client.edgeID)
	}

	h.logger.Debug("edge disconnected", "edge_id", client.edgeID, "connections_for_edge", len(clients))
}

func (h *Hub) broadcastToEdge(message *Message) {
	h.mutex.RLock()
	var slow []*Client
	for client := range h.connections[message.EdgeID] {
		select {
		case client.send <- message.Data:
		default:
			slow = append(slow, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range slow {
		h.logger.Warn("edge send buffer full, dropping connection", "edge_id", client.edgeID)
		h.removeClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for edgeID, clients := range h.connections {
		for client := range clients {
			close(client.send)
		}
		delete(h.connections, edgeID)
	}
}

// ConnectionCount returns the total number of live connections
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.connections {
		count += len(clients)
	}
	return count
}

// EdgeCount returns the number of edges with at least one connection
func (h *Hub) EdgeCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}
