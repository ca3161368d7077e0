package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

const broadcastBuffer = 256

// Hub keeps the connected dashboard websockets and broadcasts events to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub. Call Run to start delivering.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub event loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish implements Publisher for locally connected dashboards.
func (h *Hub) Publish(ctx context.Context, topic model.Topic, payload interface{}) {
	data, err := encodeEnvelope(topic, payload)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to encode realtime event", zap.String("topic", string(topic)), zap.Error(err))
		observer.IncRealtimePublishFailure("websocket", string(topic))
		return
	}
	if !h.BroadcastRaw(data) {
		logger.FromContext(ctx).Warn("Realtime broadcast buffer full, dropping event", zap.String("topic", string(topic)))
		observer.IncRealtimePublishFailure("websocket", string(topic))
	}
}

// BroadcastRaw queues an already encoded envelope. It reports false when the
// buffer is full and the event was dropped.
func (h *Hub) BroadcastRaw(data []byte) bool {
	select {
	case h.broadcast <- data:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
