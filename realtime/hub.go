package realtime

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	cmodels "tabletop-chat/backend/conversation/models"
	"tabletop-chat/backend/pkg/logger"
	"tabletop-chat/backend/pkg/metrics"
)

const broadcastBuffer = 256

type delivery struct {
	gameID string
	data   []byte
}

// Hub tracks connected clients and the game rooms they joined
type Hub struct {
	clients   map[*Client]bool
	rooms     map[string]map[*Client]bool
	broadcast chan delivery
	mu        sync.RWMutex

	log         *logger.Logger
	metrics     *metrics.Metrics
	connections metric.Int64UpDownCounter
}

// NewHub creates a hub. Run must be running while clients are served.
func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	counter, err := otel.Meter("tabletop-chat/realtime").Int64UpDownCounter(
		"tabletop.ws.connections",
		metric.WithDescription("Open websocket connections"),
	)
	if err != nil {
		log.LogError(err, "Failed to create connection counter")
	}
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		broadcast:   make(chan delivery, broadcastBuffer),
		log:         log,
		metrics:     m,
		connections: counter,
	}
}

// Run dispatches broadcasts until ctx is done, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll(ctx)
			return

		case d := <-h.broadcast:
			h.deliver(ctx, d)
		}
	}
}

func (h *Hub) deliver(ctx context.Context, d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	targets := h.clients
	if d.gameID != "" {
		targets = h.rooms[d.gameID]
	}
	for client := range targets {
		select {
		case client.Send <- d.data:
		default:
			if h.remove(client) {
				h.addConnections(ctx, -1)
			}
			h.metrics.BroadcastDropped()
			h.log.Warn("Client removed due to blocked channel", "client_id", client.ID)
		}
	}
}

// remove drops a client from the hub and every room. Callers hold mu.
func (h *Hub) remove(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	for gameID, room := range h.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, gameID)
		}
	}
	close(client.Send)
	return true
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if h.remove(client) {
			h.addConnections(context.WithoutCancel(ctx), -1)
		}
	}
}

func (h *Hub) addConnections(ctx context.Context, n int64) {
	if h.connections != nil {
		h.connections.Add(ctx, n)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.addConnections(context.Background(), 1)
	h.log.Debug("Client registered", "client_id", client.ID)
}

// Unregister removes a client from the hub and closes its send queue
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	removed := h.remove(client)
	h.mu.Unlock()
	if removed {
		h.addConnections(context.Background(), -1)
		h.log.Debug("Client unregistered", "client_id", client.ID)
	}
}

// Join adds a registered client to the room of a game
func (h *Hub) Join(client *Client, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	room, ok := h.rooms[gameID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[gameID] = room
	}
	room[client] = true
}

// Leave removes a client from the room of a game
func (h *Hub) Leave(client *Client, gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[gameID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, gameID)
		}
	}
}

// RoomSize returns how many clients joined gameID
func (h *Hub) RoomSize(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

// Publish queues a raw frame for the room of gameID, or for every client
// when gameID is empty. It never blocks and reports whether the frame was
// queued.
func (h *Hub) Publish(gameID string, data []byte) bool {
	select {
	case h.broadcast <- delivery{gameID: gameID, data: data}:
		return true
	default:
		h.metrics.BroadcastDropped()
		h.log.Warn("Broadcast queue full, dropping event", "game_id", gameID)
		return false
	}
}

// EmitMessageCreated sends a message.created event to the message's room
func (h *Hub) EmitMessageCreated(msg *cmodels.Message) {
	data, err := encodeMessageCreated(msg)
	if err != nil {
		h.log.LogError(err, "Failed to encode message event", "message_id", msg.ID)
		return
	}
	h.Publish(msg.GameID, data)
}
