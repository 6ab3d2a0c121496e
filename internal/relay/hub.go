package relay

import (
	"context"
	"sync"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/observ"
	"go.uber.org/zap"
)

// Hub tracks which local connections have joined which chat room and
// fans stored messages out to them. It knows nothing about Redis: Run
// drains whatever message stream the caller wires in.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}

	logger  *zap.Logger
	metrics *observ.Metrics
}

func NewHub(logger *zap.Logger, metrics *observ.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Join adds c to the chat's room. Joining twice is a no-op.
func (h *Hub) Join(chatID int64, c *Client) {
	room := Room(chatID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

// Joined reports whether c is in the chat's room.
func (h *Hub) Joined(chatID int64, c *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[Room(chatID)][c]
	return ok
}

// Leave removes c from every room and closes its send queue.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.closeSend()
}

// Broadcast delivers msg as a newMessage frame to every member of its
// room. Members whose send buffer is full are disconnected.
func (h *Hub) Broadcast(msg models.Message) {
	frame, err := encode(EventNewMessage, msg)
	if err != nil {
		h.logger.Error("failed to encode chat message", zap.Int64("message_id", msg.ID), zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[Room(msg.ChatID)] {
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("disconnecting slow consumer",
			zap.Int64("user_id", c.userID),
			zap.String("room", Room(msg.ChatID)),
		)
		h.countFrame(EventNewMessage, "slow_consumer")
		h.Leave(c)
	}
}

// Run broadcasts every message from msgs until ctx is cancelled or the
// stream closes.
func (h *Hub) Run(ctx context.Context, msgs <-chan models.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				h.logger.Warn("chat message stream closed")
				return
			}
			h.Broadcast(msg)
		}
	}
}

// Size returns the number of members in the chat's room.
func (h *Hub) Size(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[Room(chatID)])
}

func (h *Hub) countFrame(event, outcome string) {
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues(event, outcome).Inc()
	}
}
