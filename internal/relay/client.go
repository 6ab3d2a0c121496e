package relay

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxFrameSize = 64 << 10
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256

	// frameTimeout bounds the store and bus calls made for one frame.
	frameTimeout = 5 * time.Second
)

// Client is one authenticated websocket connection.
type Client struct {
	conn    *websocket.Conn
	userID  int64
	server  *Server
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(conn *websocket.Conn, userID int64, s *Server) *Client {
	return &Client{
		conn:    conn,
		userID:  userID,
		server:  s,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessagesPerSecond),
		send:    make(chan []byte, sendBuffer),
	}
}

// enqueue queues a frame without blocking. It reports false when the
// buffer is full or the client is already closed.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump handles inbound frames until the connection fails. It owns
// the read side of conn and removes the client from the hub on return.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.server.hub.Leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Debug("relay connection closed", zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			c.server.hub.countFrame("inbound", "rate_limited")
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.server.hub.countFrame("inbound", "malformed")
			continue
		}

		frameCtx, cancel := context.WithTimeout(ctx, frameTimeout)
		switch env.Event {
		case EventJoinChat:
			c.join(frameCtx, env.Data)
		case EventSendMessage:
			c.sendMessage(frameCtx, env.Data)
		default:
			c.server.hub.countFrame("inbound", "unknown_event")
		}
		cancel()
	}
}

func (c *Client) join(ctx context.Context, data json.RawMessage) {
	var id chatID
	if err := json.Unmarshal(data, &id); err != nil || id <= 0 {
		c.reject(EventJoinChat, "Invalid chat ID")
		return
	}

	chat, err := c.server.chats.GetByID(ctx, int64(id))
	if err != nil {
		c.server.logger.Error("failed to load chat", zap.Int64("chat_id", int64(id)), zap.Error(err))
		c.reject(EventJoinChat, "Failed to join chat")
		return
	}
	if chat == nil {
		c.reject(EventJoinChat, "Chat not found")
		return
	}
	if !chat.HasParticipant(c.userID) {
		c.reject(EventJoinChat, "Not a participant in this chat")
		return
	}

	c.server.hub.Join(chat.ID, c)
	c.server.hub.countFrame(EventJoinChat, "ok")
}

func (c *Client) sendMessage(ctx context.Context, data json.RawMessage) {
	var req sendMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		c.reject(EventSendMessage, "Invalid message")
		return
	}
	content := strings.TrimSpace(req.Content)
	if req.ChatID <= 0 || content == "" {
		c.server.hub.countFrame(EventSendMessage, "empty")
		return
	}
	id := int64(req.ChatID)
	if !c.server.hub.Joined(id, c) {
		c.reject(EventSendMessage, "Join the chat before sending")
		return
	}

	msg, err := c.server.messages.Create(ctx, id, c.userID, content)
	if err != nil {
		c.server.logger.Error("failed to store chat message", zap.Int64("chat_id", id), zap.Error(err))
		c.reject(EventSendMessage, "Failed to send message")
		return
	}
	c.server.hub.countFrame(EventSendMessage, "ok")
	c.server.deliver(ctx, *msg)
}

// reject tells the client why a frame was refused.
func (c *Client) reject(event, message string) {
	c.server.hub.countFrame(event, "rejected")
	frame, err := encode(EventError, errorData{Message: message})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// writePump owns the write side of conn: queued frames and keepalive
// pings. It returns when the send queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
