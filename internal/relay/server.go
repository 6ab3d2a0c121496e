// Package relay is the chat websocket process: it authenticates
// connections, joins them to chat rooms after a participant check,
// stores inbound messages and fans stored messages out to the rooms.
package relay

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/excursia/internal/auth"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/observ"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

// Publisher puts a stored message on the shared chat bus. Every relay
// instance, this one included, receives it back through its
// subscription and broadcasts it to local rooms.
type Publisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

type Config struct {
	// MessagesPerSecond caps inbound frames per connection; excess
	// frames are dropped.
	MessagesPerSecond int
}

type Server struct {
	hub       *Hub
	tokens    *auth.Tokens
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	publisher Publisher
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *zap.Logger
	metrics   *observ.Metrics
}

// NewServer builds the websocket handler. publisher may be nil, in which
// case stored messages are broadcast to this instance's rooms only.
func NewServer(
	hub *Hub,
	tokens *auth.Tokens,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	publisher Publisher,
	cfg Config,
	logger *zap.Logger,
	metrics *observ.Metrics,
) *Server {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 10
	}
	return &Server{
		hub:       hub,
		tokens:    tokens,
		chats:     chats,
		messages:  messages,
		publisher: publisher,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
	}
}

// tokenFrom reads the bearer token from the token query parameter,
// falling back to the Authorization header.
func tokenFrom(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	t, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	return t
}

// Handle serves GET /ws. The token is checked before the upgrade so a
// bad token is a plain 401.
func (s *Server) Handle(c *gin.Context) {
	token := tokenFrom(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(conn, claims.UserID, s)
	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
		defer s.metrics.WSConnections.Dec()
	}
	s.logger.Debug("relay client connected", zap.Int64("user_id", claims.UserID))

	go client.writePump()
	client.readPump(c.Request.Context())
}

// deliver hands a stored message to the bus, or straight to the local
// hub when there is no bus or publishing fails.
func (s *Server) deliver(ctx context.Context, msg models.Message) {
	if s.publisher != nil {
		err := s.publisher.Publish(ctx, msg)
		if err == nil {
			return
		}
		s.logger.Warn("chat bus publish failed, broadcasting locally",
			zap.Int64("message_id", msg.ID),
			zap.Error(err),
		)
	}
	s.hub.Broadcast(msg)
}

// Router exposes /ws next to the health and metrics endpoints.
func (s *Server) Router(health func(ctx context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(s.logger))
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	r.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", s.Handle)
	return r
}
