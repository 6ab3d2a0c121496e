package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

// MessagePublisher fans a stored message out to live relay connections.
type MessagePublisher interface {
	Publish(ctx context.Context, msg models.Message) error
}

type ChatHandler struct {
	chats     repository.ChatRepository
	messages  repository.MessageRepository
	users     repository.UserRepository
	publisher MessagePublisher
	logger    *zap.Logger
}

// NewChatHandler builds the REST chat handler. publisher may be nil, in
// which case REST-sent messages reach relay clients only on reload.
func NewChatHandler(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	publisher MessagePublisher,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, users: users, publisher: publisher, logger: logger}
}

type startChatRequest struct {
	UserID int64 `json:"user_id"`
}

// Start handles POST /chats/start. Either participant can start the
// chat; both get the same row back.
func (h *ChatHandler) Start(c *gin.Context) {
	var req startChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	me := middleware.UserID(c)
	if req.UserID <= 0 || req.UserID == me {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target user ID"})
		return
	}

	target, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		serverError(c, h.logger, "failed to get user", err)
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target user not found"})
		return
	}

	chat, created, err := h.chats.GetOrCreate(c.Request.Context(), me, req.UserID)
	if err != nil {
		serverError(c, h.logger, "failed to start chat", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"chat_id": chat.ID, "existing": !created})
}

type sendMessageRequest struct {
	ChatID  int64  `json:"chat_id"`
	Content string `json:"content"`
}

// participantChat loads chatID and checks the caller is in it, writing
// 404 or 403 otherwise.
func (h *ChatHandler) participantChat(c *gin.Context, chatID int64) (*models.Chat, bool) {
	chat, err := h.chats.GetByID(c.Request.Context(), chatID)
	if err != nil {
		serverError(c, h.logger, "failed to get chat", err)
		return nil, false
	}
	if chat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return nil, false
	}
	if !chat.HasParticipant(middleware.UserID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant in this chat"})
		return nil, false
	}
	return chat, true
}

// SendMessage handles POST /chats/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if req.ChatID <= 0 || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat_id and content are required"})
		return
	}

	chat, ok := h.participantChat(c, req.ChatID)
	if !ok {
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), chat.ID, middleware.UserID(c), content)
	if err != nil {
		serverError(c, h.logger, "failed to create message", err)
		return
	}

	// The message is already stored; a failed publish only delays
	// delivery to open relay connections.
	if h.publisher != nil {
		if err := h.publisher.Publish(c.Request.Context(), *msg); err != nil {
			h.logger.Warn("failed to publish chat message", zap.Int64("message_id", msg.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Messages handles GET /chats/:chatId/messages, oldest first.
func (h *ChatHandler) Messages(c *gin.Context) {
	chatID, ok := pathID(c, "chatId", "chat id")
	if !ok {
		return
	}
	if _, ok := h.participantChat(c, chatID); !ok {
		return
	}

	messages, err := h.messages.ListByChat(c.Request.Context(), chatID)
	if err != nil {
		serverError(c, h.logger, "failed to list messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "messages": messages})
}

// List handles GET /chats
func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.chats.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		serverError(c, h.logger, "failed to list chats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}
