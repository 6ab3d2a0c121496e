package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

type FriendHandler struct {
	friends repository.FriendshipRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

func NewFriendHandler(friends repository.FriendshipRepository, users repository.UserRepository, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{friends: friends, users: users, logger: logger}
}

type friendRequest struct {
	UserID2 int64 `json:"user_id2"`
}

type friendResponse struct {
	FromUserID int64  `json:"from_user_id"`
	Decision   string `json:"decision"`
}

// Request handles POST /friendships/request
func (h *FriendHandler) Request(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	me := middleware.UserID(c)

	if req.UserID2 <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid user_id2 is required"})
		return
	}
	if req.UserID2 == me {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot send friend request to yourself"})
		return
	}

	target, err := h.users.GetByID(c.Request.Context(), req.UserID2)
	if err != nil {
		serverError(c, h.logger, "failed to get user", err)
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.friends.Request(c.Request.Context(), me, req.UserID2); err != nil {
		serverError(c, h.logger, "failed to send friend request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request sent"})
}

// Respond handles POST /friendships/respond. Only requests addressed to
// the caller can be answered.
func (h *FriendHandler) Respond(c *gin.Context) {
	var req friendResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.FromUserID <= 0 || !models.ValidDecision(req.Decision) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid from_user_id and decision ('accepted' or 'rejected') are required"})
		return
	}

	err := h.friends.Respond(c.Request.Context(), req.FromUserID, middleware.UserID(c), req.Decision)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Friend request not found or already handled"})
		return
	}
	if err != nil {
		serverError(c, h.logger, "failed to respond to friend request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Friend request " + req.Decision})
}

type pendingFriendRequest struct {
	FromUserID int64 `json:"from_user_id"`
}

// Pending handles GET /friendships/pending
func (h *FriendHandler) Pending(c *gin.Context) {
	ids, err := h.friends.PendingFor(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		serverError(c, h.logger, "failed to list friend requests", err)
		return
	}

	requests := make([]pendingFriendRequest, 0, len(ids))
	for _, id := range ids {
		requests = append(requests, pendingFriendRequest{FromUserID: id})
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// List handles GET /friendships/:id
func (h *FriendHandler) List(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok {
		return
	}

	friends, err := h.friends.Friends(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to list friends", err)
		return
	}
	c.JSON(http.StatusOK, friends)
}
