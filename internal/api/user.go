package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves profiles, tags and a user's organised events.
type UserHandler struct {
	users  repository.UserRepository
	events repository.EventRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, events repository.EventRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, events: events, logger: logger}
}

// List handles GET /users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		serverError(c, h.logger, "failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get handles GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.Tags, err = h.users.Tags(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get user tags", err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Update handles PUT /users/:id. Fields missing from the body keep
// their stored values.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok || !requireSelf(c, id) {
		return
	}

	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updated := req.Apply(*user)
	if err := h.users.Update(c.Request.Context(), updated); err != nil {
		serverError(c, h.logger, "failed to update user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": updated})
}

type tagRequest struct {
	Tag string `json:"tag"`
}

// AddTag handles POST /users/:id/tags
func (h *UserHandler) AddTag(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok || !requireSelf(c, id) {
		return
	}

	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid tag is required"})
		return
	}

	if err := h.users.AddTag(c.Request.Context(), id, tag); err != nil {
		serverError(c, h.logger, "failed to add tag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag added"})
}

// RemoveTag handles DELETE /users/:id/tags/:tag
func (h *UserHandler) RemoveTag(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok || !requireSelf(c, id) {
		return
	}

	if err := h.users.RemoveTag(c.Request.Context(), id, c.Param("tag")); err != nil {
		serverError(c, h.logger, "failed to remove tag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tag removed"})
}

// Events handles GET /users/:id/events, newest first.
func (h *UserHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id", "user id")
	if !ok {
		return
	}

	events, err := h.events.ListByOrganizer(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to list user events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}
