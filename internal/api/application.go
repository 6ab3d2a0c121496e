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

// ApplicationHandler serves requests to attend moderated events.
type ApplicationHandler struct {
	apps    repository.ApplicationRepository
	events  repository.EventRepository
	friends repository.FriendshipRepository
	logger  *zap.Logger
}

func NewApplicationHandler(apps repository.ApplicationRepository, events repository.EventRepository, friends repository.FriendshipRepository, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, events: events, friends: friends, logger: logger}
}

type applyRequest struct {
	EventID int64 `json:"event_id" binding:"required,gt=0"`
}

type respondRequest struct {
	UserID   int64  `json:"user_id"`
	EventID  int64  `json:"event_id"`
	Decision string `json:"decision"`
}

// Apply handles POST /events/applications/apply
func (h *ApplicationHandler) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event ID is required"})
		return
	}
	me := middleware.UserID(c)

	event, err := h.events.GetByID(c.Request.Context(), req.EventID)
	if err != nil {
		serverError(c, h.logger, "failed to get event", err)
		return
	}
	visible := false
	if event != nil {
		visible, err = canSee(c.Request.Context(), h.friends, event, me)
		if err != nil {
			serverError(c, h.logger, "failed to check friendship", err)
			return
		}
	}
	if !visible {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if event.UserID == me {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot apply to your own event"})
		return
	}

	if err := h.apps.Apply(c.Request.Context(), me, req.EventID); err != nil {
		serverError(c, h.logger, "failed to apply to event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application submitted"})
}

// Respond handles POST /events/applications/respond
//
// Flow:
//  1. Validate input
//  2. Only the event's organizer may decide
//  3. Settle the pending application; accepting also registers the
//     attendee, in one transaction, subject to max_attendees
func (h *ApplicationHandler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID <= 0 || req.EventID <= 0 || !models.ValidDecision(req.Decision) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid user_id, event_id, and decision are required"})
		return
	}

	event, err := h.events.GetByID(c.Request.Context(), req.EventID)
	if err != nil {
		serverError(c, h.logger, "failed to get event", err)
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if event.UserID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the organizer can respond to applications"})
		return
	}

	err = h.apps.Respond(c.Request.Context(), req.UserID, req.EventID, req.Decision)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Application " + req.Decision})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Application not found or already processed"})
	case errors.Is(err, repository.ErrEventFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Event is full"})
	default:
		serverError(c, h.logger, "failed to respond to application", err)
	}
}

// Pending handles GET /events/applications/pending for events the
// caller organizes.
func (h *ApplicationHandler) Pending(c *gin.Context) {
	apps, err := h.apps.PendingForOrganizer(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		serverError(c, h.logger, "failed to list applications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}
