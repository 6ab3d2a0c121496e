package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

type EventHandler struct {
	events   repository.EventRepository
	apps     repository.ApplicationRepository
	comments repository.CommentRepository
	friends  repository.FriendshipRepository
	uploads  uploads
	logger   *zap.Logger
}

func NewEventHandler(
	events repository.EventRepository,
	apps repository.ApplicationRepository,
	comments repository.CommentRepository,
	friends repository.FriendshipRepository,
	uploadDir string,
	logger *zap.Logger,
) *EventHandler {
	return &EventHandler{
		events:   events,
		apps:     apps,
		comments: comments,
		friends:  friends,
		uploads:  uploads{dir: uploadDir},
		logger:   logger,
	}
}

// parseTriState maps "true"/"false" to a filter and anything else to
// no filter.
func parseTriState(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

// List handles GET /events?audience=&search=&interested=&applied=&order=
func (h *EventHandler) List(c *gin.Context) {
	audience := c.Query("audience")
	if !models.ValidAudience(audience) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audience must be public or friends"})
		return
	}

	var descending bool
	switch c.DefaultQuery("order", "desc") {
	case "desc":
		descending = true
	case "asc":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "order must be asc or desc"})
		return
	}

	events, err := h.events.Query(c.Request.Context(), repository.EventQuery{
		Audience:   audience,
		Search:     c.Query("search"),
		UserID:     middleware.UserID(c),
		Interested: parseTriState(c.Query("interested")),
		Applied:    parseTriState(c.Query("applied")),
		Descending: descending,
	})
	if errors.Is(err, repository.ErrAuthRequired) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if err != nil {
		serverError(c, h.logger, "failed to list events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type createEventRequest struct {
	Title        string `json:"title" form:"title"`
	Description  string `json:"description" form:"description"`
	Date         string `json:"date" form:"date"`
	Location     string `json:"location" form:"location"`
	Audience     string `json:"audience" form:"audience"`
	MaxAttendees *int   `json:"max_attendees" form:"max_attendees"`
	Image        string `json:"image" form:"image"`
}

var eventDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseEventDate(s string) (time.Time, bool) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Create handles POST /events. The body is JSON or a multipart form; a
// multipart "image" file, when sent, overrides the image URL field.
func (h *EventHandler) Create(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e := models.Event{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Location:     strings.TrimSpace(req.Location),
		ImageURL:     req.Image,
		MaxAttendees: req.MaxAttendees,
		Audience:     req.Audience,
		UserID:       middleware.UserID(c),
	}
	if e.Title == "" || e.Description == "" || e.Location == "" || strings.TrimSpace(req.Date) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	date, ok := parseEventDate(strings.TrimSpace(req.Date))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be RFC3339 or YYYY-MM-DD"})
		return
	}
	e.Date = date

	if e.Audience == "" {
		e.Audience = models.AudiencePublic
	}
	if !models.ValidAudience(e.Audience) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audience must be public or friends"})
		return
	}
	if e.MaxAttendees != nil && *e.MaxAttendees <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_attendees must be positive"})
		return
	}

	if _, err := c.FormFile("image"); err == nil {
		_, url, ok := h.uploads.saveOrReject(c, h.logger)
		if !ok {
			return
		}
		e.ImageURL = url
	}

	id, err := h.events.Create(c.Request.Context(), e)
	if err != nil {
		serverError(c, h.logger, "failed to create event", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// canSee reports whether viewer may see event. Friends-only events are
// limited to the organizer and their accepted friends.
func canSee(ctx context.Context, friends repository.FriendshipRepository, event *models.Event, viewer int64) (bool, error) {
	if event.Audience != models.AudienceFriends || viewer == event.UserID {
		return true, nil
	}
	if viewer == 0 {
		return false, nil
	}
	return friends.AreFriends(ctx, viewer, event.UserID)
}

// visibleEvent loads the :id event and checks the caller may see it.
// Friends-only events look missing to anyone but the organizer and
// their accepted friends.
func (h *EventHandler) visibleEvent(c *gin.Context) (*models.Event, bool) {
	id, ok := pathID(c, "id", "event id")
	if !ok {
		return nil, false
	}

	event, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		serverError(c, h.logger, "failed to get event", err)
		return nil, false
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return nil, false
	}

	visible, err := canSee(c.Request.Context(), h.friends, event, middleware.UserID(c))
	if err != nil {
		serverError(c, h.logger, "failed to check friendship", err)
		return nil, false
	}
	if !visible {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return nil, false
	}
	return event, true
}

// Get handles GET /events/:id
func (h *EventHandler) Get(c *gin.Context) {
	event, ok := h.visibleEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	organizer, err := h.events.Organizer(ctx, event.UserID)
	if err != nil {
		serverError(c, h.logger, "failed to get organizer", err)
		return
	}
	attendees, err := h.events.Attendees(ctx, event.ID)
	if err != nil {
		serverError(c, h.logger, "failed to list attendees", err)
		return
	}
	comments, err := h.comments.ListByEvent(ctx, event.ID)
	if err != nil {
		serverError(c, h.logger, "failed to list comments", err)
		return
	}

	detail := models.EventDetail{
		Event:     *event,
		Organizer: organizer,
		Attendees: attendees,
		Comments:  comments,
	}
	if viewer := middleware.UserID(c); viewer != 0 {
		detail.ApplicationStatus, err = h.apps.Status(ctx, viewer, event.ID)
		if err != nil {
			serverError(c, h.logger, "failed to get application status", err)
			return
		}
	}

	c.JSON(http.StatusOK, detail)
}

// MarkInterested handles POST /events/:id/interested
func (h *EventHandler) MarkInterested(c *gin.Context) {
	event, ok := h.visibleEvent(c)
	if !ok {
		return
	}

	changed, err := h.events.MarkInterested(c.Request.Context(), middleware.UserID(c), event.ID)
	if err != nil {
		serverError(c, h.logger, "failed to mark interest", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marked as interested", "changed": changed})
}

// UnmarkInterested handles DELETE /events/:id/interested
func (h *EventHandler) UnmarkInterested(c *gin.Context) {
	event, ok := h.visibleEvent(c)
	if !ok {
		return
	}

	changed, err := h.events.UnmarkInterested(c.Request.Context(), middleware.UserID(c), event.ID)
	if err != nil {
		serverError(c, h.logger, "failed to remove interest", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed interest", "changed": changed})
}

// InterestState handles GET /events/:id/interested
func (h *EventHandler) InterestState(c *gin.Context) {
	event, ok := h.visibleEvent(c)
	if !ok {
		return
	}

	interested, count, err := h.events.InterestState(c.Request.Context(), middleware.UserID(c), event.ID)
	if err != nil {
		serverError(c, h.logger, "failed to get interest state", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interested": interested, "count": count})
}

type commentRequest struct {
	Content string `json:"content"`
}

// Comment handles POST /events/:id/comments
func (h *EventHandler) Comment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment content is required"})
		return
	}

	event, ok := h.visibleEvent(c)
	if !ok {
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), event.ID, middleware.UserID(c), content)
	if err != nil {
		serverError(c, h.logger, "failed to post comment", err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Comments handles GET /events/:id/comments, newest first.
func (h *EventHandler) Comments(c *gin.Context) {
	event, ok := h.visibleEvent(c)
	if !ok {
		return
	}

	comments, err := h.comments.ListByEvent(c.Request.Context(), event.ID)
	if err != nil {
		serverError(c, h.logger, "failed to list comments", err)
		return
	}
	c.JSON(http.StatusOK, comments)
}
