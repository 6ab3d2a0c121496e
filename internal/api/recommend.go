package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/recommend"
	"go.uber.org/zap"
)

type Recommender interface {
	Recommend(ctx context.Context, userID int64) ([]models.EventCard, error)
}

type RecommendHandler struct {
	rec    Recommender
	logger *zap.Logger
}

func NewRecommendHandler(rec Recommender, logger *zap.Logger) *RecommendHandler {
	return &RecommendHandler{rec: rec, logger: logger}
}

// Recommend handles GET /gpt
func (h *RecommendHandler) Recommend(c *gin.Context) {
	events, err := h.rec.Recommend(c.Request.Context(), middleware.UserID(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"events": events})
	case errors.Is(err, recommend.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, recommend.ErrDisabled), errors.Is(err, recommend.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recommendations are temporarily unavailable"})
	default:
		serverError(c, h.logger, "Failed to filter events", err)
	}
}
