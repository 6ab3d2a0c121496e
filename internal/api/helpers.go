package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/middleware"
	"go.uber.org/zap"
)

// pathID reads a positive integer path parameter. On failure it writes
// 400 and returns ok=false.
func pathID(c *gin.Context, param, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + label})
		return 0, false
	}
	return id, true
}

// requireSelf allows the request only when the caller is user id.
func requireSelf(c *gin.Context, id int64) bool {
	if middleware.UserID(c) != id {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to modify another user"})
		return false
	}
	return true
}

func serverError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Error(msg,
		zap.Error(err),
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString(middleware.ContextKeyRequestID)),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
