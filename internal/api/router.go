package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/auth"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/observ"
	"github.com/lalith-99/excursia/internal/repository"
	"go.uber.org/zap"
)

// Deps is everything the REST API needs. Optional fields may be nil.
type Deps struct {
	Logger  *zap.Logger
	Metrics *observ.Metrics // optional
	Tokens  *auth.Tokens

	OTP OTPService
	// OTPLimiter guards the OTP request endpoint per client address (optional).
	OTPLimiter gin.HandlerFunc

	Users        repository.UserRepository
	Images       repository.ImageRepository
	Events       repository.EventRepository
	Applications repository.ApplicationRepository
	Comments     repository.CommentRepository
	Friendships  repository.FriendshipRepository
	Chats        repository.ChatRepository
	Messages     repository.MessageRepository

	Publisher   MessagePublisher // optional
	Recommender Recommender

	UploadDir string
	Health    func(ctx context.Context) error // optional
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				d.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.UploadDir != "" {
		r.Static(URLPrefix, d.UploadDir)
	}

	requireAuth := middleware.AuthMiddleware(d.Tokens)
	optionalAuth := middleware.OptionalAuth(d.Tokens)

	authH := NewAuthHandler(d.OTP, d.Logger)
	otpHandlers := []gin.HandlerFunc{authH.RequestOTP}
	if d.OTPLimiter != nil {
		otpHandlers = append([]gin.HandlerFunc{d.OTPLimiter}, otpHandlers...)
	}
	r.POST("/auth/request-otp", otpHandlers...)
	r.POST("/auth/verify-otp", authH.VerifyOTP)

	users := NewUserHandler(d.Users, d.Events, d.Logger)
	images := NewImageHandler(d.Images, d.Users, d.UploadDir, d.Logger)
	r.GET("/users", users.List)
	r.GET("/users/:id", users.Get)
	r.PUT("/users/:id", requireAuth, users.Update)
	r.POST("/users/:id/tags", requireAuth, users.AddTag)
	r.DELETE("/users/:id/tags/:tag", requireAuth, users.RemoveTag)
	r.GET("/users/:id/events", users.Events)
	r.POST("/users/:id/profile-picture", requireAuth, images.ProfilePicture)
	r.POST("/users/:id/cover-image", requireAuth, images.CoverImage)
	r.POST("/users/:id/images", requireAuth, images.AddToGallery)
	r.GET("/users/:id/images", images.Gallery)
	r.DELETE("/images/:imageId", requireAuth, images.Delete)
	r.POST("/upload-picture", requireAuth, images.Upload)

	friends := NewFriendHandler(d.Friendships, d.Users, d.Logger)
	fr := r.Group("/friendships", requireAuth)
	fr.POST("/request", friends.Request)
	fr.POST("/respond", friends.Respond)
	fr.GET("/pending", friends.Pending)
	fr.GET("/:id", friends.List)

	events := NewEventHandler(d.Events, d.Applications, d.Comments, d.Friendships, d.UploadDir, d.Logger)
	apps := NewApplicationHandler(d.Applications, d.Events, d.Friendships, d.Logger)
	r.GET("/events", optionalAuth, events.List)
	r.POST("/events", requireAuth, events.Create)
	r.GET("/events/:id", optionalAuth, events.Get)
	r.POST("/events/:id/interested", requireAuth, events.MarkInterested)
	r.DELETE("/events/:id/interested", requireAuth, events.UnmarkInterested)
	r.GET("/events/:id/interested", requireAuth, events.InterestState)
	r.POST("/events/:id/comments", requireAuth, events.Comment)
	r.GET("/events/:id/comments", optionalAuth, events.Comments)
	r.POST("/events/applications/apply", requireAuth, apps.Apply)
	r.POST("/events/applications/respond", requireAuth, apps.Respond)
	r.GET("/events/applications/pending", requireAuth, apps.Pending)

	rec := NewRecommendHandler(d.Recommender, d.Logger)
	r.GET("/gpt", requireAuth, rec.Recommend)

	chats := NewChatHandler(d.Chats, d.Messages, d.Users, d.Publisher, d.Logger)
	ch := r.Group("/chats", requireAuth)
	ch.POST("/start", chats.Start)
	ch.POST("/messages", chats.SendMessage)
	ch.GET("/:chatId/messages", chats.Messages)
	ch.GET("", chats.List)

	return r
}
