package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/auth"
	"go.uber.org/zap"
)

// OTPService is the part of auth.OTPService the handlers call.
type OTPService interface {
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*auth.LoginResult, error)
}

// AuthHandler serves the two public login endpoints. They sit outside
// AuthMiddleware because they are how a client gets a token.
type AuthHandler struct {
	otp    OTPService
	logger *zap.Logger
}

func NewAuthHandler(otp OTPService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{otp: otp, logger: logger}
}

type requestOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginUser struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
}

type loginResponse struct {
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
	NewUser bool      `json:"newUser"`
}

// RequestOTP handles POST /auth/request-otp
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req requestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	err := h.otp.RequestOTP(c.Request.Context(), req.Email)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "OTP sent via email"})
	case errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
	case errors.Is(err, auth.ErrOTPRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many OTP requests, try again later"})
	case errors.Is(err, auth.ErrMailFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send OTP email"})
	default:
		serverError(c, h.logger, "failed to issue OTP", err)
	}
}

// VerifyOTP handles POST /auth/verify-otp
//
// Flow:
//  1. Validate input
//  2. Check the code against the stored hash and expiry
//  3. Find or create the user
//  4. Return a bearer token
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and OTP code are required"})
		return
	}

	res, err := h.otp.VerifyOTP(c.Request.Context(), req.Email, req.Code)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	case errors.Is(err, auth.ErrInvalidOTP):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired OTP"})
		return
	default:
		serverError(c, h.logger, "failed to verify OTP", err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token: res.Token,
		User: loginUser{
			ID:             res.User.ID,
			Email:          res.User.Email,
			Name:           res.User.Name,
			ProfilePicture: res.User.ProfilePicture,
		},
		NewUser: res.NewUser,
	})
}
