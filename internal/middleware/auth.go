package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/excursia/internal/auth"
)

// ContextKeyIdentity is where the auth middlewares store the caller.
const ContextKeyIdentity = "identity"

// Identity is the authenticated caller, taken from the bearer token.
type Identity struct {
	UserID int64
	Role   string
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AuthMiddleware rejects the request with 401 unless it carries a valid
// bearer token. On success the caller's Identity is stored in the
// context for handlers to read with CurrentUser.
func AuthMiddleware(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		tokenString, ok := BearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyIdentity, Identity{UserID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// otherwise lets the request through anonymously. Public listing and
// detail routes use it to personalise results.
func OptionalAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := BearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := tokens.Parse(tokenString); err == nil {
				c.Set(ContextKeyIdentity, Identity{UserID: claims.UserID, Role: claims.Role})
			}
		}
		c.Next()
	}
}

// CurrentUser returns the caller stored by AuthMiddleware or
// OptionalAuth. ok is false for anonymous requests.
func CurrentUser(c *gin.Context) (Identity, bool) {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return Identity{}, false
	}
	id, ok := val.(Identity)
	return id, ok
}

// UserID is CurrentUser without the ok flag; zero means anonymous.
func UserID(c *gin.Context) int64 {
	id, _ := CurrentUser(c)
	return id.UserID
}
