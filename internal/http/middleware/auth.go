package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mentalapp/mentalapp-api/internal/domain"
	"github.com/mentalapp/mentalapp-api/internal/service"
)

const currentUserKey = "currentUser"

// Auth validates the Authorization header and attaches the account.
type Auth struct {
	AuthService *service.AuthService
}

// RequireAuth ensures the request carries a valid, unrevoked bearer token.
func (m *Auth) RequireAuth(c *gin.Context) {
	raw, ok := BearerToken(c)
	if !ok {
		abortUnauthorized(c, "Bearer token required.")
		return
	}

	user, _, err := m.AuthService.Authenticate(c.Request.Context(), raw)
	if err != nil {
		if svcErr, isSvc := err.(*service.Error); isSvc {
			c.AbortWithStatusJSON(svcErr.Status, gin.H{
				"status":  false,
				"message": svcErr.Message,
				"errors":  svcErr.Fields,
			})
			return
		}
		abortUnauthorized(c, "Invalid access token.")
		return
	}

	c.Set(currentUserKey, user)
	c.Next()
}

// CurrentUser returns the account attached by RequireAuth.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  false,
		"message": "Unauthenticated.",
		"errors":  gin.H{"auth": detail},
	})
}
