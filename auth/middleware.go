package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/gin-gonic/gin"
)

const (
	// IdentityContextKey holds the verified Identity on the gin context
	IdentityContextKey = "identity"
	// TokenContextKey holds the raw bearer token on the gin context
	TokenContextKey = "token"
)

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Required rejects requests without a valid bearer token
func Required(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := slogging.Get().WithContext(c)

		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Warn("Authentication failed: missing or malformed authorization header client_ip=%v", c.ClientIP())
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header format must be Bearer {token}",
			})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenRevoked) && !errors.Is(err, ErrMissingToken) {
				status = http.StatusServiceUnavailable
			}
			logger.Warn("Authentication failed client_ip=%v error=%v", c.ClientIP(), err)
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(status, gin.H{"error": "invalid or revoked token"})
			return
		}

		c.Set(IdentityContextKey, identity)
		c.Set(TokenContextKey, token)
		c.Set(slogging.ContextKeyUserID, identity.UserID)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Required
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(IdentityContextKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}
