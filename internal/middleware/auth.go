package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"research-chat/internal/identity"
)

const (
	UserIDKey    = "userID"
	PrincipalKey = "principal"
)

// AuthMiddleware validates the Authorization header through the identity resolver.
func AuthMiddleware(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing authorization"})
			return
		}

		token, ok := identity.BearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid authorization header"})
			return
		}

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		c.Set(UserIDKey, principal.ID)
		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// Principal returns the caller set by AuthMiddleware.
func Principal(c *gin.Context) identity.Principal {
	if val, ok := c.Get(PrincipalKey); ok {
		if p, ok := val.(identity.Principal); ok {
			return p
		}
	}
	return identity.Principal{ID: c.GetString(UserIDKey)}
}
