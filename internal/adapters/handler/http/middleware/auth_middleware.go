package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	authorizationType   = "Bearer"
	tokenQueryParam     = "access_token"
	ContextOwnerIDKey   = "ownerID"
)

// TokenValidator resolves a bearer token to the owner id it was issued for.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// AuthMiddleware accepts the token from the Authorization header, or from
// the access_token query parameter for websocket clients that cannot set
// headers.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query(tokenQueryParam)

		if authHeader := c.GetHeader(authorizationHeader); authHeader != "" {
			fields := strings.Fields(authHeader)
			if len(fields) < 2 || fields[0] != authorizationType {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				return
			}
			tokenString = fields[1]
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		ownerID, err := tokens.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextOwnerIDKey, ownerID)
		c.Next()
	}
}

func GetOwnerID(c *gin.Context) (string, bool) {
	id, exists := c.Get(ContextOwnerIDKey)
	if !exists {
		return "", false
	}
	idStr, ok := id.(string)
	return idStr, ok && idStr != ""
}
