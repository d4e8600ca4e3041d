package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

type contextKey string

const principalContextKey contextKey = "cloudbucketPrincipal"

// Middleware validates bearer tokens and injects the resolved principal.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing authorization header"})
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid authorization header"})
			return
		}

		principal, err := service.ResolvePrincipal(token)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(string(principalContextKey), principal)
		c.Next()
	}
}

// RequirePrincipal extracts the authenticated principal from the context.
func RequirePrincipal(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(string(principalContextKey))
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}

func extractBearerToken(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
