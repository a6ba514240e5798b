package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/pkg/jwtutil"
	"workdocs-ai/internal/transport/http/response"
)

// Context keys under which the authenticated identity is stored.
const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
)

// AuthJWT rejects requests without a valid bearer token and stashes the
// token's identity in the gin context for the handlers.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, message)
	c.Abort()
}
