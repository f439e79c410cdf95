package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/auth"
)

// Context keys set by RequireAuth.
const (
	ctxUserID = "userID"
	ctxToken  = "token"
)

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user id and raw token on the context for the handlers.
func RequireAuth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		tokenStr := strings.TrimPrefix(h, "Bearer ")
		userID, err := authSvc.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxToken, tokenStr)
		c.Next()
	}
}

// MustUserID returns the authenticated user id. Only valid on routes behind
// RequireAuth.
func MustUserID(c *gin.Context) string {
	return c.MustGet(ctxUserID).(string)
}
