package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAdminToken carries the shared secret of the admin API.
const HeaderAdminToken = "X-Admin-Token"

// ctxKeyAdmin marks requests that presented a valid admin token.
const ctxKeyAdmin = "admin"

// AdminToken guards a route group with a shared secret. An empty token
// leaves the group open, for deployments where the ops port is private.
func AdminToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(HeaderAdminToken))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid admin token",
			})
			return
		}
		c.Set(ctxKeyAdmin, true)
		c.Next()
	}
}

// IsAdmin reports whether AdminToken accepted the request's token.
func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyAdmin)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
