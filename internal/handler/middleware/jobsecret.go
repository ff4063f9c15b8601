package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireJobSecret guards the internal job endpoints hit by the external
// scheduler. Comparison is constant time so the secret cannot be probed
// byte by byte.
func RequireJobSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader("X-Job-Secret"))
		if len(got) == 0 || subtle.ConstantTimeCompare(expected, got) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid job secret",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
