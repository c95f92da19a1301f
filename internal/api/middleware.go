package api

import (
	"crypto/subtle"

	"evaljudge/internal/apperr"

	"github.com/gin-gonic/gin"
)

// authMiddleware enforces the single shared static token this surface uses
// in place of per-user sessions. A missing server-side token is a
// misconfiguration, not a client error, so it fails closed with 500.
func authMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			respondError(c, apperr.New(apperr.InternalError).WithMessage("server auth token is not configured"))
			c.Abort()
			return
		}
		presented := c.GetHeader("X-Auth-Token")
		if presented == "" {
			presented = c.Query("token")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			respondError(c, apperr.New(apperr.Unauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}
