package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds a single upstream chat request, covering planning,
// context selection, dispatch/retry, and validation.
const RequestTimeout = 120 * time.Second

// AttachRequestContext bounds every inbound request with a deadline so a
// stuck worker or oracle call cannot pin a handler goroutine forever.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
