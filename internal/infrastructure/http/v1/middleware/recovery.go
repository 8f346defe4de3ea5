// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"bakery/internal/core/apperror"
	"bakery/pkg/logger"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR response.
// The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic in handler",
				"panic", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)

			appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec))
			if rid := c.GetString("request_id"); rid != "" {
				appErr.WithDetail("request_id", rid)
			}
			_ = c.Error(appErr)
			c.Abort()
			writeError(c)
		}()
		c.Next()
	}
}
