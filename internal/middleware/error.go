package middleware

import (
	"fiduciaire/pkg/logger"
	"fiduciaire/pkg/response"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// ErrorHandler recovers panics and answers 500
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().
					WithField("path", c.Request.URL.Path).
					Errorf("Panic recovered: %v\n%s", err, debug.Stack())
				response.ServerError(c, "erreur interne du serveur")
				c.Abort()
			}
		}()

		c.Next()
	}
}
