package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS returns middleware permitting cross-origin POST/GET with a
// Content-Type header. An OPTIONS preflight is answered directly with 200
// and no body.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
