package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logging 请求日志
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}

		c.Next()

		userID := c.GetString(ContextUserID)
		if userID == "" {
			userID = "-"
		}
		log.Printf("[%s] %s | Status: %d | Latency: %v | IP: %s | User: %s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			userID,
		)
		for _, e := range c.Errors {
			log.Printf("[%s] %s | Error: %v", c.Request.Method, c.Request.URL.Path, e.Err)
		}
	}
}
