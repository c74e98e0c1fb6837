package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-agent/internal/model"
)

// Recovery 捕获 panic 并返回 500
// 响应已开始写出（如流式输出）时只记录日志
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic recovered: %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, err, debug.Stack())
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
					Code: http.StatusInternalServerError,
					Msg:  "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
