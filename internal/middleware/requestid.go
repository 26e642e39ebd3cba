package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 是请求 ID 使用的 HTTP 头。
const RequestIDHeader = "X-Request-ID"

// ContextKeyRequestID 是请求 ID 在 Gin 上下文中的键。
const ContextKeyRequestID = "request_id"

// RequestID 返回一个 Gin 中间件，为每个请求分配唯一 ID。
// 客户端提供的 X-Request-ID 会被透传，便于跨服务追踪；否则生成新的 UUID。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)
		c.Next()
	}
}
