package http

import (
	"github.com/gin-gonic/gin"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// Response 是所有 API 响应的统一信封。
type Response struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Data    interface{}        `json:"data,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

// DataResponse 返回携带数据的成功响应。
func DataResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, Response{Success: true, Data: data})
}

// MessageResponse 返回携带提示消息的成功响应。
func MessageResponse(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{Success: true, Message: message, Data: data})
}

// ErrorResponse 返回失败响应。
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, Response{Success: false, Message: message})
}

// ValidationErrorResponse 返回字段级验证错误响应。
func ValidationErrorResponse(c *gin.Context, verr *domain.ValidationError) {
	c.JSON(400, Response{Success: false, Message: "Validation failed", Errors: verr.Fields})
}
