package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// HandleServiceError 把 Service 层错误映射为 HTTP 响应。
// 内部错误不向客户端暴露细节，只记录日志。
func HandleServiceError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var inUseErr *service.ProjectInUseError

	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(c, verr)
	case errors.Is(err, service.ErrAuthenticationFailed),
		errors.Is(err, service.ErrAccountDisabled):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		ErrorResponse(c, http.StatusForbidden, "Access denied")
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, service.ErrBugNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProjectNameTaken):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.As(err, &inUseErr):
		ErrorResponse(c, http.StatusConflict, inUseErr.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
