package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// UserHandler 封装了用户管理相关的 HTTP 处理逻辑（仅管理员路由）
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler 创建 UserHandler 实例
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List 返回用户列表，支持按角色和激活状态过滤
func (h *UserHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var filter repository.UserFilter
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(raw)
		if !domain.ValidRole(role) {
			ErrorResponse(c, http.StatusBadRequest, "Invalid role filter")
			return
		}
		filter.Role = &role
	}
	if raw := c.Query("isActive"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}

	users, err := h.userService.List(c.Request.Context(), p, filter)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"users": users})
}

// CreateUserRequest 定义管理员创建用户请求的结构体
type CreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Create 处理管理员创建用户，允许任意合法角色
func (h *UserHandler) Create(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateUser: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), p, service.CreateUserInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusCreated, "User created successfully", gin.H{"user": user})
}

// UpdateUserRequest 定义管理员编辑用户请求的结构体。
// 用户名不可变更；停用通过 isActive 实现。
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"isActive"`
}

// Update 处理管理员编辑用户资料、角色和激活状态
func (h *UserHandler) Update(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateUser: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := service.UpdateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.userService.Update(c.Request.Context(), p, id, input)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusOK, "User updated successfully", gin.H{"user": user})
}
