package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// ProjectHandler 封装了项目相关的 HTTP 处理逻辑
type ProjectHandler struct {
	projectService *service.ProjectService
}

// NewProjectHandler 创建 ProjectHandler 实例
func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List 返回角色范围内的项目列表，每个项目附带缺陷数
func (h *ProjectHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var status *domain.ProjectStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.ProjectStatus(raw)
		if !domain.ValidProjectStatus(s) {
			ErrorResponse(c, http.StatusBadRequest, "Invalid status filter")
			return
		}
		status = &s
	}

	projects, err := h.projectService.List(c.Request.Context(), p, status)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"projects": projects})
}

// Get 返回单个项目详情
func (h *ProjectHandler) Get(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), p, id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"project": project})
}

// ProjectRequest 定义项目创建请求的结构体
type ProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Create 处理项目创建（仅管理员）
func (h *ProjectHandler) Create(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateProject: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), p, service.ProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      domain.ProjectStatus(req.Status),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusCreated, "Project created successfully", gin.H{"project": project})
}

// UpdateProjectRequest 定义项目更新请求的结构体。未出现的字段保持不变。
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// Update 处理项目更新（仅管理员）
func (h *ProjectHandler) Update(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateProject: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.Status != nil {
		s := domain.ProjectStatus(*req.Status)
		input.Status = &s
	}

	project, err := h.projectService.Update(c.Request.Context(), p, id, input)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusOK, "Project updated successfully", gin.H{"project": project})
}

// Delete 处理项目删除（仅管理员）。
// 仍有缺陷关联的项目会被拒绝删除。
func (h *ProjectHandler) Delete(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), p, id); err != nil {
		HandleServiceError(c, err)
		return
	}
	MessageResponse(c, http.StatusOK, "Project deleted successfully", nil)
}
