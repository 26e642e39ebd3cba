package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/service"
)

// PublicHandler 封装无需认证的公共端点：
// 活跃项目列表和公共缺陷提交。
type PublicHandler struct {
	projectService *service.ProjectService
	bugService     *service.BugService
}

// NewPublicHandler 创建 PublicHandler 实例
func NewPublicHandler(projectService *service.ProjectService, bugService *service.BugService) *PublicHandler {
	return &PublicHandler{projectService: projectService, bugService: bugService}
}

// ListProjects 返回所有 active 项目，供公共提交表单选择
func (h *PublicHandler) ListProjects(c *gin.Context) {
	projects, err := h.projectService.ListActive(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"projects": projects})
}

// PublicBugRequest 定义公共缺陷提交请求的结构体。
// 报告者姓名和邮箱均为可选。
type PublicBugRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Priority      string `json:"priority"`
	Project       uint   `json:"project"`
	ReporterName  string `json:"reporterName"`
	ReporterEmail string `json:"reporterEmail"`
}

// SubmitBug 处理未认证的公共缺陷提交
func (h *PublicHandler) SubmitBug(c *gin.Context) {
	var req PublicBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.SubmitPublicBug: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.bugService.CreatePublic(c.Request.Context(), service.PublicBugInput{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		ProjectID:     req.Project,
		ReporterName:  req.ReporterName,
		ReporterEmail: req.ReporterEmail,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusCreated, "Bug report submitted successfully", gin.H{"bug": receipt})
}
