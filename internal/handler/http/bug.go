package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/middleware"
	"github.com/Avishi2511/bug-tracker/internal/policy"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// BugHandler 封装了缺陷相关的 HTTP 处理逻辑
type BugHandler struct {
	bugService *service.BugService
}

// NewBugHandler 创建 BugHandler 实例
func NewBugHandler(bugService *service.BugService) *BugHandler {
	return &BugHandler{bugService: bugService}
}

// List 处理缺陷列表查询，支持过滤与分页
func (h *BugHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	input := service.ListBugsInput{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}
	if projectID, err := parseOptionalUintQuery(c, "project"); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid project filter")
		return
	} else {
		input.ProjectID = projectID
	}
	if assignedTo, err := parseOptionalUintQuery(c, "assignedTo"); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid assignedTo filter")
		return
	} else {
		input.AssignedTo = assignedTo
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid page parameter")
		return
	} else {
		input.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid limit parameter")
		return
	} else {
		input.Limit = limit
	}

	bugs, pagination, err := h.bugService.List(c.Request.Context(), p, input)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	DataResponse(c, http.StatusOK, gin.H{
		"bugs":       bugs,
		"pagination": pagination,
	})
}

// Get 返回单个缺陷详情
func (h *BugHandler) Get(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	bug, err := h.bugService.Get(c.Request.Context(), p, id)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	DataResponse(c, http.StatusOK, gin.H{"bug": bug})
}

// CreateBugRequest 定义缺陷创建请求的结构体
type CreateBugRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Priority         string `json:"priority"`
	Project          uint   `json:"project"`
	StepsToReproduce string `json:"stepsToReproduce"`
	ExpectedBehavior string `json:"expectedBehavior"`
	ActualBehavior   string `json:"actualBehavior"`
}

// Create 处理已认证用户的缺陷创建
func (h *BugHandler) Create(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req CreateBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateBug: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	bug, err := h.bugService.Create(c.Request.Context(), p, service.CreateBugInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		ProjectID:        req.Project,
		StepsToReproduce: req.StepsToReproduce,
		ExpectedBehavior: req.ExpectedBehavior,
		ActualBehavior:   req.ActualBehavior,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusCreated, "Bug reported successfully", gin.H{"bug": bug})
}

// UpdateBugRequest 定义缺陷更新请求的结构体。
// 未出现的字段保持不变。
type UpdateBugRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Priority         *string `json:"priority"`
	Status           *string `json:"status"`
	StepsToReproduce *string `json:"stepsToReproduce"`
	ExpectedBehavior *string `json:"expectedBehavior"`
	ActualBehavior   *string `json:"actualBehavior"`
}

// Update 处理缺陷的描述性字段更新
func (h *BugHandler) Update(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateBug: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	bug, err := h.bugService.Update(c.Request.Context(), p, id, service.UpdateBugInput{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		Status:           req.Status,
		StepsToReproduce: req.StepsToReproduce,
		ExpectedBehavior: req.ExpectedBehavior,
		ActualBehavior:   req.ActualBehavior,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusOK, "Bug updated successfully", gin.H{"bug": bug})
}

// Delete 处理缺陷删除（仅管理员）
func (h *BugHandler) Delete(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.bugService.Delete(c.Request.Context(), p, id); err != nil {
		HandleServiceError(c, err)
		return
	}
	MessageResponse(c, http.StatusOK, "Bug deleted successfully", nil)
}

// AssignBugRequest 定义缺陷指派请求的结构体
type AssignBugRequest struct {
	AssignedTo uint `json:"assignedTo" binding:"required"`
}

// Assign 处理缺陷指派（仅管理员）
func (h *BugHandler) Assign(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req AssignBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.AssignBug: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "assignedTo is required")
		return
	}

	bug, err := h.bugService.Assign(c.Request.Context(), p, id, req.AssignedTo)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusOK, "Bug assigned successfully", gin.H{"bug": bug})
}

// UpdateStatusRequest 定义状态转换请求的结构体
type UpdateStatusRequest struct {
	Status       string `json:"status" binding:"required"`
	ProgressNote string `json:"progressNote"`
}

// UpdateStatus 处理状态转换，可选附带进度备注
func (h *BugHandler) UpdateStatus(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.UpdateBugStatus: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "status is required")
		return
	}

	bug, err := h.bugService.UpdateStatus(c.Request.Context(), p, id, req.Status, req.ProgressNote)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	MessageResponse(c, http.StatusOK, "Bug status updated successfully", gin.H{"bug": bug})
}

// --- 共享的解析辅助函数 ---

// requirePrincipal 读取请求主体，缺失时终止请求。
func requirePrincipal(c *gin.Context) (policy.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		logrus.Error("Handler: principal missing from context")
		ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
		return policy.Principal{}, false
	}
	return p, true
}

// parseIDParam 解析路径中的 :id 参数。
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

// parseOptionalUintQuery 解析可选的数字查询参数，缺省返回 nil。
func parseOptionalUintQuery(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, err
	}
	result := uint(value)
	return &result, nil
}
