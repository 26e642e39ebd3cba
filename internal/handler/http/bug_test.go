package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	handler "github.com/Avishi2511/bug-tracker/internal/handler/http"
	"github.com/Avishi2511/bug-tracker/internal/middleware"
	"github.com/Avishi2511/bug-tracker/internal/policy"
	"github.com/Avishi2511/bug-tracker/internal/repository/mocks"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// stubNotifier 满足 Notifier 接口，测试处理器时不关心投递
type stubNotifier struct{}

func (stubNotifier) BugAssigned(ctx context.Context, bugID, assigneeID, actorID uint) error {
	return nil
}

func (stubNotifier) BugStatusChanged(ctx context.Context, bugID uint, status domain.BugStatus, actorID uint) error {
	return nil
}

// envelope 对应响应外层结构，便于断言
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  []domain.FieldError `json:"errors"`
}

type bugTestEnv struct {
	router      *gin.Engine
	bugRepo     *mocks.BugRepository
	projectRepo *mocks.ProjectRepository
	userRepo    *mocks.UserRepository
}

// newBugTestEnv 搭建带认证主体注入的测试路由。
// principal 为 nil 时模拟公共访问（仅注册公共路由）。
func newBugTestEnv(principal *policy.Principal) *bugTestEnv {
	gin.SetMode(gin.TestMode)

	bugRepo := new(mocks.BugRepository)
	projectRepo := new(mocks.ProjectRepository)
	userRepo := new(mocks.UserRepository)

	bugService := service.NewBugService(bugRepo, projectRepo, userRepo, stubNotifier{})
	projectService := service.NewProjectService(projectRepo, bugRepo)
	bugHandler := handler.NewBugHandler(bugService)
	publicHandler := handler.NewPublicHandler(projectService, bugService)

	router := gin.New()

	public := router.Group("/api/public")
	{
		public.GET("/projects", publicHandler.ListProjects)
		public.POST("/bugs", publicHandler.SubmitBug)
	}

	if principal != nil {
		p := *principal
		authed := router.Group("/api/bugs", func(c *gin.Context) {
			c.Set(middleware.ContextKeyPrincipal, p)
			c.Next()
		})
		authed.GET("", bugHandler.List)
		authed.GET("/:id", bugHandler.Get)
		authed.POST("", bugHandler.Create)
		authed.PUT("/:id/status", bugHandler.UpdateStatus)
	}

	return &bugTestEnv{router: router, bugRepo: bugRepo, projectRepo: projectRepo, userRepo: userRepo}
}

func (e *bugTestEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestBugHandler_Get(t *testing.T) {
	t.Run("tester reading another reporter's bug gets 404", func(t *testing.T) {
		p := policy.Principal{UserID: 3, Role: policy.RoleTester}
		env := newBugTestEnv(&p)
		env.bugRepo.On("FindByID", mock.Anything, uint(42)).Return(&domain.Bug{
			ID:       42,
			Title:    "Login broken",
			Reporter: domain.NewInternalReporter(9),
		}, nil)

		w, resp := env.do(t, http.MethodGet, "/api/bugs/42", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "bug not found", resp.Message)
	})

	t.Run("admin reads bug with public reporter", func(t *testing.T) {
		p := policy.Principal{UserID: 1, Role: policy.RoleAdmin}
		env := newBugTestEnv(&p)
		env.bugRepo.On("FindByID", mock.Anything, uint(42)).Return(&domain.Bug{
			ID:       42,
			Title:    "Login broken",
			Status:   domain.StatusOpen,
			Reporter: domain.NewPublicReporter("Jane", "jane@example.com"),
		}, nil)

		w, resp := env.do(t, http.MethodGet, "/api/bugs/42", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)

		var data struct {
			Bug domain.Bug `json:"bug"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, uint(42), data.Bug.ID)
		assert.Equal(t, "Jane", data.Bug.Reporter.Name)
	})

	t.Run("non-numeric id is rejected before the service runs", func(t *testing.T) {
		p := policy.Principal{UserID: 1, Role: policy.RoleAdmin}
		env := newBugTestEnv(&p)

		w, resp := env.do(t, http.MethodGet, "/api/bugs/abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid ID", resp.Message)
		env.bugRepo.AssertNotCalled(t, "FindByID")
	})
}

func TestBugHandler_List_MalformedPagingRejected(t *testing.T) {
	// 查询参数里的非数字与 project/assignedTo 过滤器同等对待：400
	t.Run("non-numeric page", func(t *testing.T) {
		p := policy.Principal{UserID: 1, Role: policy.RoleAdmin}
		env := newBugTestEnv(&p)

		w, resp := env.do(t, http.MethodGet, "/api/bugs?page=abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid page parameter", resp.Message)
		env.bugRepo.AssertNotCalled(t, "List")
	})

	t.Run("non-numeric limit", func(t *testing.T) {
		p := policy.Principal{UserID: 1, Role: policy.RoleAdmin}
		env := newBugTestEnv(&p)

		w, resp := env.do(t, http.MethodGet, "/api/bugs?limit=xyz", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid limit parameter", resp.Message)
		env.bugRepo.AssertNotCalled(t, "List")
	})
}

func TestBugHandler_Create_ValidationEnvelope(t *testing.T) {
	p := policy.Principal{UserID: 3, Role: policy.RoleTester}
	env := newBugTestEnv(&p)

	w, resp := env.do(t, http.MethodPost, "/api/bugs", gin.H{
		"title":       "",
		"description": "",
		"priority":    "urgent",
		"project":     1,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Validation failed", resp.Message)

	fields := make([]string, 0, len(resp.Errors))
	for _, fe := range resp.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"title", "description", "priority"}, fields)
	env.bugRepo.AssertNotCalled(t, "Save")
}

func TestBugHandler_UpdateStatus_Forbidden(t *testing.T) {
	// 测试者即便是报告者也不能改状态
	p := policy.Principal{UserID: 3, Role: policy.RoleTester}
	env := newBugTestEnv(&p)
	env.bugRepo.On("FindByID", mock.Anything, uint(7)).Return(&domain.Bug{
		ID:       7,
		Title:    "Crash on save",
		Status:   domain.StatusOpen,
		Reporter: domain.NewInternalReporter(3),
	}, nil)

	w, resp := env.do(t, http.MethodPut, "/api/bugs/7/status", gin.H{
		"status": "in-progress",
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", resp.Message)
	env.bugRepo.AssertNotCalled(t, "UpdateStatusWithNote")
}

func TestPublicHandler_SubmitBug(t *testing.T) {
	t.Run("returns a minimal receipt on success", func(t *testing.T) {
		env := newBugTestEnv(nil)
		env.projectRepo.On("FindByID", mock.Anything, uint(2)).Return(&domain.Project{
			ID:     2,
			Name:   "Mobile App",
			Status: domain.ProjectStatusActive,
		}, nil)
		env.bugRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Bug")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*domain.Bug).ID = 101
			}).Return(nil)

		w, resp := env.do(t, http.MethodPost, "/api/public/bugs", gin.H{
			"title":        "Screen flickers",
			"description":  "The settings screen flickers on open",
			"priority":     "low",
			"project":      2,
			"reporterName": "Jane",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "Bug report submitted successfully", resp.Message)

		var data struct {
			Bug service.PublicBugReceipt `json:"bug"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, uint(101), data.Bug.ID)
		assert.Equal(t, "Mobile App", data.Bug.Project.Name)
	})

	t.Run("inactive project looks nonexistent", func(t *testing.T) {
		env := newBugTestEnv(nil)
		env.projectRepo.On("FindByID", mock.Anything, uint(4)).Return(&domain.Project{
			ID:     4,
			Name:   "Legacy System",
			Status: domain.ProjectStatusInactive,
		}, nil)

		w, resp := env.do(t, http.MethodPost, "/api/public/bugs", gin.H{
			"title":       "Old report",
			"description": "Submitted against a retired project",
			"priority":    "low",
			"project":     4,
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "project not found", resp.Message)
		env.bugRepo.AssertNotCalled(t, "Save")
	})
}

func TestPublicHandler_ListProjects(t *testing.T) {
	env := newBugTestEnv(nil)
	env.projectRepo.On("ListActive", mock.Anything).Return([]domain.Project{
		{ID: 1, Name: "Bug Tracker Web App", Status: domain.ProjectStatusActive},
		{ID: 2, Name: "Mobile App", Status: domain.ProjectStatusActive},
	}, nil)

	w, resp := env.do(t, http.MethodGet, "/api/public/projects", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Projects []domain.Project `json:"projects"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data.Projects, 2)
}
