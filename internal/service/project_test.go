package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
	"github.com/Avishi2511/bug-tracker/internal/repository/mocks"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

func newProjectService(t *testing.T) (*service.ProjectService, *mocks.ProjectRepository, *mocks.BugRepository) {
	t.Helper()
	projectRepo := new(mocks.ProjectRepository)
	bugRepo := new(mocks.BugRepository)
	return service.NewProjectService(projectRepo, bugRepo), projectRepo, bugRepo
}

// --- 测试 List 的角色范围 ---

func TestProjectService_List_TesterForcedToActive(t *testing.T) {
	// Arrange: 测试者请求全部项目
	svc, projectRepo, _ := newProjectService(t)
	ctx := context.Background()

	// 范围被强制收窄为 active
	projectRepo.On("List", ctx, mock.MatchedBy(func(status *domain.ProjectStatus) bool {
		return status != nil && *status == domain.ProjectStatusActive
	})).Return([]domain.Project{}, nil).Once()

	// Act
	_, err := svc.List(ctx, testerPrincipal, nil)

	// Assert
	assert.NoError(t, err)
	projectRepo.AssertExpectations(t)
}

func TestProjectService_List_AdminSeesAllWithBugCounts(t *testing.T) {
	svc, projectRepo, bugRepo := newProjectService(t)
	ctx := context.Background()

	projects := []domain.Project{
		{ID: 1, Name: "Bug Tracker Web App"},
		{ID: 2, Name: "Mobile App"},
	}
	projectRepo.On("List", ctx, (*domain.ProjectStatus)(nil)).Return(projects, nil).Once()
	bugRepo.On("CountByProject", ctx, uint(1)).Return(int64(12), nil).Once()
	bugRepo.On("CountByProject", ctx, uint(2)).Return(int64(0), nil).Once()

	result, err := svc.List(ctx, adminPrincipal, nil)

	assert.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, int64(12), result[0].BugsCount)
	assert.Equal(t, int64(0), result[1].BugsCount)
}

func TestProjectService_Get_TesterDenied(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)

	_, err := svc.Get(context.Background(), testerPrincipal, 1)

	assert.ErrorIs(t, err, service.ErrAccessDenied)
	projectRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// --- 测试 Create 的唯一性 ---

func TestProjectService_Create_DuplicateName(t *testing.T) {
	// Arrange: 同名项目已存在
	svc, projectRepo, _ := newProjectService(t)
	ctx := context.Background()

	projectRepo.On("FindByName", ctx, "Mobile App").
		Return(&domain.Project{ID: 2, Name: "Mobile App"}, nil).Once()

	// Act
	project, err := svc.Create(ctx, adminPrincipal, service.ProjectInput{
		Name:        "Mobile App",
		Description: "Duplicate attempt",
	})

	// Assert: 冲突，原项目保持不变
	assert.Nil(t, project)
	assert.ErrorIs(t, err, service.ErrProjectNameTaken)
	projectRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProjectService_Create_DefaultsToActive(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)
	ctx := context.Background()

	projectRepo.On("FindByName", ctx, "API Gateway").
		Return(nil, repository.ErrProjectNotFound).Once()
	projectRepo.On("Save", ctx, mock.MatchedBy(func(p *domain.Project) bool {
		assert.Equal(t, domain.ProjectStatusActive, p.Status, "未指定状态时默认 active")
		assert.Equal(t, adminPrincipal.UserID, p.CreatedByID)
		return true
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Project).ID = 3
	}).Return(nil).Once()

	project, err := svc.Create(ctx, adminPrincipal, service.ProjectInput{
		Name:        "API Gateway",
		Description: "Microservices API gateway",
	})

	assert.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, uint(3), project.ID)
}

func TestProjectService_Create_NonAdminDenied(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)

	_, err := svc.Create(context.Background(), devPrincipal, service.ProjectInput{
		Name:        "Rogue Project",
		Description: "Should not be created",
	})

	assert.ErrorIs(t, err, service.ErrAccessDenied)
	projectRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProjectService_Create_ValidationLimits(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)

	_, err := svc.Create(context.Background(), adminPrincipal, service.ProjectInput{
		Name:        "",
		Description: "",
		Status:      domain.ProjectStatus("paused"),
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
	projectRepo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
}

// --- 测试 Update 的改名唯一性 ---

func TestProjectService_Update_RenameToTakenName(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)
	ctx := context.Background()

	existing := &domain.Project{ID: 1, Name: "Bug Tracker Web App", Description: "Main app"}
	projectRepo.On("FindByID", ctx, uint(1)).Return(existing, nil).Once()
	projectRepo.On("FindByName", ctx, "Mobile App").
		Return(&domain.Project{ID: 2, Name: "Mobile App"}, nil).Once()

	newName := "Mobile App"
	project, err := svc.Update(ctx, adminPrincipal, 1, service.UpdateProjectInput{Name: &newName})

	assert.Nil(t, project)
	assert.ErrorIs(t, err, service.ErrProjectNameTaken)
	projectRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestProjectService_Update_SameNameSkipsUniquenessCheck(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)
	ctx := context.Background()

	existing := &domain.Project{ID: 1, Name: "Bug Tracker Web App", Description: "Main app"}
	projectRepo.On("FindByID", ctx, uint(1)).Return(existing, nil).Once()
	projectRepo.On("Save", ctx, mock.AnythingOfType("*domain.Project")).Return(nil).Once()

	sameName := "Bug Tracker Web App"
	archived := domain.ProjectStatusArchived
	project, err := svc.Update(ctx, adminPrincipal, 1, service.UpdateProjectInput{
		Name:   &sameName,
		Status: &archived,
	})

	assert.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, domain.ProjectStatusArchived, project.Status)
	projectRepo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
}

// --- 测试 Delete 的引用完整性 ---

func TestProjectService_Delete_BlockedWhileBugsReference(t *testing.T) {
	// Arrange: 项目下仍有 3 条缺陷
	svc, projectRepo, bugRepo := newProjectService(t)
	ctx := context.Background()

	projectRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Project{ID: 1, Name: "Bug Tracker Web App"}, nil).Once()
	bugRepo.On("CountByProject", ctx, uint(1)).Return(int64(3), nil).Once()

	// Act
	err := svc.Delete(ctx, adminPrincipal, 1)

	// Assert: 冲突错误携带缺陷数量，Delete 不被调用
	var inUse *service.ProjectInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, int64(3), inUse.BugCount)
	projectRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProjectService_Delete_EmptyProjectSucceeds(t *testing.T) {
	svc, projectRepo, bugRepo := newProjectService(t)
	ctx := context.Background()

	projectRepo.On("FindByID", ctx, uint(4)).
		Return(&domain.Project{ID: 4, Name: "Legacy System"}, nil).Once()
	bugRepo.On("CountByProject", ctx, uint(4)).Return(int64(0), nil).Once()
	projectRepo.On("Delete", ctx, uint(4)).Return(nil).Once()

	err := svc.Delete(ctx, adminPrincipal, 4)

	assert.NoError(t, err)
	projectRepo.AssertExpectations(t)
}

func TestProjectService_Delete_NotFound(t *testing.T) {
	svc, projectRepo, _ := newProjectService(t)
	ctx := context.Background()

	projectRepo.On("FindByID", ctx, uint(404)).
		Return(nil, repository.ErrProjectNotFound).Once()

	err := svc.Delete(ctx, adminPrincipal, 404)

	assert.ErrorIs(t, err, service.ErrProjectNotFound)
}
