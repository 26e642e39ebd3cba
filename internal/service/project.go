package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/policy"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

// ProjectService 负责项目管理的业务逻辑。
type ProjectService struct {
	projectRepo repository.ProjectRepository
	bugRepo     repository.BugRepository
}

// NewProjectService 创建 ProjectService 实例。
func NewProjectService(projectRepo repository.ProjectRepository, bugRepo repository.BugRepository) *ProjectService {
	if projectRepo == nil {
		panic("ProjectRepository cannot be nil for ProjectService")
	}
	if bugRepo == nil {
		panic("BugRepository cannot be nil for ProjectService")
	}
	return &ProjectService{projectRepo: projectRepo, bugRepo: bugRepo}
}

// ProjectWithBugCount 是项目及其缺陷数量的列表视图。
type ProjectWithBugCount struct {
	domain.Project
	BugsCount int64 `json:"bugsCount"`
}

// List 返回角色范围内的项目列表（含缺陷数量）。
// 管理员和开发者可见全部项目；测试者被限定为仅 active 项目。
func (s *ProjectService) List(ctx context.Context, p policy.Principal, status *domain.ProjectStatus) ([]ProjectWithBugCount, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": p.UserID, "role": p.Role})

	// 1. 角色范围在可选过滤之前应用
	if policy.Can(p, policy.ResourceProject, policy.OpRead) != policy.Allow {
		if policy.Can(p, policy.ResourceProject, policy.OpListActive) != policy.Allow {
			return nil, ErrAccessDenied
		}
		active := domain.ProjectStatusActive
		status = &active
	}

	// 2. 查询项目列表
	projects, err := s.projectRepo.List(ctx, status)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list projects")
		return nil, ErrInternalServer
	}

	// 3. 为每个项目统计缺陷数量
	result := make([]ProjectWithBugCount, 0, len(projects))
	for _, project := range projects {
		count, err := s.bugRepo.CountByProject(ctx, project.ID)
		if err != nil {
			logCtx.WithError(err).WithField("project_id", project.ID).Error("Failed to count bugs for project")
			return nil, ErrInternalServer
		}
		if project.CreatedBy != nil {
			sanitized := project.CreatedBy.Sanitized()
			project.CreatedBy = &sanitized
		}
		result = append(result, ProjectWithBugCount{Project: project, BugsCount: count})
	}
	return result, nil
}

// ListActive 返回全部 active 项目，供公共提交通道选择。
func (s *ProjectService) ListActive(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.projectRepo.ListActive(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list active projects")
		return nil, ErrInternalServer
	}
	return projects, nil
}

// Get 返回单个项目。测试者无权读取项目详情。
func (s *ProjectService) Get(ctx context.Context, p policy.Principal, id uint) (*domain.Project, error) {
	if policy.Can(p, policy.ResourceProject, policy.OpRead) != policy.Allow {
		return nil, ErrAccessDenied
	}

	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		logrus.WithError(err).WithField("project_id", id).Error("Failed to load project")
		return nil, ErrInternalServer
	}
	if project.CreatedBy != nil {
		sanitized := project.CreatedBy.Sanitized()
		project.CreatedBy = &sanitized
	}
	return project, nil
}

// ProjectInput 是创建/更新项目的输入。
type ProjectInput struct {
	Name        string
	Description string
	Status      domain.ProjectStatus // 创建时为空则默认 active
}

// validateProjectInput 校验项目字段。
func validateProjectInput(input ProjectInput) error {
	verr := &domain.ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		verr.Add("name", "project name is required")
	} else if utf8.RuneCountInString(name) > 100 {
		verr.Add("name", "project name cannot exceed 100 characters")
	}
	if input.Description == "" {
		verr.Add("description", "project description is required")
	} else if utf8.RuneCountInString(input.Description) > 500 {
		verr.Add("description", "project description cannot exceed 500 characters")
	}
	if input.Status != "" && !domain.ValidProjectStatus(input.Status) {
		verr.Add("status", "status must be active, inactive, or archived")
	}
	return verr.ErrOrNil()
}

// Create 由管理员创建项目。项目名必须唯一。
func (s *ProjectService) Create(ctx context.Context, p policy.Principal, input ProjectInput) (*domain.Project, error) {
	if policy.Can(p, policy.ResourceProject, policy.OpCreate) != policy.Allow {
		return nil, ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "name": input.Name})

	// 1. 验证输入
	if err := validateProjectInput(input); err != nil {
		logCtx.WithError(err).Warn("Project creation failed: validation")
		return nil, err
	}

	// 2. 名称唯一性检查
	if _, err := s.projectRepo.FindByName(ctx, strings.TrimSpace(input.Name)); err == nil {
		logCtx.Warn("Project creation failed: name already exists")
		return nil, ErrProjectNameTaken
	} else if !errors.Is(err, repository.ErrProjectNotFound) {
		logCtx.WithError(err).Error("Failed to check project name uniqueness")
		return nil, ErrInternalServer
	}

	status := input.Status
	if status == "" {
		status = domain.ProjectStatusActive
	}
	project := &domain.Project{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Status:      status,
		CreatedByID: p.UserID,
	}

	// 3. 保存。唯一索引兜底并发创建的竞争
	if err := s.projectRepo.Save(ctx, project); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Project creation failed: duplicate name (constraint)")
			return nil, ErrProjectNameTaken
		}
		logCtx.WithError(err).Error("Database error during project creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("project_id", project.ID).Info("Project created")
	return project, nil
}

// UpdateProjectInput 是更新项目的输入。nil 字段保持不变。
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *domain.ProjectStatus
}

// Update 由管理员更新项目。改名时重新检查唯一性。
func (s *ProjectService) Update(ctx context.Context, p policy.Principal, id uint, input UpdateProjectInput) (*domain.Project, error) {
	if policy.Can(p, policy.ResourceProject, policy.OpUpdate) != policy.Allow {
		return nil, ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "project_id": id})

	project, err := s.projectRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		logCtx.WithError(err).Error("Failed to load project for update")
		return nil, ErrInternalServer
	}

	verr := &domain.ValidationError{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			verr.Add("name", "project name is required")
		} else if utf8.RuneCountInString(name) > 100 {
			verr.Add("name", "project name cannot exceed 100 characters")
		}
	}
	if input.Description != nil {
		if *input.Description == "" {
			verr.Add("description", "project description is required")
		} else if utf8.RuneCountInString(*input.Description) > 500 {
			verr.Add("description", "project description cannot exceed 500 characters")
		}
	}
	if input.Status != nil && !domain.ValidProjectStatus(*input.Status) {
		verr.Add("status", "status must be active, inactive, or archived")
	}
	if err := verr.ErrOrNil(); err != nil {
		logCtx.WithError(err).Warn("Project update failed: validation")
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name != project.Name {
			if _, err := s.projectRepo.FindByName(ctx, name); err == nil {
				logCtx.Warn("Project update failed: new name already exists")
				return nil, ErrProjectNameTaken
			} else if !errors.Is(err, repository.ErrProjectNotFound) {
				logCtx.WithError(err).Error("Failed to check project name uniqueness")
				return nil, ErrInternalServer
			}
			project.Name = name
		}
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		project.Status = *input.Status
	}

	if err := s.projectRepo.Save(ctx, project); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrProjectNameTaken
		}
		logCtx.WithError(err).Error("Database error during project update")
		return nil, ErrInternalServer
	}

	logCtx.Info("Project updated")
	return project, nil
}

// Delete 由管理员删除项目。
// 引用完整性不变量：项目下仍有缺陷时删除被阻止，两条记录均保持原样。
func (s *ProjectService) Delete(ctx context.Context, p policy.Principal, id uint) error {
	if policy.Can(p, policy.ResourceProject, policy.OpDelete) != policy.Allow {
		return ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "project_id": id})

	// 1. 项目必须存在
	if _, err := s.projectRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		logCtx.WithError(err).Error("Failed to load project for deletion")
		return ErrInternalServer
	}

	// 2. 引用检查在删除之前执行
	count, err := s.bugRepo.CountByProject(ctx, id)
	if err != nil {
		logCtx.WithError(err).Error("Failed to count bugs before project deletion")
		return ErrInternalServer
	}
	if count > 0 {
		logCtx.WithField("bug_count", count).Warn("Project deletion blocked: bugs still reference it")
		return &ProjectInUseError{BugCount: count}
	}

	// 3. 删除
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		logCtx.WithError(err).Error("Database error during project deletion")
		return ErrInternalServer
	}

	logCtx.Info("Project deleted")
	return nil
}
