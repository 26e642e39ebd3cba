package repository

import (
	"context"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// ProjectRepository 定义了项目数据的存储和检索操作。
type ProjectRepository interface {
	// FindByID 根据项目 ID 查找项目。
	// 项目不存在时返回 ErrProjectNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Project, error)

	// FindByName 根据项目名查找项目，用于唯一性检查。
	// 项目不存在时返回 ErrProjectNotFound。
	FindByName(ctx context.Context, name string) (*domain.Project, error)

	// List 返回满足状态过滤的项目列表（含创建者），按创建时间倒序。
	// status 为 nil 时返回全部项目。
	List(ctx context.Context, status *domain.ProjectStatus) ([]domain.Project, error)

	// ListActive 返回全部 active 项目，按名称升序。供公共通道使用。
	ListActive(ctx context.Context) ([]domain.Project, error)

	// Save 保存项目。唯一约束冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, project *domain.Project) error

	// Delete 删除项目。项目不存在时返回 ErrProjectNotFound。
	// 引用完整性检查（项目下是否仍有缺陷）由服务层负责。
	Delete(ctx context.Context, id uint) error
}
