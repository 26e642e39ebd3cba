package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

// GormProjectRepository 是 ProjectRepository 接口的 GORM 实现
type GormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GormProjectRepository 实例
func NewGormProjectRepository(db *gorm.DB) *GormProjectRepository {
	if db == nil {
		panic("database connection cannot be nil for GormProjectRepository")
	}
	return &GormProjectRepository{db: db}
}

// FindByID 实现根据项目 ID 查找项目（含创建者）
func (r *GormProjectRepository) FindByID(ctx context.Context, id uint) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Preload("CreatedBy").First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, fmt.Errorf("gorm: find project by id %d: %w", id, err)
	}
	return &project, nil
}

// FindByName 实现根据项目名查找项目，用于唯一性检查
func (r *GormProjectRepository) FindByName(ctx context.Context, name string) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrProjectNotFound
		}
		return nil, fmt.Errorf("gorm: find project by name '%s': %w", name, err)
	}
	return &project, nil
}

// List 实现项目列表查询，按创建时间倒序
func (r *GormProjectRepository) List(ctx context.Context, status *domain.ProjectStatus) ([]domain.Project, error) {
	q := r.db.WithContext(ctx).Model(&domain.Project{}).Preload("CreatedBy")
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var projects []domain.Project
	if err := q.Order("created_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("gorm: list projects: %w", err)
	}
	return projects, nil
}

// ListActive 实现 active 项目列表查询，按名称升序（公共通道使用）
func (r *GormProjectRepository) ListActive(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.ProjectStatusActive).
		Order("name ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list active projects: %w", err)
	}
	return projects, nil
}

// Save 实现保存项目（创建或更新）
func (r *GormProjectRepository) Save(ctx context.Context, project *domain.Project) error {
	err := r.db.WithContext(ctx).Save(project).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save project (id: %d, name: %s): %w", project.ID, project.Name, err)
	}
	return nil
}

// Delete 实现删除项目
func (r *GormProjectRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Project{}, id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete project %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrProjectNotFound
	}
	return nil
}
