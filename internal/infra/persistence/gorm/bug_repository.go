package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

// GormBugRepository 是 BugRepository 接口的 GORM 实现
type GormBugRepository struct {
	db *gorm.DB
}

// NewGormBugRepository 创建 GormBugRepository 实例
func NewGormBugRepository(db *gorm.DB) *GormBugRepository {
	if db == nil {
		panic("database connection cannot be nil for GormBugRepository")
	}
	return &GormBugRepository{db: db}
}

// FindByID 实现根据缺陷 ID 查找缺陷，预加载关联数据
func (r *GormBugRepository) FindByID(ctx context.Context, id uint) (*domain.Bug, error) {
	var bug domain.Bug
	err := r.db.WithContext(ctx).
		Preload("Project").
		Preload("AssignedTo").
		Preload("ProgressNotes", func(db *gorm.DB) *gorm.DB {
			// 进度备注按追加顺序返回
			return db.Order("progress_notes.added_at ASC, progress_notes.id ASC")
		}).
		Preload("ProgressNotes.AddedBy").
		First(&bug, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrBugNotFound
		}
		return nil, fmt.Errorf("gorm: find bug by id %d: %w", id, err)
	}
	return &bug, nil
}

// List 实现缺陷的过滤分页查询，返回当前页和未分页总数
func (r *GormBugRepository) List(ctx context.Context, filter repository.BugFilter) ([]domain.Bug, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Bug{})

	// 角色范围与可选过滤均为 AND 条件
	if filter.AssignedTo != nil {
		q = q.Where("assigned_to_id = ?", *filter.AssignedTo)
	}
	if filter.ReportedBy != nil {
		q = q.Where("reporter_type = ? AND reporter_user_id = ?", domain.ReporterInternal, *filter.ReportedBy)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count bugs: %w", err)
	}

	var bugs []domain.Bug
	err := q.
		Preload("Project").
		Preload("AssignedTo").
		Order("created_at DESC, id DESC"). // 最新创建在前，ID 决胜保证稳定排序
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&bugs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list bugs: %w", err)
	}
	return bugs, total, nil
}

// Save 实现保存缺陷（创建或更新）
func (r *GormBugRepository) Save(ctx context.Context, bug *domain.Bug) error {
	err := r.db.WithContext(ctx).Save(bug).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save bug (id: %d): %w", bug.ID, err)
	}
	return nil
}

// UpdateStatusWithNote 在单个事务中写入状态并追加进度备注。
// 状态写入和备注追加要么同时提交要么同时回滚，调用方看不到部分更新。
func (r *GormBugRepository) UpdateStatusWithNote(ctx context.Context, bugID uint, status domain.BugStatus, note *domain.ProgressNote) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Bug{}).Where("id = ?", bugID).Update("status", status)
		if result.Error != nil {
			return fmt.Errorf("gorm: update bug %d status: %w", bugID, result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrBugNotFound
		}
		if note != nil {
			note.BugID = bugID
			if err := tx.Create(note).Error; err != nil {
				return fmt.Errorf("gorm: append progress note to bug %d: %w", bugID, err)
			}
		}
		return nil
	})
}

// Delete 实现删除缺陷，进度备注在同一事务中一并删除
func (r *GormBugRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bug_id = ?", id).Delete(&domain.ProgressNote{}).Error; err != nil {
			return fmt.Errorf("gorm: delete progress notes of bug %d: %w", id, err)
		}
		result := tx.Delete(&domain.Bug{}, id)
		if result.Error != nil {
			return fmt.Errorf("gorm: delete bug %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return repository.ErrBugNotFound
		}
		return nil
	})
}

// CountByProject 实现统计项目下的缺陷数量（项目删除前的引用检查）
func (r *GormBugRepository) CountByProject(ctx context.Context, projectID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Bug{}).
		Where("project_id = ?", projectID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count bugs for project %d: %w", projectID, err)
	}
	return count, nil
}
