package repository

import (
	"context"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// BugFilter 描述缺陷列表查询的过滤和分页参数。
// 角色范围（AssignedTo / ReportedBy）由服务层在可选过滤之前确定。
type BugFilter struct {
	Status     *domain.BugStatus
	Priority   *domain.BugPriority
	ProjectID  *uint
	AssignedTo *uint // 开发者范围，或管理员的 assignedTo 过滤
	ReportedBy *uint // 测试者范围：内部报告者为该用户
	Page       int   // 1 起始
	Limit      int
}

// BugRepository 定义了缺陷数据的存储和检索操作。
type BugRepository interface {
	// FindByID 根据缺陷 ID 查找缺陷，预加载项目、指派人和进度备注。
	// 缺陷不存在时返回 ErrBugNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Bug, error)

	// List 返回满足过滤条件的缺陷分页列表和未分页的总数。
	// 排序保证：创建时间倒序，ID 倒序决胜（稳定）。
	List(ctx context.Context, filter BugFilter) ([]domain.Bug, int64, error)

	// Save 保存缺陷。ID 为零时创建，否则更新。
	Save(ctx context.Context, bug *domain.Bug) error

	// UpdateStatusWithNote 在单个事务中写入状态并追加进度备注（note 可为 nil），
	// 两者要么都生效要么都不生效。缺陷不存在时返回 ErrBugNotFound。
	UpdateStatusWithNote(ctx context.Context, bugID uint, status domain.BugStatus, note *domain.ProgressNote) error

	// Delete 删除缺陷及其进度备注。缺陷不存在时返回 ErrBugNotFound。
	Delete(ctx context.Context, id uint) error

	// CountByProject 返回引用指定项目的缺陷数量。
	CountByProject(ctx context.Context, projectID uint) (int64, error)
}
