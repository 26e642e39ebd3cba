// Package repository 定义各存储的访问接口。
// 具体实现位于 internal/infra/persistence。
package repository

import (
	"context"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

// UserFilter 描述用户列表查询的可选过滤条件。
type UserFilter struct {
	Role     *domain.Role
	IsActive *bool
}

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByUsername 根据用户名查找用户。
	// 用户不存在时返回 ErrUserNotFound。
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户。
	// 用户不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// List 返回满足过滤条件的用户列表，按创建时间倒序。
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)

	// Save 保存用户信息。ID 为零时创建，否则更新。
	// 唯一约束冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error
}
