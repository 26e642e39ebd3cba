package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/policy"
	"github.com/Avishi2511/bug-tracker/internal/repository"
)

// UserService 负责管理员的用户管理业务逻辑。
type UserService struct {
	userRepo repository.UserRepository
}

// NewUserService 创建 UserService 实例。
func NewUserService(userRepo repository.UserRepository) *UserService {
	if userRepo == nil {
		panic("UserRepository cannot be nil for UserService")
	}
	return &UserService{userRepo: userRepo}
}

// List 返回满足过滤条件的用户列表。仅管理员可用
// （管理端需要开发者列表来完成缺陷指派）。
func (s *UserService) List(ctx context.Context, p policy.Principal, filter repository.UserFilter) ([]domain.User, error) {
	if policy.Can(p, policy.ResourceUser, policy.OpRead) != policy.Allow {
		return nil, ErrAccessDenied
	}

	users, err := s.userRepo.List(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("Failed to list users")
		return nil, ErrInternalServer
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, nil
}

// CreateUserInput 是管理员创建用户的输入。
type CreateUserInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Role      domain.Role
}

// Create 由管理员创建用户，允许任意合法角色（包括 admin）。
func (s *UserService) Create(ctx context.Context, p policy.Principal, input CreateUserInput) (*domain.User, error) {
	if policy.Can(p, policy.ResourceUser, policy.OpCreate) != policy.Allow {
		return nil, ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "username": input.Username})

	verr := &domain.ValidationError{}
	validateUsername(verr, input.Username)
	validatePassword(verr, input.Password)
	validateEmailField(verr, input.Email)
	validateName(verr, "firstName", input.FirstName)
	validateName(verr, "lastName", input.LastName)
	if !domain.ValidRole(input.Role) {
		verr.Add("role", "role must be admin, developer, or tester")
	}
	if err := verr.ErrOrNil(); err != nil {
		logCtx.WithError(err).Warn("User creation failed: validation")
		return nil, err
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during user creation")
		return nil, ErrInternalServer
	}

	user := &domain.User{
		Username:  input.Username,
		Password:  hashedPassword,
		Email:     strings.TrimSpace(input.Email),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      input.Role,
		IsActive:  true,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("User creation failed: duplicate username or email")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User created by admin")
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// UpdateUserInput 是管理员编辑用户的输入。nil 字段保持不变。
// 用户名不可变更；停用通过 IsActive 实现，用户从不物理删除。
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Role      *domain.Role
	IsActive  *bool
}

// Update 由管理员编辑用户资料、角色和激活标记。
func (s *UserService) Update(ctx context.Context, p policy.Principal, userID uint, input UpdateUserInput) (*domain.User, error) {
	if policy.Can(p, policy.ResourceUser, policy.OpUpdate) != policy.Allow {
		return nil, ErrAccessDenied
	}
	logCtx := logrus.WithFields(logrus.Fields{"admin_id": p.UserID, "user_id": userID})

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Failed to load user for update")
		return nil, ErrInternalServer
	}

	verr := &domain.ValidationError{}
	if input.Email != nil {
		validateEmailField(verr, *input.Email)
	}
	if input.FirstName != nil {
		validateName(verr, "firstName", *input.FirstName)
	}
	if input.LastName != nil {
		validateName(verr, "lastName", *input.LastName)
	}
	if input.Role != nil && !domain.ValidRole(*input.Role) {
		verr.Add("role", "role must be admin, developer, or tester")
	}
	if err := verr.ErrOrNil(); err != nil {
		logCtx.WithError(err).Warn("User update failed: validation")
		return nil, err
	}

	if input.Email != nil {
		user.Email = strings.TrimSpace(*input.Email)
	}
	if input.FirstName != nil {
		user.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("User update failed: duplicate email")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user update")
		return nil, ErrInternalServer
	}

	logCtx.Info("User updated by admin")
	sanitized := user.Sanitized()
	return &sanitized, nil
}
